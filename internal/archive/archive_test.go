package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// distDir builds a canonical-directory lookalike to archive.
func distDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "mysqltoolsservice")
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"mysqltoolsservice": "binary",
		"lib/lib_a.so":      "liba",
		"lib/lib_b.so":      "libb",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCreateExtractRoundTrip(t *testing.T) {
	src := distDir(t)
	dest := filepath.Join(t.TempDir(), "mysqltoolsservice-osx.tar.gz")

	if err := Create(src, dest); err != nil {
		t.Fatalf("Create() returned error: %v", err)
	}

	extractDir := t.TempDir()
	if err := Extract(dest, extractDir); err != nil {
		t.Fatalf("Extract() returned error: %v", err)
	}

	// The canonical directory is the sole top-level entry.
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "mysqltoolsservice" {
		t.Fatalf("extraction root entries = %v, want [mysqltoolsservice]", entries)
	}

	for rel, want := range map[string]string{
		"mysqltoolsservice/mysqltoolsservice": "binary",
		"mysqltoolsservice/lib/lib_a.so":      "liba",
		"mysqltoolsservice/lib/lib_b.so":      "libb",
	} {
		got, err := os.ReadFile(filepath.Join(extractDir, rel))
		if err != nil {
			t.Fatalf("missing %s after extraction: %v", rel, err)
		}
		if string(got) != want {
			t.Errorf("%s content = %q, want %q", rel, got, want)
		}
	}
}

func TestCreateMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.tar.gz")
	err := Create(filepath.Join(t.TempDir(), "nope"), dest)
	if err == nil {
		t.Fatal("Create() with a missing source should fail")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Error("no archive file should exist after a failed Create")
	}
}

func TestCreateLeavesNoTempOnFailure(t *testing.T) {
	destDir := t.TempDir()
	// A source containing an unreadable entry type: use a dangling symlink.
	src := filepath.Join(t.TempDir(), "mysqltoolsservice")
	if err := os.MkdirAll(src, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/nonexistent", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(destDir, "out.tar.gz")
	if err := Create(src, dest); err == nil {
		t.Fatal("Create() should reject non-regular files")
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("destination directory not clean after failure: %v", entries)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	if _, err := confine(t.TempDir(), "../evil"); err == nil {
		t.Error("confine should reject parent traversal")
	}
	if _, err := confine(t.TempDir(), "/abs/path"); err == nil {
		t.Error("confine should reject absolute names")
	}
	if _, err := confine(t.TempDir(), "mysqltoolsservice/lib/lib_a.so"); err != nil {
		t.Errorf("confine rejected a valid name: %v", err)
	}
}

func TestWriteChecksum(t *testing.T) {
	src := distDir(t)
	dest := filepath.Join(t.TempDir(), "mysqltoolsservice-osx.tar.gz")
	if err := Create(src, dest); err != nil {
		t.Fatal(err)
	}

	sidecar, err := WriteChecksum(dest)
	if err != nil {
		t.Fatalf("WriteChecksum() returned error: %v", err)
	}
	if sidecar != dest+".sha256" {
		t.Errorf("sidecar path = %q, want %q", sidecar, dest+".sha256")
	}

	data, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatal(err)
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 || fields[1] != "mysqltoolsservice-osx.tar.gz" {
		t.Fatalf("sidecar content = %q", data)
	}

	raw, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(raw)
	if fields[0] != hex.EncodeToString(sum[:]) {
		t.Errorf("checksum mismatch: sidecar %s", fields[0])
	}
}
