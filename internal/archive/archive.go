// Package archive produces the distributable tar.gz of the canonical
// distribution directory and can verify one by extracting it. Archives are
// written to a temporary file and renamed into place, so a failed run never
// leaves a partial archive behind.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// maxExtractBytes caps the total decompressed size during extraction,
// guarding against decompression bombs.
const maxExtractBytes = 4 << 30

// Create writes a gzip-compressed tar of srcDir to dest. Entries are named
// relative to srcDir's parent, so the directory itself is the archive's
// sole top-level entry and extraction reproduces it at the extraction root.
func Create(srcDir, dest string) (err error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("archive source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive source %s is not a directory", srcDir)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = writeTarGz(tmp, srcDir); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func writeTarGz(w io.Writer, srcDir string) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	base := filepath.Base(srcDir)
	err := filepath.Walk(srcDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return fmt.Errorf("unsupported file type: %s", path)
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = filepath.ToSlash(filepath.Join(base, rel))
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = name
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

// Extract unpacks a tar.gz produced by Create into dir. Entry names are
// confined to dir and the decompressed size is capped.
func Extract(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	var total int64
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target, err := confine(dir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			total += header.Size
			if total > maxExtractBytes {
				return fmt.Errorf("archive exceeds %d bytes decompressed", int64(maxExtractBytes))
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, header.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			// tar.Reader bounds each entry at header.Size.
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported entry type in archive: %s", header.Name)
		}
	}
}

// confine resolves an archive entry name under dir, rejecting absolute
// names and path traversal.
func confine(dir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes extraction root: %q", name)
	}
	return filepath.Join(dir, cleaned), nil
}

// WriteChecksum writes a SHA-256 sidecar file next to the archive, in the
// conventional "<hex>  <name>" shasum format, and returns the sidecar path.
func WriteChecksum(archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}

	sidecar := archivePath + ".sha256"
	line := fmt.Sprintf("%s  %s\n", hex.EncodeToString(h.Sum(nil)), filepath.Base(archivePath))
	if err := os.WriteFile(sidecar, []byte(line), 0644); err != nil {
		return "", fmt.Errorf("checksum: %w", err)
	}
	return sidecar, nil
}
