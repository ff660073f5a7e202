// Package manifest parses the dependency manifest consumed by the
// provisioning step: a flat list of package requirements, one per line,
// in pip's requirements.txt format.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound reports a missing or unreadable manifest file.
var ErrNotFound = errors.New("manifest not found")

// constraint operators, longest first so Cut matches ">=" before ">".
var operators = []string{"===", "==", ">=", "<=", "!=", "~=", ">", "<"}

// Entry is a single declared requirement.
type Entry struct {
	Name       string // package name
	Constraint string // version constraint including operator, may be empty
}

func (e Entry) String() string {
	return e.Name + e.Constraint
}

// Manifest is the parsed requirement list.
type Manifest struct {
	Path    string
	Entries []Entry
}

// Parse reads and parses the manifest at path. Blank lines and # comments
// are ignored. Option lines (-r, -e, --index-url and friends) are rejected:
// the pipeline declares plain package requirements only.
func Parse(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	defer f.Close()

	m := &Manifest{Path: path}

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			return nil, fmt.Errorf("%s:%d: option lines are not supported: %q", path, lineno, line)
		}
		m.Entries = append(m.Entries, parseEntry(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return m, nil
}

// parseEntry splits a requirement line into name and constraint at the
// first constraint operator.
func parseEntry(line string) Entry {
	for i := 0; i < len(line); i++ {
		for _, op := range operators {
			if strings.HasPrefix(line[i:], op) {
				return Entry{
					Name:       strings.TrimSpace(line[:i]),
					Constraint: strings.TrimSpace(line[i:]),
				}
			}
		}
	}
	return Entry{Name: line}
}
