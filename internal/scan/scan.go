// Package scan discovers source units under a source root.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Unit is a single source item tracked for change and dependency purposes.
// ID is the path-derived identifier (the file name, suffix included) and is
// unique within one run; Name is the identifier minus the suffix.
type Unit struct {
	ID   string
	Name string
	Path string
}

// Root scans dir (non-recursively) for files matching suffix, skipping any
// file whose name matches one of the exclude globs. Results are sorted by ID.
func Root(dir, suffix string, exclude []string) ([]Unit, error) {
	globs := make([]glob.Glob, 0, len(exclude))
	for _, p := range exclude {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan source root %s: %w", dir, err)
	}

	units := make([]Unit, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		excluded := false
		for _, g := range globs {
			if g.Match(name) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		units = append(units, Unit{
			ID:   name,
			Name: strings.TrimSuffix(name, suffix),
			Path: filepath.Join(dir, name),
		})
	}

	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
	return units, nil
}

// Names returns the bare-name index of units, keyed by name with the unit
// identifier as value. Extractors resolve candidate references against it.
func Names(units []Unit) map[string]string {
	names := make(map[string]string, len(units))
	for _, u := range units {
		names[u.Name] = u.ID
	}
	return names
}
