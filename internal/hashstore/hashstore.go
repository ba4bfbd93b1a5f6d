// Package hashstore persists the unit -> digest mapping across runs. An
// entry means "last digest for which this unit was successfully built".
package hashstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Store struct {
	path    string
	digests map[string]string
}

// Load reads the store from path. An absent file yields an empty store; any
// other read or decode failure is surfaced, since building against a
// half-read store could skip required rebuilds.
func Load(path string) (*Store, error) {
	s := &Store{path: path, digests: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load hash store %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.digests); err != nil {
		return nil, fmt.Errorf("decode hash store %s: %w", path, err)
	}
	return s, nil
}

// Save atomically replaces the store file: write to a temp file in the same
// directory, fsync, then rename over the destination. A crash mid-write
// leaves the previous store intact.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.digests, "", "  ")
	if err != nil {
		return fmt.Errorf("encode hash store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create hash store dir %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp hash store: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp hash store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp hash store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp hash store: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace hash store %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Get(unit string) (string, bool) {
	d, ok := s.digests[unit]
	return d, ok
}

func (s *Store) Set(unit, digest string) {
	s.digests[unit] = digest
}

func (s *Store) Delete(unit string) {
	delete(s.digests, unit)
}

// Units returns every unit with a stored digest.
func (s *Store) Units() []string {
	units := make([]string, 0, len(s.digests))
	for unit := range s.digests {
		units = append(units, unit)
	}
	return units
}

func (s *Store) Len() int {
	return len(s.digests)
}
