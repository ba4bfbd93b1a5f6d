package depgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WriteRecord rewrites unit's durable reference record: a newline-separated,
// sorted list of referenced unit identifiers, one file per unit. The records
// are an inspectable side artifact, not an input to impact analysis.
func WriteRecord(dir, unit string, refs map[string]bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create deps dir %s: %w", dir, err)
	}

	ids := make([]string, 0, len(refs))
	for ref := range refs {
		ids = append(ids, ref)
	}
	sort.Strings(ids)

	content := strings.Join(ids, "\n")
	if len(ids) > 0 {
		content += "\n"
	}
	return os.WriteFile(RecordPath(dir, unit), []byte(content), 0644)
}

// RemoveRecord deletes unit's reference record. A missing record is not an
// error; cleanup must be idempotent.
func RemoveRecord(dir, unit string) error {
	err := os.Remove(RecordPath(dir, unit))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func RecordPath(dir, unit string) string {
	return filepath.Join(dir, unit+".deps")
}

// ReadRecord loads a previously written record. Used by inspection surfaces
// only; the engine always re-extracts.
func ReadRecord(dir, unit string) ([]string, error) {
	data, err := os.ReadFile(RecordPath(dir, unit))
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	refs := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			refs = append(refs, line)
		}
	}
	return refs, nil
}
