// Package extract derives per-unit reference sets. Both strategies obey the
// same contract: the returned set is a superset of the unit's true
// dependencies (extra entries cause harmless rebuilds, missing entries are a
// correctness violation) and never contains the unit itself.
package extract

import (
	"strings"

	"rebuild/internal/scan"
)

// Result is one unit's extraction output.
type Result struct {
	// Refs maps referenced unit identifiers; always resolved against the
	// currently known unit set.
	Refs map[string]bool
	// ImportTargets are bare names appearing in import-like declarations,
	// whether or not they resolve to a known unit. The dangling-reference
	// policy checks them against units deleted since the last build.
	ImportTargets []string
}

// Extractor turns a unit's content into its reference set. known maps bare
// unit names to unit identifiers for the current run.
type Extractor interface {
	Extract(unit scan.Unit, content []byte, known map[string]string) (Result, error)
}

// ScanExtractor is the syntax-light strategy: import-like lines resolve their
// last dotted segment, every other line is substring-matched against all
// known bare names. Trades precision for recall.
type ScanExtractor struct{}

func (e *ScanExtractor) Extract(unit scan.Unit, content []byte, known map[string]string) (Result, error) {
	res := Result{Refs: make(map[string]bool)}
	seenTargets := make(map[string]bool)

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)

		if target, ok := importTarget(line); ok {
			if !seenTargets[target] {
				seenTargets[target] = true
				res.ImportTargets = append(res.ImportTargets, target)
			}
			if id, ok := known[target]; ok && target != unit.Name {
				res.Refs[id] = true
			}
			continue
		}

		for name, id := range known {
			if name == unit.Name {
				continue
			}
			if strings.Contains(line, name) {
				res.Refs[id] = true
			}
		}
	}

	return res, nil
}

// importTarget parses an import-like declaration and returns the bare name it
// ends with ("import a.b.C;" yields "C").
func importTarget(line string) (string, bool) {
	if !strings.HasPrefix(line, "import ") {
		return "", false
	}
	target := strings.TrimPrefix(line, "import ")
	target = strings.TrimSuffix(strings.TrimSpace(target), ";")
	target = strings.TrimPrefix(target, "static ")
	target = strings.TrimSpace(target)
	if idx := strings.LastIndex(target, "."); idx >= 0 {
		target = target[idx+1:]
	}
	if target == "" || target == "*" {
		return "", false
	}
	return target, true
}
