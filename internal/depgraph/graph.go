// Package depgraph holds the per-run dependency graph: unit -> reference set,
// with reverse edges for impact analysis. The graph is rebuilt from scratch
// each run; durability lives in the per-unit side records.
package depgraph

import (
	"sort"
	"sync"
)

type Graph struct {
	mu sync.RWMutex

	// refs: unit -> units it depends on.
	refs map[string]map[string]bool
	// dependents: unit -> units that depend on it (reverse edges).
	dependents map[string]map[string]bool
}

func New() *Graph {
	return &Graph{
		refs:       make(map[string]map[string]bool),
		dependents: make(map[string]map[string]bool),
	}
}

// SetRefs replaces unit's reference set, updating reverse edges. Prior edges
// are removed first so re-extraction after an edit leaves no stale entries.
func (g *Graph) SetRefs(unit string, refs map[string]bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeLocked(unit)

	set := make(map[string]bool, len(refs))
	for ref := range refs {
		if ref == unit {
			continue
		}
		set[ref] = true
		if g.dependents[ref] == nil {
			g.dependents[ref] = make(map[string]bool)
		}
		g.dependents[ref][unit] = true
	}
	g.refs[unit] = set
}

func (g *Graph) Remove(unit string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(unit)
}

func (g *Graph) removeLocked(unit string) {
	for ref := range g.refs[unit] {
		delete(g.dependents[ref], unit)
		if len(g.dependents[ref]) == 0 {
			delete(g.dependents, ref)
		}
	}
	delete(g.refs, unit)
}

// Refs returns a copy of unit's reference set.
func (g *Graph) Refs(unit string) map[string]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := make(map[string]bool, len(g.refs[unit]))
	for ref := range g.refs[unit] {
		set[ref] = true
	}
	return set
}

// Units returns all graph nodes, sorted.
func (g *Graph) Units() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	units := make([]string, 0, len(g.refs))
	for unit := range g.refs {
		units = append(units, unit)
	}
	sort.Strings(units)
	return units
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.refs)
}

// EdgeCount returns the total number of dependency edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := 0
	for _, set := range g.refs {
		n += len(set)
	}
	return n
}

// Impacted computes the transitive closure of dependents of changed: a BFS
// over the reverse edge relation. The membership set guarantees termination
// under cycles and that each unit is processed once; the result is sorted, so
// the same graph and changed set always yield the same output.
func (g *Graph) Impacted(changed []string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	member := make(map[string]bool, len(changed))
	queue := make([]string, 0, len(changed))
	for _, unit := range changed {
		if !member[unit] {
			member[unit] = true
			queue = append(queue, unit)
		}
	}

	for len(queue) > 0 {
		unit := queue[0]
		queue = queue[1:]

		for dependent := range g.dependents[unit] {
			if member[dependent] {
				continue
			}
			member[dependent] = true
			queue = append(queue, dependent)
		}
	}

	impacted := make([]string, 0, len(member))
	for unit := range member {
		impacted = append(impacted, unit)
	}
	sort.Strings(impacted)
	return impacted
}
