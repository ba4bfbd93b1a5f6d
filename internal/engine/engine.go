// Package engine sequences one incremental build run: scan units, extract
// references, detect changes and deletions, clean stale state, compute the
// impacted set, invoke the compiler, and commit digests only on success.
//
// The engine owns its state explicitly (no package-level maps) so parallel
// instances are safe, and it carries no presentation dependency: callers run
// it synchronously or wrap it in a worker goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rebuild/internal/compiler"
	"rebuild/internal/config"
	"rebuild/internal/depgraph"
	"rebuild/internal/digest"
	"rebuild/internal/extract"
	"rebuild/internal/hashstore"
	"rebuild/internal/observability"
	"rebuild/internal/scan"
)

// ErrBuildFailed marks a run where the compiler rejected the impacted set.
// Digests stay at their last successful values so the same units are
// retried next run.
var ErrBuildFailed = errors.New("build failed")

// ErrDanglingRefs marks a run aborted by the "error" dangling policy.
var ErrDanglingRefs = errors.New("dangling references")

// DanglingRef is a unit whose declared import targets include a unit deleted
// this run.
type DanglingRef struct {
	Unit   string
	Target string
}

// Result describes one run. Impacted is ephemeral: it is recomputed every
// run and never persisted.
type Result struct {
	Scanned     int
	Changed     []string
	Deleted     []string
	Impacted    []string
	Dangling    []DanglingRef
	Built       bool
	Diagnostics string
	Duration    time.Duration
}

// NoChanges reports whether the run was a no-op.
func (r Result) NoChanges() bool {
	return len(r.Impacted) == 0 && len(r.Deleted) == 0
}

type Engine struct {
	cfg       *config.Config
	extractor extract.Extractor
	compiler  compiler.Compiler
	hashes    *hashstore.Store
	graph     *depgraph.Graph

	// OnImpacted, when set, is called with the impacted set after impact
	// analysis and before the compiler runs. Front-ends use it to show what
	// is about to be built.
	OnImpacted func([]string)
}

func New(cfg *config.Config, extractor extract.Extractor, comp compiler.Compiler) (*Engine, error) {
	hashes, err := hashstore.Load(cfg.HashStore)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:       cfg,
		extractor: extractor,
		compiler:  comp,
		hashes:    hashes,
		graph:     depgraph.New(),
	}, nil
}

// Graph returns the dependency graph from the most recent run.
func (e *Engine) Graph() *depgraph.Graph {
	return e.graph
}

// Run executes one full pipeline pass. Per-unit failures (extraction, record
// writes, cleanup) degrade gracefully; digest I/O, build and persistence
// failures abort the run.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	ctx, span := observability.Tracer.Start(ctx, "engine.Run")
	defer span.End()

	res, err := e.run(ctx)
	res.Duration = time.Since(start)

	observability.RunDuration.Observe(res.Duration.Seconds())
	observability.ImpactedUnits.Observe(float64(len(res.Impacted)))
	observability.GraphNodes.Set(float64(e.graph.Len()))
	observability.GraphEdges.Set(float64(e.graph.EdgeCount()))
	observability.RunsTotal.WithLabelValues(outcome(res, err)).Inc()

	span.SetAttributes(
		attribute.Int("rebuild.scanned", res.Scanned),
		attribute.Int("rebuild.impacted", len(res.Impacted)),
	)
	return res, err
}

func (e *Engine) run(ctx context.Context) (Result, error) {
	var res Result

	// Scan. The graph is rebuilt from scratch each run; extraction is cheap
	// compared to keeping it incrementally consistent.
	units, err := scan.Root(e.cfg.SourceRoot, e.cfg.UnitSuffix, e.cfg.Exclude)
	if err != nil {
		return res, err
	}
	res.Scanned = len(units)
	known := scan.Names(units)
	e.graph = depgraph.New()

	currentDigests := make(map[string]string, len(units))
	importTargets := make(map[string][]string, len(units))

	_, extractSpan := observability.Tracer.Start(ctx, "engine.extract")
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			extractSpan.End()
			return res, err
		}

		content, err := os.ReadFile(unit.Path)
		if err != nil {
			// An unreadable unit cannot be classified as changed or
			// unchanged, so the whole run stops here.
			extractSpan.End()
			return res, fmt.Errorf("read unit %s: %w", unit.ID, err)
		}
		currentDigests[unit.ID] = digest.Sum(content)

		extracted, err := e.extractor.Extract(unit, content, known)
		if err != nil {
			slog.Warn("extraction failed, unit contributes no references this run", "unit", unit.ID, "error", err)
			extracted = extract.Result{Refs: map[string]bool{}}
		}
		importTargets[unit.ID] = extracted.ImportTargets

		e.graph.SetRefs(unit.ID, extracted.Refs)
		if err := depgraph.WriteRecord(e.cfg.DepsDir, unit.ID, extracted.Refs); err != nil {
			slog.Warn("failed to write reference record", "unit", unit.ID, "error", err)
		}
	}
	extractSpan.End()

	// Change detection: digest diff against the store, with an absent entry
	// counting as changed. Deletion detection is the independent reverse
	// diff: stored units missing from the scan.
	for _, unit := range units {
		stored, ok := e.hashes.Get(unit.ID)
		if !ok || stored != currentDigests[unit.ID] {
			res.Changed = append(res.Changed, unit.ID)
		}
	}
	sort.Strings(res.Changed)

	current := make(map[string]bool, len(units))
	for _, unit := range units {
		current[unit.ID] = true
	}
	for _, unit := range e.hashes.Units() {
		if !current[unit] {
			res.Deleted = append(res.Deleted, unit)
		}
	}
	sort.Strings(res.Deleted)

	e.cleanupDeleted(res.Deleted)

	res.Dangling = e.findDangling(res.Deleted, importTargets)
	if err := e.applyDanglingPolicy(res.Dangling); err != nil {
		return res, err
	}

	res.Impacted = e.graph.Impacted(res.Changed)
	if e.OnImpacted != nil {
		e.OnImpacted(res.Impacted)
	}

	if len(res.Impacted) == 0 {
		// No-op run. Persist anyway so deletion cleanup reaches disk and the
		// store invariant (no entry for a nonexistent unit) holds durably.
		if err := e.hashes.Save(); err != nil {
			return res, err
		}
		return res, nil
	}

	paths := make([]string, 0, len(res.Impacted))
	for _, unit := range res.Impacted {
		paths = append(paths, filepath.Join(e.cfg.SourceRoot, unit))
	}
	if err := os.MkdirAll(e.cfg.ArtifactDir, 0755); err != nil {
		return res, fmt.Errorf("create artifact dir %s: %w", e.cfg.ArtifactDir, err)
	}

	compileCtx, compileSpan := observability.Tracer.Start(ctx, "engine.compile",
		trace.WithAttributes(attribute.Int("rebuild.units", len(paths))))
	compiled, err := e.compiler.Compile(compileCtx, paths, compiler.Options{ArtifactDir: e.cfg.ArtifactDir})
	compileSpan.End()
	if err != nil {
		return res, err
	}

	res.Built = true
	res.Diagnostics = compiled.Diagnostics
	if !compiled.Success {
		// Digests stay untouched: the same units reappear in the impacted
		// set next run even without further edits.
		return res, fmt.Errorf("%w for %d units: %s", ErrBuildFailed, len(res.Impacted), firstLine(compiled.Diagnostics))
	}

	// Commit: update digests for exactly the impacted set, then persist
	// atomically. Only an explicit success signal reaches this point.
	for _, unit := range res.Impacted {
		e.hashes.Set(unit, currentDigests[unit])
	}
	if err := e.hashes.Save(); err != nil {
		return res, err
	}
	return res, nil
}

// cleanupDeleted reclaims a deleted unit's hash entry, reference record,
// artifact and graph node. Best-effort per unit: one failed removal does not
// block the others.
func (e *Engine) cleanupDeleted(deleted []string) {
	for _, unit := range deleted {
		e.hashes.Delete(unit)
		e.graph.Remove(unit)

		if err := depgraph.RemoveRecord(e.cfg.DepsDir, unit); err != nil {
			slog.Warn("failed to remove reference record", "unit", unit, "error", err)
		}

		artifact := filepath.Join(e.cfg.ArtifactDir, strings.TrimSuffix(unit, e.cfg.UnitSuffix)+e.cfg.ArtifactSuffix)
		if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove artifact", "unit", unit, "artifact", artifact, "error", err)
		}
	}
}

// findDangling reports units whose declared import targets name a unit
// deleted this run.
func (e *Engine) findDangling(deleted []string, importTargets map[string][]string) []DanglingRef {
	if len(deleted) == 0 {
		return nil
	}

	deletedSet := make(map[string]bool, len(deleted))
	for _, unit := range deleted {
		deletedSet[unit] = true
	}

	var dangling []DanglingRef
	for unit, targets := range importTargets {
		for _, target := range targets {
			if deletedSet[target+e.cfg.UnitSuffix] {
				dangling = append(dangling, DanglingRef{Unit: unit, Target: target + e.cfg.UnitSuffix})
			}
		}
	}
	sort.Slice(dangling, func(i, j int) bool {
		if dangling[i].Unit != dangling[j].Unit {
			return dangling[i].Unit < dangling[j].Unit
		}
		return dangling[i].Target < dangling[j].Target
	})
	return dangling
}

func (e *Engine) applyDanglingPolicy(dangling []DanglingRef) error {
	if len(dangling) == 0 {
		return nil
	}
	switch e.cfg.Dangling {
	case "error":
		return fmt.Errorf("%w: %d units import deleted units (first: %s imports %s)",
			ErrDanglingRefs, len(dangling), dangling[0].Unit, dangling[0].Target)
	case "warn":
		for _, d := range dangling {
			slog.Warn("unit imports a deleted unit", "unit", d.Unit, "target", d.Target)
		}
	}
	return nil
}

func outcome(res Result, err error) string {
	switch {
	case errors.Is(err, ErrBuildFailed):
		return observability.OutcomeBuildFailed
	case err != nil:
		return observability.OutcomeError
	case res.Built:
		return observability.OutcomeBuilt
	default:
		return observability.OutcomeNoop
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
