package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rebuild/internal/compiler"
	"rebuild/internal/config"
	"rebuild/internal/engine"
	"rebuild/internal/extract"
	"rebuild/internal/history"
	"rebuild/internal/observability"
	"rebuild/internal/util"
	"rebuild/internal/watcher"
)

type App struct {
	Config  *config.Config
	Engine  *engine.Engine
	History *history.Store

	watcher     *watcher.Watcher
	limiter     *util.Limiter
	obsServer   *observability.Server
	stopTracing func(context.Context) error
	teaProgram  *tea.Program

	mu   sync.Mutex
	last engine.Result
}

func NewApp(cfg *config.Config) (*App, error) {
	extractor, err := buildExtractor(cfg)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(cfg, extractor, &compiler.Exec{
		Command: cfg.Compiler.Command,
		Args:    cfg.Compiler.Args,
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Engine: eng}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		a.History = store
	}

	return a, nil
}

func buildExtractor(cfg *config.Config) (extract.Extractor, error) {
	switch cfg.Extractor {
	case "ast":
		return extract.NewSitterExtractor(cfg.UnitSuffix)
	default:
		return &extract.ScanExtractor{}, nil
	}
}

// StartObservability brings up the /metrics endpoint and OTLP trace export
// when configured. Both are opt-in.
func (a *App) StartObservability(ctx context.Context) error {
	if a.Config.Metrics.Addr != "" {
		a.obsServer = observability.NewServer(a.Config.Metrics.Addr, a.healthStatus)
		if err := a.obsServer.Start(); err != nil {
			return err
		}
	}

	if a.Config.Metrics.OTLP != "" {
		stop, err := observability.SetupTracing(ctx, a.Config.Metrics.OTLP)
		if err != nil {
			return err
		}
		a.stopTracing = stop
	}

	return nil
}

func (a *App) healthStatus() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{
		"status":   "up",
		"scanned":  a.last.Scanned,
		"impacted": len(a.last.Impacted),
		"built":    a.last.Built,
	}
}

// RunOnce executes one engine pass, records it in history and notifies the
// TUI if one is attached. The run result is returned even on build failure
// so callers can show diagnostics.
func (a *App) RunOnce(ctx context.Context) (engine.Result, error) {
	res, err := a.Engine.Run(ctx)

	a.mu.Lock()
	a.last = res
	a.mu.Unlock()

	if a.History != nil {
		record := history.Run{
			Scanned:     res.Scanned,
			Changed:     len(res.Changed),
			Deleted:     len(res.Deleted),
			Impacted:    len(res.Impacted),
			Built:       res.Built,
			Success:     err == nil,
			Duration:    res.Duration,
			Diagnostics: res.Diagnostics,
		}
		if saveErr := a.History.SaveRun(record); saveErr != nil {
			slog.Warn("failed to record run history", "error", saveErr)
		}
	}

	if a.teaProgram != nil {
		a.teaProgram.Send(runMsg{result: res, err: err})
	}

	return res, err
}

// StartWatcher begins watch mode: debounced filesystem changes trigger full
// engine runs, throttled by the configured rate limit.
func (a *App) StartWatcher() error {
	a.limiter = util.NewPerMinute(a.Config.Watch.MaxRunsPerMinute)

	w, err := watcher.New(
		a.Config.Watch.Debounce,
		a.Config.UnitSuffix,
		a.Config.Exclude,
		a.handleChanges,
	)
	if err != nil {
		return err
	}
	a.watcher = w

	return w.Watch(a.Config.SourceRoot)
}

func (a *App) handleChanges(names []string) {
	slog.Info("detected changes", "count", len(names), "units", names)

	if !a.limiter.Allow() {
		slog.Warn("run throttled, rate limit reached", "limit_per_minute", a.Config.Watch.MaxRunsPerMinute)
		return
	}

	res, err := a.RunOnce(context.Background())
	if a.teaProgram == nil {
		a.PrintSummary(res, err)
	}
}

// PrintSummary writes the human-readable outcome of one run to stdout.
func (a *App) PrintSummary(res engine.Result, err error) {
	switch {
	case err != nil && errors.Is(err, engine.ErrBuildFailed):
		fmt.Printf("Build failed for %d units:\n%s\n", len(res.Impacted), strings.TrimSpace(res.Diagnostics))
	case err != nil:
		fmt.Printf("Run failed: %v\n", err)
	case res.NoChanges():
		fmt.Println("No changes detected.")
	case len(res.Impacted) == 0:
		fmt.Printf("Cleaned up %d deleted units, nothing to build.\n", len(res.Deleted))
	default:
		fmt.Printf("Built %d units (%d changed, %d deleted) in %v\n",
			len(res.Impacted), len(res.Changed), len(res.Deleted), res.Duration.Round(time.Millisecond))
	}

	for _, d := range res.Dangling {
		fmt.Printf("  warning: %s imports deleted unit %s\n", d.Unit, d.Target)
	}
}

// RunUI hands the terminal to bubbletea. The watcher keeps feeding runs via
// RunOnce, which sends runMsg updates into the program.
func (a *App) RunUI() error {
	m := initialModel(a)
	p := tea.NewProgram(m, tea.WithAltScreen())
	a.teaProgram = p

	_, err := p.Run()
	return err
}

func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.obsServer != nil {
		_ = a.obsServer.Stop(context.Background())
	}
	if a.stopTracing != nil {
		_ = a.stopTracing(context.Background())
	}
	if a.History != nil {
		_ = a.History.Close()
	}
}
