package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rebuild/internal/config"
	"rebuild/internal/engine"
)

var (
	configPath = flag.String("config", "./rebuild.toml", "Path to config file")
	watch      = flag.Bool("watch", false, "Keep running and rebuild on file changes")
	ui         = flag.Bool("ui", false, "Enable terminal UI mode (implies --watch)")
	showHist   = flag.Bool("history", false, "Print recent run history and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("rebuild v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stderr
	if *ui {
		// In UI mode, avoid stderr logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
			output = f
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config. Without a config file the conventional src/bin layout
	// applies.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) || isFlagSet("config") {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	if flag.NArg() > 0 {
		cfg.SourceRoot = flag.Arg(0)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx := context.Background()

	if *showHist {
		if err := printHistory(app); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	if err := app.StartObservability(ctx); err != nil {
		slog.Error("failed to start observability", "error", err)
		os.Exit(1)
	}

	if !*ui {
		app.Engine.OnImpacted = func(impacted []string) {
			if len(impacted) > 0 {
				fmt.Printf("Rebuilding %d units: %s\n", len(impacted), strings.Join(impacted, " "))
			}
		}
	}

	// Initial run happens in every mode.
	res, runErr := app.RunOnce(ctx)
	if !*ui {
		app.PrintSummary(res, runErr)
	}
	if runErr != nil && !*watch && !*ui {
		if errors.Is(runErr, engine.ErrBuildFailed) {
			os.Exit(1)
		}
		os.Exit(2)
	}

	if !*watch && !*ui {
		return
	}

	// Watch mode
	if err := app.StartWatcher(); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if *ui {
		if err := app.RunUI(); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
	} else {
		// Block forever
		select {}
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "rebuild", "rebuild.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "rebuild", "rebuild.log")
	}

	return "rebuild.log"
}

func printHistory(app *App) error {
	if app.History == nil {
		return fmt.Errorf("no history database configured (set history_db in %s)", *configPath)
	}

	runs, err := app.History.LoadRuns(time.Time{})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		status := "ok"
		if !r.Success {
			status = "failed"
		} else if !r.Built {
			status = "noop"
		}
		fmt.Printf("%s  %-6s  scanned=%d changed=%d deleted=%d impacted=%d in %v\n",
			r.Timestamp.Local().Format("2006-01-02 15:04:05"), status,
			r.Scanned, r.Changed, r.Deleted, r.Impacted, r.Duration.Round(time.Millisecond))
	}
	return nil
}
