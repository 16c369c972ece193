package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/aristath/buildrunner/internal/collate"
	"github.com/aristath/buildrunner/internal/command"
	"github.com/aristath/buildrunner/internal/config"
	"github.com/aristath/buildrunner/internal/ctxlog"
	"github.com/aristath/buildrunner/internal/events"
	"github.com/aristath/buildrunner/internal/history"
	"github.com/aristath/buildrunner/internal/runner"
	"github.com/aristath/buildrunner/internal/scheduler"
	"github.com/aristath/buildrunner/internal/terminal"
	"github.com/aristath/buildrunner/internal/tui"
)

// NewRunCommand returns the run subcommand.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute the project's task graph",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress non-failure output",
			},
			&cli.StringFlag{
				Name:    "parallelism",
				Aliases: []string{"p"},
				Usage:   "Concurrent task slots: a positive integer or \"max\"",
			},
			&cli.BoolFlag{
				Name:  "changed-only",
				Usage: "Restrict tasks to changed projects (forwarded to task scripts)",
			},
			&cli.BoolFlag{
				Name:  "allow-warnings",
				Usage: "Warnings do not fail the build",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Show a live progress view while the build runs",
			},
			&cli.StringFlag{
				Name:  "history",
				Usage: "SQLite run history path (overrides config)",
			},
		},
		Action: runBuild,
	}
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd.Bool("debug"))
	ctx = ctxlog.WithLogger(ctx, logger)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyFlags(cfg, cmd)

	if len(cfg.Tasks) == 0 {
		return fmt.Errorf("no tasks configured in %s", cmd.String("config"))
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	opts := runner.Options{
		Quiet:               cfg.QuietMode,
		Parallelism:         string(cfg.Parallelism),
		ChangedProjectsOnly: cfg.ChangedProjectsOnly,
		AllowWarnings:       cfg.AllowWarningsInSuccessfulBuild,
	}

	var bus *events.Bus
	var buffered *terminal.Buffer
	if cmd.Bool("watch") {
		bus = events.NewBus()
		defer bus.Close()
		opts.Bus = bus
		// The watch view owns the tty while the build runs. Collator
		// blocks are buffered and replayed once the view exits, so the
		// two never write to the screen at the same time.
		buffered = terminal.NewBuffer()
		opts.Terminal = buffered
	}

	engine, err := runner.New(registry, opts)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	var runErr error
	if bus != nil {
		runErr = executeWatched(ctx, engine, bus)
		buffered.Flush(terminal.NewConsole(os.Stdout, os.Stderr))
	} else {
		runErr = engine.Execute(ctx)
	}
	duration := time.Since(startedAt)

	if path := historyPath(cfg, cmd); path != "" && shouldRecord(runErr, engine.Results()) {
		verdict := "success"
		switch {
		case runErr != nil:
			verdict = "failure"
		case len(engine.Report().Warned()) > 0:
			verdict = "success with warnings"
		}
		recordRun(ctx, logger, path, startedAt, duration, verdict, engine.Results())
	}

	return runErr
}

// executeWatched runs the engine in the background while the watch view
// owns the terminal. The build's outcome is reported after the view exits.
func executeWatched(ctx context.Context, engine *runner.Engine, bus *events.Bus) error {
	p := tea.NewProgram(tui.New(bus), tea.WithContext(ctx))

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Execute(ctx)
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch view failed: %w", err)
	}
	return <-errCh
}

// buildRegistry translates the configured task graph into a registry.
// Tasks register in name order so runs are reproducible; edges go in
// afterwards, once every endpoint exists.
func buildRegistry(cfg *config.Config) (*scheduler.Registry, error) {
	registry := scheduler.NewRegistry()

	names := make([]string, 0, len(cfg.Tasks))
	for name := range cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := cfg.Tasks[name]
		task := &scheduler.Task{
			Name: name,
			Runner: &command.Command{
				Script:                    tc.Command,
				IsIncrementalBuildAllowed: tc.IsIncrementalBuildAllowed,
				ChangedProjectsOnly:       cfg.ChangedProjectsOnly,
			},
			IsIncrementalBuildAllowed: tc.IsIncrementalBuildAllowed,
			HadEmptyScript:            tc.Command == "",
		}
		if err := registry.AddTask(task); err != nil {
			return nil, err
		}
	}

	for _, name := range names {
		if deps := cfg.Tasks[name].DependsOn; len(deps) > 0 {
			if err := registry.AddDependencies(name, deps); err != nil {
				return nil, err
			}
		}
	}

	return registry, nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	globalPath := filepath.Join(homeDir, ".buildrunner", "config.json")
	return config.Load(globalPath, cmd.String("config"))
}

func applyFlags(cfg *config.Config, cmd *cli.Command) {
	if cmd.Bool("quiet") {
		cfg.QuietMode = true
	}
	if cmd.IsSet("parallelism") {
		cfg.Parallelism = config.Parallelism(cmd.String("parallelism"))
	}
	if cmd.Bool("changed-only") {
		cfg.ChangedProjectsOnly = true
	}
	if cmd.Bool("allow-warnings") {
		cfg.AllowWarningsInSuccessfulBuild = true
	}
	if cmd.IsSet("history") {
		cfg.HistoryPath = cmd.String("history")
	}
}

// shouldRecord reports whether a run belongs in the history. A run that
// failed before dispatching anything, such as a cyclic graph, produced
// no task outcomes and is not recorded.
func shouldRecord(runErr error, results []runner.TaskResult) bool {
	if len(results) > 0 || runErr == nil {
		return true
	}
	var buildErr *collate.BuildFailedError
	return errors.As(runErr, &buildErr)
}

func historyPath(cfg *config.Config, cmd *cli.Command) string {
	if cmd.IsSet("history") {
		return cmd.String("history")
	}
	return cfg.HistoryPath
}

// recordRun stores the run summary. Failures here never change the
// build's outcome; they are logged and dropped.
func recordRun(ctx context.Context, logger *slog.Logger, path string, startedAt time.Time, duration time.Duration, verdict string, results []runner.TaskResult) {
	store, err := history.Open(ctx, path)
	if err != nil {
		logger.Warn("failed to open run history", "path", path, "error", err)
		return
	}
	defer store.Close()

	if _, err := store.RecordRun(ctx, startedAt, duration, verdict, results); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
