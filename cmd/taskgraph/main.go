package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/mkarlsson/taskgraph/pkg/audit"
	"github.com/mkarlsson/taskgraph/pkg/config"
	"github.com/mkarlsson/taskgraph/pkg/logging"
	"github.com/mkarlsson/taskgraph/pkg/model"
	"github.com/mkarlsson/taskgraph/pkg/mutate"
	"github.com/mkarlsson/taskgraph/pkg/output"
	"github.com/mkarlsson/taskgraph/pkg/service"
	"github.com/mkarlsson/taskgraph/pkg/store"
	"github.com/mkarlsson/taskgraph/pkg/watcher"
	"github.com/mkarlsson/taskgraph/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("taskgraph", pflag.ExitOnError)
	flags.String("store", "tasks.json", "Path to the task collection file")
	flags.String("changelog", "task-changes.jsonl", "Path to the change-log sink")
	flags.String("checks", "full", "Comma-separated audit checks (cycles,logical,orphans,redundant,critical-path,full)")
	flags.Bool("fix", false, "Apply mechanical fixes during audit")
	flags.Bool("web", false, "Serve reports over HTTP instead of printing to console")
	flags.Int("port", 8080, "Port for web mode")
	flags.Bool("watch", false, "Re-audit when the store file changes (web mode)")
	flags.String("type", "", "Dependency type for add (defaults to blocking)")
	flags.String("reason", "", "Reason recorded with the change")
	flags.Bool("force", false, "Override cycle, type, and removal warnings")
	flags.Bool("cascade", false, "Also remove edges made redundant by a removal")
	flags.String("verbosity", "", "Log level (debug, info, warn, error)")
	flags.CountP("verbose", "v", "Increase log verbosity (-v, -vv)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: taskgraph [flags]                       audit the task graph\n")
		fmt.Fprintf(os.Stderr, "       taskgraph [flags] add <task> <dep>      add a dependency edge\n")
		fmt.Fprintf(os.Stderr, "       taskgraph [flags] remove <task> <dep>   remove a dependency edge\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	st := store.NewStore(cfg.Store)

	switch args := flags.Args(); {
	case len(args) == 0:
		if cfg.WebMode {
			runWeb(st, cfg)
			return
		}
		runAudit(st, cfg)

	case args[0] == "add" && len(args) == 3:
		runAdd(st, cfg, args[1], args[2], flags)

	case args[0] == "remove" && len(args) == 3:
		runRemove(st, cfg, args[1], args[2], flags)

	default:
		flags.Usage()
		os.Exit(2)
	}
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelWarn
	switch {
	case cfg.Verbosity != "":
		switch cfg.Verbosity {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			fmt.Fprintf(os.Stderr, "Unknown verbosity: %s\n", cfg.Verbosity)
			os.Exit(2)
		}
	case cfg.VerboseCnt >= 2:
		level = slog.LevelDebug
	case cfg.VerboseCnt == 1:
		level = slog.LevelInfo
	}
	logging.SetLevel(level)
}

func runAudit(st *store.Store, cfg *config.Config) {
	runner := service.NewAuditRunner(st, nil)
	report, err := runner.Run(context.Background(), service.RunOptions{
		Checks:  audit.ParseChecks(cfg.Checks),
		AutoFix: cfg.AutoFix,
		Reason:  "cli audit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	output.PrintAuditReport(st.Path(), report)

	if report.Summary.Critical > 0 {
		os.Exit(1)
	}
}

func runAdd(st *store.Store, cfg *config.Config, taskID, dependsOnID string, flags *pflag.FlagSet) {
	typ, _ := flags.GetString("type")
	reason, _ := flags.GetString("reason")
	force, _ := flags.GetBool("force")

	sink := store.NewChangeLog(cfg.ChangeLog)

	err := st.Update(func(c *model.TaskCollection) error {
		m := mutate.NewMutator(c, sink)
		result, err := m.AddDependency(taskID, dependsOnID, model.DependencyType(typ), mutate.AddOptions{
			Reason: reason,
			Force:  force,
		})
		if err != nil {
			return err
		}

		if result.AlreadyExists {
			fmt.Printf("Dependency %s -> %s already exists\n", taskID, dependsOnID)
			return nil
		}
		fmt.Printf("Added dependency %s -> %s\n", taskID, dependsOnID)
		for _, warning := range result.Warnings {
			fmt.Printf("  Warning: %s\n", warning)
		}
		if result.Impact != nil {
			fmt.Printf("  Impact: %d direct dependent(s), chain depth %d\n",
				result.Impact.DirectDependents, result.Impact.DependencyChain)
		}
		return nil
	})
	if err != nil {
		exitMutationError(err)
	}
}

func runRemove(st *store.Store, cfg *config.Config, taskID, dependsOnID string, flags *pflag.FlagSet) {
	force, _ := flags.GetBool("force")
	cascade, _ := flags.GetBool("cascade")

	sink := store.NewChangeLog(cfg.ChangeLog)

	err := st.Update(func(c *model.TaskCollection) error {
		m := mutate.NewMutator(c, sink)
		result, err := m.RemoveDependency(taskID, dependsOnID, mutate.RemoveOptions{
			Force:          force,
			CascadeRemoval: cascade,
		})
		if err != nil {
			return err
		}

		if result.NotFound {
			fmt.Printf("Dependency %s -> %s does not exist\n", taskID, dependsOnID)
			return nil
		}
		fmt.Printf("Removed dependency %s -> %s\n", taskID, dependsOnID)
		for _, warning := range result.Warnings {
			fmt.Printf("  Warning: %s\n", warning.Message)
		}
		for _, cascaded := range result.Cascades {
			fmt.Printf("  Cascade: removed %s -> %s\n", cascaded.TaskID, cascaded.RemovedDependency)
		}
		return nil
	})
	if err != nil {
		exitMutationError(err)
	}
}

// exitMutationError prints typed mutation failures with their details before
// exiting
func exitMutationError(err error) {
	var cycleErr *mutate.CircularDependencyError
	var typeErr *mutate.DependencyTypeError
	var removalErr *mutate.RemovalWarningError

	switch {
	case errors.As(err, &cycleErr):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use --force to add it anyway.\n")
	case errors.As(err, &typeErr):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use --force to add it anyway.\n")
	case errors.As(err, &removalErr):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, warning := range removalErr.Warnings {
			fmt.Fprintf(os.Stderr, "  %s\n", warning.Message)
		}
		fmt.Fprintf(os.Stderr, "Use --force to remove it anyway.\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func runWeb(st *store.Store, cfg *config.Config) {
	server := web.NewServer()
	runner := service.NewAuditRunner(st, server)

	url := fmt.Sprintf("http://localhost:%d", cfg.Port)
	fmt.Printf("Starting web server on %s\n", url)

	go func() {
		if err := server.Start(cfg.Port); err != nil {
			logging.Fatal("failed to start server", "error", err)
		}
	}()

	ctx := context.Background()
	opts := service.RunOptions{
		Checks:  audit.ParseChecks(cfg.Checks),
		AutoFix: cfg.AutoFix,
		Reason:  "initial audit",
	}

	// Initial audit in the background so the server is reachable immediately
	go func() {
		if _, err := runner.Run(ctx, opts); err != nil {
			logging.Error("initial audit failed", "error", err)
		}
	}()

	if !cfg.Watch {
		select {}
	}

	sw, err := watcher.NewStoreWatcher(cfg.Store)
	if err != nil {
		logging.Fatal("failed to create store watcher", "error", err)
	}
	if err := sw.Start(ctx); err != nil {
		logging.Fatal("failed to start store watcher", "error", err)
	}

	debouncer := watcher.NewDebouncer(sw.Events(), 500*time.Millisecond, 5*time.Second)
	debouncer.Start(ctx)

	for range debouncer.Output() {
		reaudit := opts
		reaudit.Reason = "store changed"
		if _, err := runner.Run(ctx, reaudit); err != nil {
			logging.Error("re-audit failed", "error", err)
		}
	}
}
