package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sumithkumar07/aetherflow/internal/completion"
	"github.com/sumithkumar07/aetherflow/internal/config"
	"github.com/sumithkumar07/aetherflow/internal/executor"
	"github.com/sumithkumar07/aetherflow/internal/natsbus"
	"github.com/sumithkumar07/aetherflow/internal/notify"
	"github.com/sumithkumar07/aetherflow/internal/orchestrator"
	"github.com/sumithkumar07/aetherflow/internal/roster"
	"github.com/sumithkumar07/aetherflow/internal/scheduler"
	"github.com/sumithkumar07/aetherflow/internal/selector"
	"github.com/sumithkumar07/aetherflow/internal/store"
	"github.com/sumithkumar07/aetherflow/internal/tracker"
	"github.com/sumithkumar07/aetherflow/internal/vault"
	"github.com/sumithkumar07/aetherflow/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("aetherflow %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	case "secret":
		if err := runSecret(os.Args[2:]); err != nil {
			slog.Error("secret command failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: aetherflow <command>

Commands:
  serve      Start the orchestration service
  backup     Archive the data directory
  restore    Restore a data directory archive
  secret     Manage agent secrets
  version    Print version
`)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting aetherflow", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", cfg.NATS.Port)

	// Agent roster
	reg, err := roster.New(db, cfg.Roster)
	if err != nil {
		return fmt.Errorf("build roster: %w", err)
	}
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync roster: %w", err)
	}
	slog.Info("roster loaded", "agents", reg.Len())

	// Secrets vault
	var v *vault.Vault
	if cfg.Vault.Passphrase != "" {
		v = vault.New(cfg.Vault.Passphrase)
	} else {
		slog.Warn("vault passphrase not set, agent credentials disabled")
	}

	// Completion client over NATS
	client, err := completion.NewNATSClient(bus, db, v)
	if err != nil {
		return fmt.Errorf("init completion client: %w", err)
	}
	defer client.Close()

	// Pipeline
	exec := executor.New(client, reg, executor.Options{
		CallTimeout: cfg.Executor.CallTimeout,
		HaltOnError: cfg.Executor.HaltOnError,
	})
	trk := tracker.New(cfg.Tracker.Retention, cfg.Tracker.SweepEvery)
	go trk.Run(ctx)

	events, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init events client: %w", err)
	}
	defer events.Close()

	orch := orchestrator.New(nil, selector.New(reg), exec, trk, db, events)

	// Scheduler
	sched := scheduler.New(db, orch, events, cfg.Scheduler)
	go sched.Start(ctx)

	// Telegram notices
	notifier, err := notify.New(cfg.Notify, bus)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	if notifier != nil {
		go func() {
			if err := notifier.Start(ctx); err != nil {
				slog.Error("notifier error", "error", err)
			}
		}()
	}

	// Web API
	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, orch, reg, v, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
		slog.Info("web server started", "port", cfg.Web.Port)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	// Let in-flight workflows reach a terminal state
	orch.Wait()
	return nil
}
