package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/ticket-automation/internal/config"
	"github.com/mikey/ticket-automation/internal/core"
	"github.com/mikey/ticket-automation/internal/dashboard"
	"github.com/mikey/ticket-automation/internal/di"
	"github.com/mikey/ticket-automation/internal/digest"
	"github.com/mikey/ticket-automation/internal/monitor"
	"github.com/mikey/ticket-automation/internal/status"
)

var (
	configFile = pflag.StringP("config", "c", "", "Path to config file")
	dashMode   = pflag.BoolP("dashboard", "d", false, "Run the interactive terminal dashboard")
	onceMode   = pflag.Bool("once", false, "Process the unread messages once and exit")
	logOutput  = pflag.String("log-output", "", "Write logs to this file instead of stderr")
)

func main() {
	pflag.Parse()

	if *dashMode && *onceMode {
		fmt.Fprintln(os.Stderr, "--dashboard and --once cannot be combined")
		os.Exit(2)
	}

	// Build the dependency injection container
	container, err := di.BuildContainer(di.Options{
		ConfigFile: *configFile,
		LogOutput:  *logOutput,
		Dashboard:  *dashMode,
	})
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	dig.In

	Config     *config.Config
	Logger     *zap.Logger
	Supervisor *monitor.Supervisor
	Loops      monitor.LoopFactory
	Board      *status.Board
	Reporter   *digest.Reporter
	Ledger     core.Ledger
	Summarizer core.Summarizer
}

// run is the main application function that gets all dependencies injected
func run(a app) error {
	defer a.Logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defer shutdown(a)

	notifyCfg, err := a.Config.GetNotify()
	if err != nil {
		return err
	}

	switch {
	case *onceMode:
		return runOnce(ctx, a, notifyCfg.Enabled)
	case *dashMode:
		return runDashboard(ctx, a)
	}

	if err := a.Supervisor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitoring: %w", err)
	}
	if notifyCfg.Enabled {
		go a.Reporter.Run(ctx)
	}

	<-ctx.Done()
	a.Logger.Info("Shutting down...")
	a.Supervisor.Stop()
	return nil
}

func runOnce(ctx context.Context, a app, notify bool) error {
	loop, err := a.Loops()
	if err != nil {
		return err
	}
	if err := loop.RunOnce(ctx); err != nil {
		return fmt.Errorf("monitoring cycle failed: %w", err)
	}

	stats := a.Board.Stats()
	a.Logger.Info("Cycle complete",
		zap.Int("processed", stats.Processed),
		zap.Int("errors", stats.Errors))

	if notify {
		if err := a.Reporter.SendNow(ctx); err != nil {
			a.Logger.Error("Failed to send digest", zap.Error(err))
		}
	}
	return nil
}

func runDashboard(ctx context.Context, a app) error {
	dashCfg, err := a.Config.GetDashboard()
	if err != nil {
		return err
	}

	model := dashboard.NewModel(ctx, a.Board, a.Supervisor, dashCfg.RefreshRate)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	a.Supervisor.Stop()
	return nil
}

// shutdown releases resources in reverse order of creation
func shutdown(a app) {
	if closer, ok := a.Summarizer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.Logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	a.Ledger.Stop()
	a.Board.Close()

	a.Logger.Info("Shutdown complete")
}
