// Package cmd defines and implements the CLI commands for the jobhunter executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/app"
	"github.com/JakeFAU/jobhunter/internal/config"
	"github.com/JakeFAU/jobhunter/internal/logging"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitSetup        = 1
	ExitTotalFailure = 2
)

// reportTimeout bounds publishing a run summary after the stage finished.
const reportTimeout = 10 * time.Second

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func setupError(err error) error {
	return &ExitError{Code: ExitSetup, Err: err}
}

// ExitCode maps a command error onto a process exit code. Errors that carry
// no code are setup errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitSetup
}

// newApp is the application factory. It's a variable so tests can swap it.
var newApp = app.New

// cli holds the state shared by the commands of one invocation.
type cli struct {
	configPath string
	app        *app.App
}

// newRootCmd creates and configures the root command.
func (c *cli) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobhunter",
		Short: "A batch pipeline that harvests, normalises and loads job listings.",
		Long: `jobhunter queries a job search API for every configured position and
location, keeps each listing in a raw folder, normalises the raw folder into a
processed folder and loads the processed records into a relational table
keyed by company and title.`,
		SilenceUsage: true,

		// Builds the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return setupError(fmt.Errorf("load config: %w", err))
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return setupError(fmt.Errorf("init logger: %w", err))
			}
			logger.Debug("configuration loaded", zap.Any("config", cfg.Redacted()))

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return setupError(fmt.Errorf("failed to initialize application services: %w", err))
			}
			c.app = appInstance
			return nil
		},

		PersistentPostRun: func(*cobra.Command, []string) {
			c.close()
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (defaults and environment only when empty)")

	cmd.AddCommand(c.newExtractCmd())
	cmd.AddCommand(c.newProcessCmd())
	cmd.AddCommand(c.newLoadCmd())

	return cmd
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
		c.app = nil
	}
}

// report publishes the stage summary on a context that outlives an
// interrupted stage.
func (c *cli) report(ctx context.Context, stage string, succeeded bool, summary any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	c.app.Report(ctx, stage, succeeded, summary)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stderr)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	c := &cli{}
	root := c.newRootCmd()
	root.SetArgs(args)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	// PersistentPostRun is skipped when a command fails.
	c.close()
	return ExitCode(err)
}
