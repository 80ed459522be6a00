package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// newLoadCmd creates the 'load' subcommand, which upserts the processed
// folder into the relational store.
func (c *cli) newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Upsert processed listings into the database",
		Args:  cobra.NoArgs,
		RunE:  c.runLoad,
	}
}

func (c *cli) runLoad(cmd *cobra.Command, _ []string) error {
	logger := c.app.Logger()
	logger.Info("load command started")

	loader, err := c.app.Loader(cmd.Context())
	if err != nil {
		return setupError(fmt.Errorf("init loader: %w", err))
	}

	summary, err := loader.Run(cmd.Context())
	failed := err != nil || summary.TotalFailure()
	c.report(cmd.Context(), "load", !failed, summary)

	if err != nil {
		return &ExitError{Code: ExitTotalFailure, Err: fmt.Errorf("load: %w", err)}
	}
	if failed {
		logger.Error("load command failed", zap.Int("failed", summary.Upsert.Failed))
		return &ExitError{Code: ExitTotalFailure, Err: fmt.Errorf("load: %w: no record was stored", jobs.ErrTotalFailure)}
	}
	logger.Info("load command finished",
		zap.Int("read", summary.Read),
		zap.Int("written", summary.Upsert.Written()),
		zap.Int("skipped", summary.Upsert.Skipped),
	)
	return nil
}
