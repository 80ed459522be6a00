package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// newProcessCmd creates the 'process' subcommand, which normalises the raw
// folder into the processed folder.
func (c *cli) newProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Normalise raw listings into the processed folder",
		Args:  cobra.NoArgs,
		RunE:  c.runProcess,
	}
}

func (c *cli) runProcess(cmd *cobra.Command, _ []string) error {
	logger := c.app.Logger()
	logger.Info("process command started")

	summary, err := c.app.Processor().Run(cmd.Context())
	failed := err != nil || summary.TotalFailure()
	c.report(cmd.Context(), "process", !failed, summary)

	if err != nil {
		return &ExitError{Code: ExitTotalFailure, Err: fmt.Errorf("process: %w", err)}
	}
	if failed {
		logger.Error("process command failed", zap.Int("failed", summary.Failed))
		return &ExitError{Code: ExitTotalFailure, Err: fmt.Errorf("process: %w: %d records failed", jobs.ErrTotalFailure, summary.Failed)}
	}
	logger.Info("process command finished",
		zap.Int("written", summary.Written),
		zap.Int("dropped", summary.Dropped),
		zap.Int("failed", summary.Failed),
	)
	return nil
}
