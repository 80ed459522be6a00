package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobhunter/internal/jobs"
)

// newExtractCmd creates the 'extract' subcommand, which harvests every
// configured position and location into the raw folder.
func (c *cli) newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Harvest job listings into the raw folder",
		Args:  cobra.NoArgs,
		RunE:  c.runExtract,
	}
}

func (c *cli) runExtract(cmd *cobra.Command, _ []string) error {
	logger := c.app.Logger()
	logger.Info("extract command started")

	driver, err := c.app.Extractor()
	if err != nil {
		return setupError(fmt.Errorf("init extractor: %w", err))
	}

	summary := driver.Run(cmd.Context())
	failed := summary.TotalFailure()
	c.report(cmd.Context(), "extract", !failed, summary)

	if failed {
		logger.Error("extract command failed", zap.String("error", summary.Error))
		return &ExitError{Code: ExitTotalFailure, Err: extractFailure(summary.Err)}
	}
	if summary.Partial() {
		logger.Warn("extract command finished with failures",
			zap.Int("pairs_completed", summary.PairsCompleted),
			zap.Int("pairs", summary.Pairs),
			zap.Int("pages_failed", summary.Harvest.PagesFailed),
		)
		return nil
	}
	logger.Info("extract command finished", zap.Int("records", summary.Records))
	return nil
}

func extractFailure(err error) error {
	if err != nil {
		return fmt.Errorf("extract: %w: %w", jobs.ErrTotalFailure, err)
	}
	return fmt.Errorf("extract: %w: every page failed", jobs.ErrTotalFailure)
}
