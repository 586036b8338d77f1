package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/pitch-ingest/internal/ingest"
)

func newURLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "urls",
		Short: "Builds the urls index for the configured date range",
		Long: `Discovers the games of every configured day, then the pitchers of
every game, and writes one urls row per pitcher appearance. Rows already
stored are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			c := svc.Config().Crawl
			sum := svc.BuildURLIndex(cmd.Context(), c.Years, c.Months, c.Days)
			return report(cmd.OutOrStdout(), svc.Logger(), sum)
		},
	}
}

func newPitchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pitches",
		Short: "Builds full_pitches from the stored urls index",
		Long: `Reads the stored urls rows of every configured month, fetches the
left- and right-handed batter split of each appearance, and writes one
full_pitches row per pitch type and side.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			c := svc.Config().Crawl
			sum := svc.BuildPitchIndex(cmd.Context(), c.Years, c.Months)
			return report(cmd.OutOrStdout(), svc.Logger(), sum)
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Builds the urls index, then full_pitches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			c := svc.Config().Crawl
			urlsErr := report(cmd.OutOrStdout(), svc.Logger(),
				svc.BuildURLIndex(cmd.Context(), c.Years, c.Months, c.Days))
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			pitchErr := report(cmd.OutOrStdout(), svc.Logger(),
				svc.BuildPitchIndex(cmd.Context(), c.Years, c.Months))
			if urlsErr != nil {
				return urlsErr
			}
			return pitchErr
		},
	}
}

// report writes the summary as one JSON line and fails when any monthly batch
// could not be written.
func report(w io.Writer, logger *zap.Logger, sum ingest.Summary) error {
	logger.Info("run finished",
		zap.String("run_id", sum.RunID),
		zap.String("table", sum.Table),
		zap.Int("months", sum.Months),
		zap.Int64("fetched", sum.Fetched),
		zap.Int("records", sum.Records),
		zap.Int64("inserted", sum.Inserted),
		zap.Int("failed_batches", sum.FailedBatches),
	)
	if err := json.NewEncoder(w).Encode(sum); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if sum.FailedBatches > 0 {
		return fmt.Errorf("%s: %d of %d monthly batches failed to persist", sum.Table, sum.FailedBatches, sum.Months)
	}
	return nil
}
