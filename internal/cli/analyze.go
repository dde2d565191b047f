package cli

import (
	"context"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

type analyzeOptions struct {
	windowDays int
	k          int
}

type analyzeReport struct {
	UserID          string                   `json:"user_id"`
	Personality     domain.PersonalityResult `json:"personality"`
	Stress          domain.StressResult      `json:"stress"`
	Recommendations []domain.Recommendation  `json:"recommendations"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze <user-id>",
		Short: "Print a user's personality, stress and recommendations as JSON",
		Example: `  resonance analyze alice
  resonance analyze alice --window-days 7 --k 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.windowDays, "window-days", 0, "analysis window in days (0 uses the configured default)")
	cmd.Flags().IntVar(&opts.k, "k", 0, "number of recommendations (0 uses the configured default)")
	return cmd
}

func (a *app) runAnalyze(ctx context.Context, out io.Writer, userID string, opts analyzeOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := a.newInsights(store, nil)
	if err != nil {
		return err
	}

	report := analyzeReport{UserID: userID}
	if report.Personality, err = svc.ComputePersonality(ctx, userID, opts.windowDays); err != nil {
		return err
	}
	if report.Stress, err = svc.ComputeStress(ctx, userID, opts.windowDays); err != nil {
		return err
	}
	if report.Recommendations, err = svc.ComputeRecommendations(ctx, userID, opts.k); err != nil {
		return err
	}
	if report.Recommendations == nil {
		report.Recommendations = []domain.Recommendation{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
