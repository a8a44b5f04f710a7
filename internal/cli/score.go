package cli

import (
	"context"

	"atscore/internal/scoring"
	"atscore/internal/types"

	"github.com/spf13/cobra"
)

func newScoreCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score [draft.json]",
		Short: "Score a resume draft for completeness",
		Long: `Compute the deterministic 0 to 100 completeness score of a structured
resume draft. No AI model is involved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				draft, err := a.readDraft(args[0])
				if err != nil {
					return err
				}
				report := types.ScoreReport{Score: scoring.ComputeScore(draft)}
				a.logger.Debug("Draft scored", "file", args[0], "score", report.Score)
				return outputHandler(cmd, a.logger).HandleOutput(report, root.output)
			})
		},
	}
}
