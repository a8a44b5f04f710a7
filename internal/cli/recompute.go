package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRecomputeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [userID]",
		Short: "Rebuild a user's score summary from their full history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{store: true}, func(ctx context.Context, a *app) error {
				if _, err := lookupUser(ctx, a, args[0]); err != nil {
					return err
				}
				summary := a.aggregator.Recompute(ctx, args[0])
				if summary == nil {
					return fmt.Errorf("score summary for %s was not updated; see the log for the cause", args[0])
				}
				return outputHandler(cmd, a.logger).HandleOutput(summary, root.output)
			})
		},
	}
}
