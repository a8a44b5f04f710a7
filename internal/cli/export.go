package cli

import (
	"context"
	"fmt"

	"atscore/internal/export"

	"github.com/spf13/cobra"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [userID]",
		Short: "Export a user's score history to an Excel workbook",
		Long: `Write a workbook with a Summary sheet (user and score summary) and a
History sheet (every scored event, newest first). Use -o to pick the file;
the default is <userID>-history.xlsx.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{store: true}, func(ctx context.Context, a *app) error {
				userID := args[0]
				user, err := lookupUser(ctx, a, userID)
				if err != nil {
					return err
				}
				events, err := userEvents(ctx, a, userID, "")
				if err != nil {
					return err
				}

				path := root.output.OutputFile
				if path == "" {
					path = userID + "-history.xlsx"
				}
				if err := a.files.ValidateOutputFile(path); err != nil {
					return err
				}
				written, err := export.SaveHistory(export.History{User: *user, Events: events}, path)
				if err != nil {
					return err
				}

				a.logger.Info("Score history exported", "user_id", userID, "file", written, "events", len(events))
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d events to %s\n", len(events), written)
				return err
			})
		},
	}
}
