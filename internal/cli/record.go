package cli

import (
	"context"
	"fmt"

	"atscore/internal/scoring"

	"github.com/spf13/cobra"
)

func newRecordCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a scored event and update the user's summary",
	}
	cmd.AddCommand(newRecordResumeCmd(root), newRecordSubmissionCmd(root))
	return cmd
}

func newRecordResumeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [userID] [draft.json]",
		Short: "Score a resume draft and record it as a new resume version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{store: true}, func(ctx context.Context, a *app) error {
				userID, draftFile := args[0], args[1]
				if _, err := lookupUser(ctx, a, userID); err != nil {
					return err
				}
				draft, err := a.readDraft(draftFile)
				if err != nil {
					return err
				}

				recording, err := a.recorder.RecordResumeVersion(ctx, userID, scoring.ComputeScore(draft))
				if err != nil {
					return err
				}
				return outputHandler(cmd, a.logger).HandleOutput(recording, root.output)
			})
		},
	}
}

func newRecordSubmissionCmd(root *rootOptions) *cobra.Command {
	var jobFile, jobID string

	cmd := &cobra.Command{
		Use:   "submission [userID] [resume.txt]",
		Short: "Match a resume against a job and record the submission score",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobFile == "" || jobID == "" {
				return fmt.Errorf("--job and --job-id are required")
			}
			return withApp(cmd, appOptions{store: true}, func(ctx context.Context, a *app) error {
				userID, resumeFile := args[0], args[1]
				if _, err := lookupUser(ctx, a, userID); err != nil {
					return err
				}
				job, err := a.readJob(jobFile)
				if err != nil {
					return err
				}
				resumeText, err := a.readResume(resumeFile)
				if err != nil {
					return err
				}

				match := a.matcher.MatchResumeToJob(ctx, resumeText, job)
				logAnalysis(a, "match", match.AnalysisResult)

				recording, err := a.recorder.RecordSubmission(ctx, userID, jobID, match.ATSScore)
				if err != nil {
					return err
				}
				return outputHandler(cmd, a.logger).HandleOutput(recording, root.output)
			})
		},
	}

	cmd.Flags().StringVarP(&jobFile, "job", "j", "", "Job posting file (.json requirement set, or description text/HTML)")
	cmd.Flags().StringVar(&jobID, "job-id", "", "Identifier of the job applied to")
	return cmd
}
