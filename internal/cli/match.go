package cli

import (
	"context"
	"fmt"

	"atscore/internal/common"
	"atscore/internal/types"

	"github.com/spf13/cobra"
)

func newMatchCmd(root *rootOptions) *cobra.Command {
	var jobFile string

	cmd := &cobra.Command{
		Use:   "match [resume.txt]",
		Short: "Parse a resume and match it against a job",
		Long: `Parse a plain text resume into skills, experience and education, then
analyze it against a job posting. The output includes the parsed resume.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobFile == "" {
				return fmt.Errorf("--job is required")
			}
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				job, err := a.readJob(jobFile)
				if err != nil {
					return err
				}
				runner := common.Runner{Files: a.files, Output: outputHandler(cmd, a.logger)}
				return common.RunFileCommand(ctx, runner, root.output, args,
					resumeInput,
					func(ctx context.Context, resumeText string) (types.MatchResult, error) {
						result := a.matcher.MatchResumeToJob(ctx, resumeText, job)
						logAnalysis(a, "match", result.AnalysisResult)
						return result, nil
					})
			})
		},
	}

	cmd.Flags().StringVarP(&jobFile, "job", "j", "", "Job posting file (.json requirement set, or description text/HTML)")
	return cmd
}
