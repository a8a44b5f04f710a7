package cli

import (
	"context"
	"fmt"

	"atscore/internal/common"
	"atscore/internal/types"

	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	jobFile   string
	draftFile string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [resume.txt]",
		Short: "Analyze a resume against a job, or a resume draft on its own",
		Long: `Analyze a plain text resume against a job posting with --job, or a
structured resume draft with --draft.

The analysis includes:
- ATS score from 0 to 100
- Matched and missing skills
- Experience match
- Improvement suggestions and identified strengths

When no AI model is configured or the model fails, the same report is
produced by deterministic heuristics and marked with source "fallback".`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.draftFile != "" && (opts.jobFile != "" || len(args) > 0):
				return fmt.Errorf("--draft cannot be combined with a resume file or --job")
			case opts.draftFile == "" && (opts.jobFile == "" || len(args) != 1):
				return fmt.Errorf("analyze needs a resume file with --job, or --draft")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				if opts.draftFile != "" {
					return analyzeDraft(ctx, cmd, a, root, opts.draftFile)
				}
				return analyzeForJob(ctx, cmd, a, root, args, opts.jobFile)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.jobFile, "job", "j", "", "Job posting file (.json requirement set, or description text/HTML)")
	cmd.Flags().StringVarP(&opts.draftFile, "draft", "d", "", "Resume draft JSON file")
	return cmd
}

func analyzeDraft(ctx context.Context, cmd *cobra.Command, a *app, root *rootOptions, path string) error {
	draft, err := a.readDraft(path)
	if err != nil {
		return err
	}
	result := a.orchestrator.AnalyzeGenerated(ctx, draft)
	logAnalysis(a, "analyze_generated", result)
	return outputHandler(cmd, a.logger).HandleOutput(result, root.output)
}

func analyzeForJob(ctx context.Context, cmd *cobra.Command, a *app, root *rootOptions, args []string, jobFile string) error {
	job, err := a.readJob(jobFile)
	if err != nil {
		return err
	}

	runner := common.Runner{Files: a.files, Output: outputHandler(cmd, a.logger)}
	return common.RunFileCommand(ctx, runner, root.output, args,
		resumeInput,
		func(ctx context.Context, resumeText string) (types.AnalysisResult, error) {
			result := a.orchestrator.AnalyzeForJob(ctx, resumeText, job)
			logAnalysis(a, "analyze_job", result)
			return result, nil
		})
}

// resumeInput takes the single resume file's text
func resumeInput(contents []string) (string, error) {
	if len(contents) != 1 {
		return "", fmt.Errorf("expected 1 file path, got %d", len(contents))
	}
	return contents[0], nil
}

func logAnalysis(a *app, operation string, result types.AnalysisResult) {
	a.logger.Info("Analysis completed",
		"operation", operation,
		"source", result.Source,
		"ats_score", result.ATSScore,
		"ai_enabled", a.orchestrator.AIEnabled())
}
