package cli

import (
	"context"
	"fmt"
	"io"

	"atscore/internal/common"
	"atscore/internal/config"
	"atscore/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

// rootOptions holds the flags every command shares
type rootOptions struct {
	output common.CommandConfig
}

// NewRootCommand builds the full command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "atscore",
		Short: "Score resumes for applicant tracking systems",
		Long: `atscore scores structured resume drafts for completeness, analyzes resumes
against job postings with an AI model (falling back to deterministic heuristics
when the model is unavailable) and keeps a per-user score history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			opts.output.OutputFormat = common.ResolveOutputFormat(opts.output.OutputFormat, cfg.App.DefaultFormat)
			return common.ValidateOutputFormat(opts.output.OutputFormat, cfg.App.SupportedFormats)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.output.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&opts.output.OutputFormat, "format", "", "Output format: json, text, or markdown")
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newServeCmd(),
		newScoreCmd(opts),
		newAnalyzeCmd(opts),
		newMatchCmd(opts),
		newUserCmd(opts),
		newRecordCmd(opts),
		newRecomputeCmd(opts),
		newDraftCmd(opts),
		newExportCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line with cfg and logger available to every command
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	return ExecuteArgs(ctx, cfg, logger, nil, nil)
}

// ExecuteArgs runs the command tree with explicit arguments and output.
// Nil args use os.Args; a nil out uses stdout.
func ExecuteArgs(ctx context.Context, cfg *config.Config, logger *errors.Logger, args []string, out io.Writer) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)

	rootCmd := NewRootCommand()
	if args != nil {
		rootCmd.SetArgs(args)
	}
	if out != nil {
		rootCmd.SetOut(out)
	}
	return rootCmd.ExecuteContext(ctx)
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok && cfg != nil {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok && logger != nil {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

// outputHandler writes command results to the command's output stream
func outputHandler(cmd *cobra.Command, logger *errors.Logger) *common.OutputHandler {
	return common.NewOutputHandlerWithWriter(cmd.OutOrStdout(), logger)
}
