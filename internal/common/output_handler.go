package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"atscore/internal/errors"
	"atscore/internal/formatters"
)

// CommandConfig holds common configuration for commands
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// OutputHandler handles formatting and writing output
type OutputHandler struct {
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	stdout        io.Writer
	logger        *errors.Logger
}

// NewOutputHandler creates an output handler that prints to stdout
func NewOutputHandler(logger *errors.Logger) *OutputHandler {
	return NewOutputHandlerWithWriter(os.Stdout, logger)
}

// NewOutputHandlerWithWriter creates an output handler that prints to w
// when no output file is set
func NewOutputHandlerWithWriter(w io.Writer, logger *errors.Logger) *OutputHandler {
	if logger == nil {
		logger = errors.Discard()
	}
	return &OutputHandler{
		fileProcessor: NewFileProcessor(logger, 0),
		registry:      formatters.GlobalRegistry,
		stdout:        w,
		logger:        logger,
	}
}

// HandleOutput formats data and writes it to the specified output
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	return oh.HandleSections(config, data)
}

// HandleSections formats each item and writes them as one document,
// separated by blank lines. It suits text and markdown; JSON callers
// should pass a single value.
func (oh *OutputHandler) HandleSections(config CommandConfig, items ...any) error {
	if err := oh.fileProcessor.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		formatted, err := oh.registry.Format(item, config.OutputFormat)
		if err != nil {
			return errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Failed to format output as %s", config.OutputFormat), err)
		}
		parts = append(parts, strings.TrimRight(formatted, "\n"))
	}
	output := strings.Join(parts, "\n\n")

	if config.OutputFile == "" {
		_, err := fmt.Fprintln(oh.stdout, output)
		return err
	}

	if err := oh.fileProcessor.WriteFile(config.OutputFile, []byte(output)); err != nil {
		return err
	}
	oh.logger.Info("Output written successfully",
		"file", config.OutputFile, "format", config.OutputFormat)
	return nil
}

// GetSupportedFormats returns all supported output formats
func (oh *OutputHandler) GetSupportedFormats() []string {
	return oh.registry.GetSupportedFormats()
}
