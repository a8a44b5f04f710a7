package common

import (
	"context"
	"fmt"
)

// CreateInputFunc builds an operation input from the contents of the
// positional file arguments.
type CreateInputFunc[Input any] func(contents []string) (Input, error)

// OperationFunc runs one scoring operation
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// Runner bundles the helpers shared by file-based commands
type Runner struct {
	Files  *FileProcessor
	Output *OutputHandler
}

// RunFileCommand reads the text files in args, builds the input, runs the
// operation and writes its result through the formatter registry.
func RunFileCommand[Input, Output any](
	ctx context.Context,
	runner Runner,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	operation OperationFunc[Input, Output],
) error {
	contents, err := runner.Files.ValidateAndReadFiles(args...)
	if err != nil {
		return err
	}

	input, err := createInput(contents)
	if err != nil {
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	result, err := operation(ctx, input)
	if err != nil {
		return err
	}

	return runner.Output.HandleOutput(result, cmdConfig)
}
