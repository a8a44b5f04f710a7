package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"atscore/internal/errors"
	"atscore/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	logger  *errors.Logger
	maxSize int64
}

// NewFileProcessor creates a file processor. A maxSize of zero or less
// means no size limit.
func NewFileProcessor(logger *errors.Logger, maxSize int64) *FileProcessor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileProcessor{logger: logger, maxSize: maxSize}
}

// ReadFile reads content from a file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	var reader io.Reader = file
	if fp.maxSize > 0 {
		reader = io.LimitReader(file, fp.maxSize+1)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	if fp.maxSize > 0 && int64(len(content)) > fp.maxSize {
		return "", errors.NewValidationError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File %s exceeds the %s limit", filename, utils.FormatFileSize(fp.maxSize)), nil)
	}

	return string(content), nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename string, content []byte) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError(errors.ErrCodeDirectoryCreateFailed,
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, content, 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateAndReadFiles validates and reads multiple text input files
func (fp *FileProcessor) ValidateAndReadFiles(filenames ...string) ([]string, error) {
	contents := make([]string, len(filenames))

	for i, filename := range filenames {
		if err := utils.ValidateInputFile(filename); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidInputFile,
				fmt.Sprintf("Invalid file %s", filename), err)
		}

		if !utils.IsTextFile(filename) {
			fp.logger.Warn("File may not be a text file", "filename", filename)
		}

		content, err := fp.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		contents[i] = content
	}

	return contents, nil
}

// ReadJSON decodes a JSON document from filename into T. Unknown fields are
// rejected so a job file passed as a draft fails loudly.
func ReadJSON[T any](fp *FileProcessor, filename string) (T, error) {
	var out T
	if err := utils.ValidateInputFile(filename); err != nil {
		return out, errors.NewValidationError(errors.ErrCodeInvalidInputFile,
			fmt.Sprintf("Invalid file %s", filename), err)
	}
	content, err := fp.ReadFile(filename)
	if err != nil {
		return out, err
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(content)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&out); err != nil {
		return out, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("File %s is not a valid %T document", filename, out), err).
			WithContext("file", filename)
	}
	return out, nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidOutputFile,
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}
