package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// textExtensions are the files a resume or job posting is read from
var textExtensions = []string{".txt", ".text", ".md", ".markdown", ".html", ".htm", ".json"}

// InputFileInfo stats filename and checks it is a regular readable file
func InputFileInfo(filename string) (fs.FileInfo, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", filename)
		}
		return nil, fmt.Errorf("cannot access file %s: %w", filename, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %s: %w", filename, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file %s: %w", filename, err)
	}
	return info, nil
}

// ValidateInputFile checks that a file exists and is readable
func ValidateInputFile(filename string) error {
	_, err := InputFileInfo(filename)
	return err
}

// ValidateOutputFile makes sure the output's directory exists. An empty
// name means stdout.
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil
	}

	dir := filepath.Dir(filename)
	if dir == "." {
		return nil
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	case err != nil:
		return fmt.Errorf("cannot access directory %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("output parent is not a directory: %s", dir)
	}
	return nil
}

// GetFileExtension returns the file extension in lowercase
func GetFileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// IsTextFile reports whether the extension is one resumes and job
// postings are read from
func IsTextFile(filename string) bool {
	return slices.Contains(textExtensions, GetFileExtension(filename))
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
