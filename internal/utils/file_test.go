package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.txt")
	require.NoError(t, os.WriteFile(path, []byte("resume"), 0o600))

	assert.NoError(t, ValidateInputFile(path))
	assert.EqualError(t, ValidateInputFile(""), "filename cannot be empty")
	assert.ErrorContains(t, ValidateInputFile(filepath.Join(dir, "missing.txt")), "does not exist")
	assert.ErrorContains(t, ValidateInputFile(dir), "is a directory")

	info, err := InputFileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6), info.Size())
}

func TestValidateOutputFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, ValidateOutputFile(""))
	assert.NoError(t, ValidateOutputFile("out.json"))

	nested := filepath.Join(dir, "a", "b", "out.json")
	require.NoError(t, ValidateOutputFile(nested))
	assert.DirExists(t, filepath.Dir(nested))

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	assert.Error(t, ValidateOutputFile(filepath.Join(blocker, "out.json")))
}

func TestIsTextFile(t *testing.T) {
	for name, want := range map[string]bool{
		"resume.txt":  true,
		"RESUME.MD":   true,
		"job.html":    true,
		"draft.json":  true,
		"resume.pdf":  false,
		"resume.docx": false,
		"noext":       false,
	} {
		assert.Equal(t, want, IsTextFile(name), name)
	}
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.0 KB", FormatFileSize(1024))
	assert.Equal(t, "1.0 MB", FormatFileSize(1<<20))
	assert.Equal(t, "1.5 GB", FormatFileSize(3<<29))
}
