package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"atscore/internal/errors"
	"atscore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	fp := NewFileProcessor(nil, 16)

	content, err := fp.ReadFile(writeFile(t, dir, "small.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = fp.ReadFile(writeFile(t, dir, "big.txt", strings.Repeat("x", 17)))
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileTooLarge))

	_, err = fp.ReadFile(filepath.Join(dir, "missing.txt"))
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}

func TestReadFileWithoutLimit(t *testing.T) {
	fp := NewFileProcessor(nil, 0)
	content, err := fp.ReadFile(writeFile(t, t.TempDir(), "big.txt", strings.Repeat("x", 4096)))
	require.NoError(t, err)
	assert.Len(t, content, 4096)
}

func TestValidateAndReadFiles(t *testing.T) {
	dir := t.TempDir()
	fp := NewFileProcessor(nil, 0)

	contents, err := fp.ValidateAndReadFiles(writeFile(t, dir, "a.txt", "one"), writeFile(t, dir, "b.md", "two"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, contents)

	_, err = fp.ValidateAndReadFiles(dir)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInputFile))
}

func TestReadJSON(t *testing.T) {
	dir := t.TempDir()
	fp := NewFileProcessor(nil, 0)

	draft, err := ReadJSON[types.ResumeDraft](fp, writeFile(t, dir, "draft.json",
		`{"targetRole":"Backend Engineer","skills":[{"name":"Go","validated":true}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", draft.TargetRole)
	require.Len(t, draft.Skills, 1)
	assert.True(t, draft.Skills[0].Validated)

	_, err = ReadJSON[types.ResumeDraft](fp, writeFile(t, dir, "job.json", `{"title":"Engineer"}`))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))

	_, err = ReadJSON[types.ResumeDraft](fp, writeFile(t, dir, "broken.json", `{`))
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func TestWriteFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "result.txt")
	require.NoError(t, NewFileProcessor(nil, 0).WriteFile(path, []byte("done")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "done", string(data))
}

func TestHandleOutput(t *testing.T) {
	var buf bytes.Buffer
	oh := NewOutputHandlerWithWriter(&buf, nil)

	require.NoError(t, oh.HandleOutput(types.ScoreReport{Score: 40}, CommandConfig{OutputFormat: "json"}))
	assert.JSONEq(t, `{"score":40}`, buf.String())

	path := filepath.Join(t.TempDir(), "score.txt")
	require.NoError(t, oh.HandleOutput(types.ScoreReport{Score: 40}, CommandConfig{OutputFormat: "text", OutputFile: path}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Score: 40/100")

	err = oh.HandleOutput(types.ScoreReport{Score: 40}, CommandConfig{OutputFormat: "yaml"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidFormat))
}

func TestRunFileCommand(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	runner := Runner{Files: NewFileProcessor(nil, 0), Output: NewOutputHandlerWithWriter(&buf, nil)}

	err := RunFileCommand(context.Background(), runner, CommandConfig{OutputFormat: "json"},
		[]string{writeFile(t, dir, "resume.txt", "Go developer")},
		func(contents []string) (string, error) { return contents[0], nil },
		func(_ context.Context, text string) (types.ScoreReport, error) {
			return types.ScoreReport{Score: len(text)}, nil
		})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":12}`, buf.String())
}
