package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ATSCORE_SERVER_APIKEYS", "")
}

func TestLoadConfigFileDefaults(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfigFile(t, "app:\n  logLevel: info\n")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "atscore.db", cfg.Store.Path)
	assert.Equal(t, "disabled", cfg.Server.TLS.Mode)
	assert.Equal(t, "json", cfg.App.DefaultFormat)
	assert.True(t, cfg.AI.Analyze.CircuitBreaker.Enabled)
	assert.Equal(t, uint32(3), cfg.AI.Parse.CircuitBreaker.MinRequests)
	assert.Empty(t, cfg.AI.APIKey)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadConfigFileValues(t *testing.T) {
	clearKeyEnv(t)
	path := writeConfigFile(t, `
ai:
  model: gemini-2.5-pro
  apiKey: file-key
  analyze:
    model: gemini-2.5-flash
    temperature: 0.5
server:
  port: "9000"
  apiKeys: ["a", "b"]
store:
  driver: postgres
  dsn: postgres://localhost/atscore
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.AI.Model)
	assert.Equal(t, "file-key", cfg.AI.APIKey)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Server.APIKeys)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/atscore", cfg.Store.DSN)

	analyze := cfg.GetAnalyzeConfig()
	assert.Equal(t, "gemini-2.5-flash", analyze.Model)
	require.NotNil(t, analyze.Temperature)
	assert.InDelta(t, 0.5, *analyze.Temperature, 0.0001)
	assert.Equal(t, "file-key", analyze.APIKey)

	parse := cfg.GetParseConfig()
	assert.Equal(t, "gemini-2.5-pro", parse.Model)
	require.NotNil(t, parse.Timeout)
	assert.Equal(t, 30*time.Second, *parse.Timeout)
}

func TestLoadConfigFileEnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("ATSCORE_SERVER_PORT", "7070")
	t.Setenv("ATSCORE_AI_MODEL", "env-model")
	t.Setenv("GEMINI_API_KEY", "env-gemini-key")
	path := writeConfigFile(t, "server:\n  port: \"9000\"\n")

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "env-model", cfg.AI.Model)
	assert.Equal(t, "env-gemini-key", cfg.AI.APIKey)
}

func TestLoadConfigFileInvalid(t *testing.T) {
	clearKeyEnv(t)

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown store driver", "store:\n  driver: mysql\n", "invalid store driver"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "store dsn is required"},
		{"bad default format", "app:\n  defaultFormat: pdf\n", "invalid default format"},
		{"tls without files", "server:\n  tls:\n    mode: server\n", "TLS certFile and keyFile are required"},
		{"missing prompt file", "ai:\n  customPrompts:\n    systemPrompts:\n      analyzeJobFile: /nonexistent/prompt.md\n", "prompt file validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfigFileDatabaseURLFallback(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/atscore")

	cfg, err := LoadConfigFile(writeConfigFile(t, "store:\n  driver: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/atscore", cfg.Store.DSN)
}

func TestGetOperationConfig(t *testing.T) {
	useSystem := false
	cfg := &Config{
		AI: AIConfig{
			Provider:         "gemini",
			Model:            "global-model",
			Timeout:          10 * time.Second,
			APIKey:           "global-key",
			Temperature:      0.3,
			UseSystemPrompts: true,
			Parse:            OperationAIConfig{UseSystemPrompts: &useSystem},
		},
	}

	analyze, err := cfg.GetOperationConfig(OperationAnalyze)
	require.NoError(t, err)
	assert.Equal(t, "global-model", analyze.Model)
	assert.Equal(t, "global-key", analyze.APIKey)
	assert.Equal(t, 10*time.Second, *analyze.Timeout)
	assert.True(t, *analyze.UseSystemPrompts)

	parse, err := cfg.GetOperationConfig(OperationParse)
	require.NoError(t, err)
	assert.False(t, *parse.UseSystemPrompts)

	// Resolving must not mutate the stored operation config
	assert.Nil(t, cfg.AI.Analyze.Timeout)

	_, err = cfg.GetOperationConfig("tailor")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList(" a,b , ,c,"))
	assert.Empty(t, splitList(""))
}

func TestIsSensitiveEnv(t *testing.T) {
	assert.True(t, isSensitiveEnv("GEMINI_API_KEY"))
	assert.True(t, isSensitiveEnv("ATSCORE_STORE_DSN"))
	assert.True(t, isSensitiveEnv("DATABASE_URL"))
	assert.False(t, isSensitiveEnv("ATSCORE_SERVER_PORT"))
}
