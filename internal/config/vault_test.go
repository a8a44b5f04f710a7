package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"atscore/internal/errors"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *errors.Logger {
	return errors.Discard()
}

// newFakeVault serves sys/health and KVv2 reads for the given secrets, keyed
// by path without the /v1/ prefix
func newFakeVault(t *testing.T, token string, secrets map[string]map[string]any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/v1/sys/health" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"initialized":  true,
				"sealed":       false,
				"standby":      false,
				"version":      "1.15.0",
				"cluster_name": "test-cluster",
			})
			return
		}

		if r.Header.Get("X-Vault-Token") != token {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}

		data, ok := secrets[strings.TrimPrefix(r.URL.Path, "/v1/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id":     "test-request",
			"lease_id":       "",
			"renewable":      false,
			"lease_duration": 0,
			"data": map[string]any{
				"data":     data,
				"metadata": map[string]any{"version": 3},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "json number", input: json.Number("7"), expected: 7},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid json number", input: json.Number("1.5"), expectError: true},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "test/path")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestApplyGeminiKeyToConfig(t *testing.T) {
	config := &Config{}

	applyGeminiKeyToConfig(config, "test-gemini-key")

	assert.Equal(t, "test-gemini-key", config.AI.APIKey)
	assert.Equal(t, "test-gemini-key", config.AI.Analyze.APIKey)
	assert.Equal(t, "test-gemini-key", config.AI.Parse.APIKey)
}

func TestApplyGeminiKeyToConfigWithExistingKeys(t *testing.T) {
	config := &Config{
		AI: AIConfig{
			Parse: OperationAIConfig{APIKey: "existing-parse-key"},
		},
	}

	applyGeminiKeyToConfig(config, "test-gemini-key")

	assert.Equal(t, "test-gemini-key", config.AI.APIKey)
	assert.Equal(t, "test-gemini-key", config.AI.Analyze.APIKey)
	assert.Equal(t, "existing-parse-key", config.AI.Parse.APIKey)
}

func TestResolveVaultToken(t *testing.T) {
	logger := newTestLogger()

	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token"}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("config token wins over file", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token", TokenFile: "/nonexistent"}, logger)
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"}, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read vault token file")
	})

	t.Run("no token provided", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{}, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "vault token is required")
	})

	t.Run("empty token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "empty-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("   \n  \n"), 0600))

		_, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile}, logger)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "vault token is required")
	})
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****6789", maskSecret("abcdef-123456789"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestExtractSecretData(t *testing.T) {
	tests := []struct {
		name        string
		secret      *api.Secret
		expectError bool
		expected    map[string]any
	}{
		{
			name: "valid KVv2 secret",
			secret: &api.Secret{Data: map[string]any{
				"data": map[string]any{"key1": "value1", "key2": "value2"},
			}},
			expected: map[string]any{"key1": "value1", "key2": "value2"},
		},
		{
			name:        "missing data field",
			secret:      &api.Secret{Data: map[string]any{"metadata": map[string]any{}}},
			expectError: true,
		},
		{
			name:        "data field wrong type",
			secret:      &api.Secret{Data: map[string]any{"data": "not-a-map"}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := extractSecretData(tt.secret, "secret/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestExtractSecretVersion(t *testing.T) {
	tests := []struct {
		name        string
		secret      *api.Secret
		expectError bool
		expected    int64
	}{
		{
			name: "valid version as int64",
			secret: &api.Secret{Data: map[string]any{
				"metadata": map[string]any{"version": int64(42)},
			}},
			expected: 42,
		},
		{
			name: "valid version as json number",
			secret: &api.Secret{Data: map[string]any{
				"metadata": map[string]any{"version": json.Number("5")},
			}},
			expected: 5,
		},
		{
			name:        "missing metadata field",
			secret:      &api.Secret{Data: map[string]any{"data": map[string]any{}}},
			expectError: true,
		},
		{
			name: "missing version field",
			secret: &api.Secret{Data: map[string]any{
				"metadata": map[string]any{"other": "value"},
			}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := extractSecretVersion(tt.secret, "secret/test")

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	config := &Config{Vault: VaultConfig{Enabled: false}}

	assert.NoError(t, ApplyVaultSecrets(config, newTestLogger()))
	assert.Empty(t, config.AI.APIKey)
}

func TestNewVaultClientDisabled(t *testing.T) {
	client, err := NewVaultClient(VaultConfig{}, newTestLogger())
	assert.NoError(t, err)
	assert.Nil(t, client)

	_, err = client.GetSecretV2("secret/data/anything")
	assert.Error(t, err)
}

func TestApplyVaultSecrets(t *testing.T) {
	server := newFakeVault(t, "test-token", map[string]map[string]any{
		"secret/data/atscore/api":    {"keys": "key-one, key-two,,"},
		"secret/data/atscore/gemini": {"api_key": "vault-gemini-key"},
		"secret/data/atscore/db":     {"dsn": "postgres://atscore@db/atscore"},
	})

	config := &Config{
		AI: AIConfig{
			Parse: OperationAIConfig{APIKey: "parse-only-key"},
		},
		Vault: VaultConfig{
			Enabled: true,
			Address: server.URL,
			Token:   "test-token",
			Secrets: VaultSecrets{
				APIKeys:     "secret/data/atscore/api",
				GeminiKey:   "secret/data/atscore/gemini",
				DatabaseDSN: "secret/data/atscore/db",
			},
		},
	}

	require.NoError(t, ApplyVaultSecrets(config, newTestLogger()))

	assert.Equal(t, []string{"key-one", "key-two"}, config.Server.APIKeys)
	assert.Equal(t, "vault-gemini-key", config.AI.APIKey)
	assert.Equal(t, "vault-gemini-key", config.AI.Analyze.APIKey)
	assert.Equal(t, "parse-only-key", config.AI.Parse.APIKey)
	assert.Equal(t, "postgres://atscore@db/atscore", config.Store.DSN)
}

func TestApplyVaultSecretsMissingKey(t *testing.T) {
	server := newFakeVault(t, "test-token", map[string]map[string]any{
		"secret/data/atscore/gemini": {"other": "value"},
	})

	config := &Config{
		Vault: VaultConfig{
			Enabled: true,
			Address: server.URL,
			Token:   "test-token",
			Secrets: VaultSecrets{GeminiKey: "secret/data/atscore/gemini"},
		},
	}

	err := ApplyVaultSecrets(config, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key 'api_key' not found")
}

func TestVaultClientGetSecretV2(t *testing.T) {
	server := newFakeVault(t, "test-token", map[string]map[string]any{
		"secret/data/atscore/db": {"dsn": "postgres://x"},
	})

	client, err := NewVaultClient(VaultConfig{
		Enabled: true,
		Address: server.URL,
		Token:   "test-token",
	}, newTestLogger())
	require.NoError(t, err)
	require.NotNil(t, client)

	secret, err := client.GetSecretV2("secret/data/atscore/db")
	require.NoError(t, err)
	assert.Equal(t, int64(3), secret.Version)
	assert.Equal(t, "postgres://x", secret.Data["dsn"])

	_, err = client.GetSecretV2("secret/data/atscore/missing")
	assert.Error(t, err)
}
