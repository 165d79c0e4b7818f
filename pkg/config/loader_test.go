package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_UsesBuiltinDefaultsWhenNoYAML(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 50_000, cfg.Packer.MaxRequestsPerFile)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Provider.BaseURL)
	assert.Empty(t, cfg.APIKeys)
}

func TestInitialize_MergesUserOverridesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
packer:
  max_requests_per_file: 10000
api_keys:
  - id: primary
    secret_env: OPENAI_API_KEY_PRIMARY
    quota_tokens: 1000000
    quota_requests: 5000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gptbatch.yaml"), []byte(yamlContent), 0o600))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Packer.MaxRequestsPerFile)
	// Unset packer fields still fall back to defaults.
	assert.Equal(t, 20_000_000, cfg.Packer.MaxTokensPerFile)
	require.Len(t, cfg.APIKeys, 1)
	assert.Equal(t, "primary", cfg.APIKeys[0].ID)
}

func TestInitialize_RejectsDuplicateAPIKeyIDs(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
api_keys:
  - id: primary
    secret_env: A
    quota_tokens: 1
    quota_requests: 1
  - id: primary
    secret_env: B
    quota_tokens: 1
    quota_requests: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gptbatch.yaml"), []byte(yamlContent), 0o600))

	_, err := Initialize(context.Background(), dir)
	assert.Error(t, err)
}
