package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacrag/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iacrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.Overlap)
	assert.Equal(t, 4, cfg.Retrieval.K)
	assert.Equal(t, "tfidf", cfg.Embedder.Type)
	assert.Equal(t, 30*time.Second, cfg.Embedder.Timeout())
	assert.Equal(t, 200*time.Millisecond, cfg.Embedder.Backoff())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
corpus:
  dir: ./infra
chunker:
  chunk_size: 500
  overlap: 50
embedder:
  type: gemini
  max_retries: 0
log:
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./infra", cfg.Corpus.Dir)
	assert.Equal(t, 500, cfg.Chunker.ChunkSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 4, cfg.Retrieval.K)
	assert.Equal(t, 0, cfg.Embedder.MaxRetries)
	require.NotNil(t, cfg.Embedder.Gemini)
	assert.Equal(t, "gemini-embedding-001", cfg.Embedder.Gemini.Model)
	assert.Equal(t, "GOOGLE_API_KEY", cfg.Embedder.Gemini.APIKeyEnv)
	assert.Equal(t, 768, cfg.Embedder.Gemini.Dimension)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"overlap not below chunk size", "chunker:\n  chunk_size: 100\n  overlap: 100\n", "chunker.overlap"},
		{"negative chunk size", "chunker:\n  chunk_size: -1\n", "chunker.chunk_size"},
		{"zero k", "retrieval:\n  k: 0\n", "retrieval.k"},
		{"unknown embedder", "embedder:\n  type: word2vec\n", "embedder.type"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"bad openai url", "embedder:\n  type: openai\n  openai:\n    base_url: not a url\n", "embedder.openai.base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			var ce *domain.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "chunker: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
}

func TestSaveAndLoadDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "iacrag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)

	require.NoError(t, os.WriteFile(fileName, []byte("retrieval:\n  k: 7\n"), 0o644))
	cfg, path, err = LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, fileName, path)
	assert.Equal(t, 7, cfg.Retrieval.K)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("IACRAG_TEST_TOKEN=from-file\n"), 0o644))
	t.Setenv("IACRAG_TEST_TOKEN", "")
	require.NoError(t, os.Unsetenv("IACRAG_TEST_TOKEN"))

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("IACRAG_TEST_TOKEN"))
}
