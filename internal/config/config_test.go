package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 30000, cfg.RAG.MaxTokens)
	assert.Equal(t, 1500, cfg.RAG.ReservedTokens)
	assert.Equal(t, 20000, cfg.RAG.ChunkSize)
	assert.Equal(t, 500, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 20, cfg.Citations.MaxTitles)
	assert.Equal(t, 10*time.Second, cfg.Citations.FetchTimeout)
	assert.Empty(t, cfg.LLM.Key)
}

func TestLoadConfig_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  url: postgres://localhost:5432/papers
llm:
  model: llama3
  timeout: 30s
rag:
  max_citations: 5
citations:
  max_titles: 10
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost:5432/papers", cfg.Database.URL)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.RAG.MaxCitations)
	assert.Equal(t, 10, cfg.Citations.MaxTitles)
	// untouched sections keep defaults
	assert.Equal(t, 30000, cfg.RAG.MaxTokens)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, `
llm:
  key: from-file
storage:
  root: /from/file
`)
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("STORAGE_ROOT", "/from/env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Key)
	assert.Equal(t, "/from/env", cfg.Storage.Root)
}

func TestLoadConfig_LLMKeyAlias(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("LLM_API_KEY", "from-alias")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-alias", cfg.LLM.Key)

	t.Setenv("GROQ_API_KEY", "from-groq")
	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-groq", cfg.LLM.Key)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "database: [unterminated")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyDefaults_RejectsInconsistentBudget(t *testing.T) {
	cfg := Default()
	cfg.RAG.ReservedTokens = cfg.RAG.MaxTokens + 1
	cfg.RAG.ChunkOverlap = cfg.RAG.ChunkSize
	cfg.applyDefaults()

	assert.Equal(t, 1500, cfg.RAG.ReservedTokens)
	assert.Equal(t, 500, cfg.RAG.ChunkOverlap)
}
