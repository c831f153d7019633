package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost", "port": 5432, "user": "u", "password": "p", "db_name": "d"},
		"ai": {
			"provider": "gemini",
			"data": {"api_key": "k"},
			"embed_model": "text-embedding-004",
			"generate_models": ["gemini-2.0-flash", "gemini-1.5-flash"]
		}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 1000, cfg.RateLimitMS)
	require.Equal(t, 5, cfg.RAG.TopK)
	require.Equal(t, 100, cfg.RAG.PageSize)
	require.Equal(t, 3, cfg.Jobs.MaxAttempts)
	require.Equal(t, 5, cfg.Jobs.BackoffBaseSeconds)
	require.Equal(t, 7, cfg.Jobs.RetentionDays)
	require.Equal(t, 60, cfg.AI.GenerateTimeout)
	require.Len(t, cfg.AI.GenerateModels, 2)
}

func TestLoadMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no port", `{"database": {"host": "h"}, "ai": {"provider": "p", "embed_model": "e", "generate_models": ["m"]}}`},
		{"no database", `{"port": 1, "ai": {"provider": "p", "embed_model": "e", "generate_models": ["m"]}}`},
		{"no provider", `{"port": 1, "database": {"host": "h"}, "ai": {"embed_model": "e", "generate_models": ["m"]}}`},
		{"no embed model", `{"port": 1, "database": {"host": "h"}, "ai": {"provider": "p", "generate_models": ["m"]}}`},
		{"no generate models", `{"port": 1, "database": {"host": "h"}, "ai": {"provider": "p", "embed_model": "e"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
