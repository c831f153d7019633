package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/renliu0x/askdoc/internal/config"
)

func configFor(dir string) config.FileStoreConfig {
	return config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": dir},
	}
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(configFor(dir))
	require.NoError(t, err)

	content := []byte("file body")
	err = store.Save(context.Background(), "sess_abcd.txt", memFile{bytes.NewReader(content)}, int64(len(content)))
	require.NoError(t, err)

	reader, err := store.Open(context.Background(), "sess_abcd.txt")
	require.NoError(t, err)
	defer reader.Close()
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := New(configFor(dir))
	require.NoError(t, err)

	body := memFile{bytes.NewReader([]byte("x"))}
	require.Error(t, store.Save(context.Background(), "../escape.txt", body, 1))
	_, err = store.Open(context.Background(), "a/b.txt")
	require.Error(t, err)
	_, err = store.Open(context.Background(), "")
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	for _, entry := range entries {
		require.NotEqual(t, "escape.txt", entry.Name())
	}
}

func TestUnknownStoreType(t *testing.T) {
	cfg := configFor(t.TempDir())
	cfg.Type = "ftp"
	_, err := New(cfg)
	require.Error(t, err)
}
