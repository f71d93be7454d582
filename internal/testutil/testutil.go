// Package testutil provides shared test helpers for setting up vaults,
// stores, and tokenizers.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/store"
	"github.com/starford/laguz/internal/tokenizer"
)

// Logger returns a quiet logger for tests (errors only, to stderr).
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestStore creates a temporary SQLite-backed store that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "laguz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	st, err := store.Open(dbFile.Name(), Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	provider, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, provider
}

// TestTokenizers builds the default content and filename tokenizers.
func TestTokenizers(t *testing.T) (content, filename *tokenizer.Tokenizer) {
	t.Helper()
	content, err := tokenizer.New(tokenizer.DefaultContentConfig())
	if err != nil {
		t.Fatal(err)
	}
	filename, err = tokenizer.New(tokenizer.DefaultFilenameConfig())
	if err != nil {
		t.Fatal(err)
	}
	return content, filename
}
