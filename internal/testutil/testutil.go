// Package testutil provides shared test helpers for setting up vaults,
// cache stores and note collections.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/persist"
	"github.com/starford/ansuz/internal/storage"
)

// TestL2 creates a temporary SQLite cache store that is automatically closed.
func TestL2(t *testing.T) *persist.SQLite {
	t.Helper()
	db, err := persist.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger returns a logger that drops everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// Tree builds a collection from id/parent/path/content quadruples, which
// keeps hierarchy fixtures readable.
func Tree(rows ...[4]string) *models.Collection {
	notes := make([]*models.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, &models.Note{ID: r[0], ParentID: r[1], Path: r[2], Content: r[3]})
	}
	return models.NewCollection(notes...)
}
