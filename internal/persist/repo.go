package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetGlobal returns the shared entry stored under hash.
func (s *SQLite) GetGlobal(ctx context.Context, hash string) ([]byte, bool, error) {
	return s.get(ctx, `SELECT entry FROM global_cache WHERE hash = ?`, hash)
}

// PutGlobal stores a shared entry under hash.
func (s *SQLite) PutGlobal(ctx context.Context, hash string, data []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO global_cache (hash, entry, stored_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(hash) DO UPDATE SET
			entry     = excluded.entry,
			stored_at = excluded.stored_at
	`, hash, data)
	if err != nil {
		return fmt.Errorf("persist: put global: %w", err)
	}
	return nil
}

// RemoveGlobal deletes the shared entry under hash.
func (s *SQLite) RemoveGlobal(ctx context.Context, hash string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM global_cache WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("persist: remove global: %w", err)
	}
	return nil
}

// GetPerNote returns the entry of noteID stored under hash.
func (s *SQLite) GetPerNote(ctx context.Context, noteID, hash string) ([]byte, bool, error) {
	return s.get(ctx, `SELECT entry FROM note_cache WHERE note_id = ? AND hash = ?`, noteID, hash)
}

// PutPerNote stores an entry of noteID under hash.
func (s *SQLite) PutPerNote(ctx context.Context, noteID, hash string, data []byte) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO note_cache (note_id, hash, entry, stored_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(note_id, hash) DO UPDATE SET
			entry     = excluded.entry,
			stored_at = excluded.stored_at
	`, noteID, hash, data)
	if err != nil {
		return fmt.Errorf("persist: put note entry: %w", err)
	}
	return nil
}

// RemovePerNote deletes one entry of noteID.
func (s *SQLite) RemovePerNote(ctx context.Context, noteID, hash string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM note_cache WHERE note_id = ? AND hash = ?`, noteID, hash); err != nil {
		return fmt.Errorf("persist: remove note entry: %w", err)
	}
	return nil
}

// ClearNote deletes every entry of noteID.
func (s *SQLite) ClearNote(ctx context.Context, noteID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM note_cache WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("persist: clear note: %w", err)
	}
	return nil
}

// Counts returns the number of global and per-note entries.
func (s *SQLite) Counts(ctx context.Context) (global, perNote int, err error) {
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM global_cache`).Scan(&global); err != nil {
		return 0, 0, fmt.Errorf("persist: count global: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM note_cache`).Scan(&perNote); err != nil {
		return 0, 0, fmt.Errorf("persist: count note entries: %w", err)
	}
	return global, perNote, nil
}

func (s *SQLite) get(ctx context.Context, query string, args ...any) ([]byte, bool, error) {
	var data []byte
	err := s.conn.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persist: get: %w", err)
	}
	return data, true, nil
}
