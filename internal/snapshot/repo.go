package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/checksum"
)

func newSnapshotID() string { return uuid.NewString() }

// Create saves s under the next version for its (UserID, ViewID) pair. The
// version lookup and insert share one transaction.
func (db *DB) Create(ctx context.Context, s Snapshot) (CreateResult, error) {
	if len(s.Payload) == 0 {
		s.Payload = json.RawMessage(`{}`)
	}
	if !json.Valid(s.Payload) {
		return CreateResult{}, fmt.Errorf("snapshot: create: payload is not JSON: %w", apperr.ErrInvalidSnapshot)
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if s.ID == "" {
		s.ID = db.newID()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return CreateResult{}, fmt.Errorf("snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var last int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM snapshots WHERE user_id = ? AND view_id = ?`,
		s.UserID, s.ViewID).Scan(&last)
	if err != nil {
		return CreateResult{}, fmt.Errorf("snapshot: last version: %w", err)
	}
	version := last + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, session_id, user_id, view_id, version, checksum, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.SessionID, s.UserID, s.ViewID, version, checksum.Sum(s.Payload), string(s.Payload), s.Timestamp.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return CreateResult{}, fmt.Errorf("snapshot: insert %s: %w", s.ID, apperr.ErrConflict)
		}
		return CreateResult{}, fmt.Errorf("snapshot: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return CreateResult{}, fmt.Errorf("snapshot: commit: %w", err)
	}
	return CreateResult{Success: true, ID: s.ID, Version: version}, nil
}

const selectColumns = `id, session_id, user_id, view_id, version, checksum, payload, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var s Snapshot
	var payload string
	if err := row.Scan(&s.ID, &s.SessionID, &s.UserID, &s.ViewID, &s.Version, &s.Checksum, &payload, &s.Timestamp); err != nil {
		return nil, err
	}
	s.Payload = json.RawMessage(payload)
	return &s, nil
}

// List returns the newest snapshots matching f, at most ListLimit of them.
func (db *DB) List(ctx context.Context, f Filter) ([]Snapshot, error) {
	var where []string
	var args []any
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ViewID != "" {
		where = append(where, "view_id = ?")
		args = append(args, f.ViewID)
	}

	q := `SELECT ` + selectColumns + ` FROM snapshots`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, version DESC LIMIT ?"
	args = append(args, ListLimit)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	defer rows.Close()

	out := make([]Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("snapshot: scan: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Get returns the snapshot with the given id.
func (db *DB) Get(ctx context.Context, id string) (*Snapshot, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM snapshots WHERE id = ?`, id)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot: get %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: get %s: %w", id, err)
	}
	return s, nil
}

// ImportChecksums returns the checksum recorded for every imported file.
func (db *DB) ImportChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM imports`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: import checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// RecordImport remembers that path with the given checksum produced snapshotID.
func (db *DB) RecordImport(path, sum, snapshotID string) error {
	_, err := db.conn.Exec(`
		INSERT INTO imports (path, checksum, snapshot_id, imported_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum    = excluded.checksum,
			snapshot_id = excluded.snapshot_id,
			imported_at = excluded.imported_at
	`, path, sum, snapshotID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("snapshot: record import: %w", err)
	}
	return nil
}
