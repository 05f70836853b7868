// Package snapshot persists playground snapshots: an SQLite-backed store with
// per-view versioning, an HTTP client for a remote store, and an importer for
// snapshot files dropped into a directory.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ListLimit caps every List result.
const ListLimit = 50

// Snapshot is one saved playground state. Payload is opaque to the store.
type Snapshot struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId"`
	ViewID    string          `json:"viewId"`
	Version   int             `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Checksum  string          `json:"checksum,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Validate checks the fields a caller must supply before Create.
func (s Snapshot) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.UserID, validation.Required, validation.Length(1, 128)),
		validation.Field(&s.ViewID, validation.Required, validation.Length(1, 128)),
		validation.Field(&s.SessionID, validation.Length(0, 128)),
		validation.Field(&s.Payload, validation.By(jsonObject)),
	)
}

func jsonObject(v any) error {
	raw, _ := v.(json.RawMessage)
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return errors.New("must be a JSON object")
	}
	return nil
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	ViewID    string `json:"viewId,omitempty"`
}

// CreateResult is returned by Create.
type CreateResult struct {
	Success bool   `json:"success"`
	ID      string `json:"snapshotId"`
	Version int    `json:"version"`
}

// Store is the durable snapshot collaborator.
type Store interface {
	// Create saves s with version = 1 + the highest version stored for the
	// same (UserID, ViewID).
	Create(ctx context.Context, s Snapshot) (CreateResult, error)
	// List returns at most ListLimit snapshots, newest first.
	List(ctx context.Context, f Filter) ([]Snapshot, error)
	// Get returns one snapshot by id.
	Get(ctx context.Context, id string) (*Snapshot, error)
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*Client)(nil)
)
