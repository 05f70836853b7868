package api

import (
	"encoding/json"
	"time"

	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/snapshotservice"
)

// CreateSnapshotRequest is the request body for saving a snapshot.
type CreateSnapshotRequest struct {
	SessionID string          `json:"sessionId" example:"session-1"`
	UserID    string          `json:"userId" example:"alice" validate:"required"`
	ViewID    string          `json:"viewId" example:"sales-overview" validate:"required"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload" swaggertype:"object"`
}

// CreateSnapshotResponse is returned after a snapshot is saved.
type CreateSnapshotResponse = snapshot.CreateResult

// SnapshotListItem is one entry of a list response (aliased from the domain layer).
type SnapshotListItem = snapshotservice.ListItem

// SnapshotListResponse wraps snapshot listings.
type SnapshotListResponse struct {
	Success   bool               `json:"success" example:"true"`
	Snapshots []SnapshotListItem `json:"snapshots" validate:"required"`
}

// ConnectionsResponse lists a snapshot's connections with resolved endpoints.
type ConnectionsResponse struct {
	Success     bool                               `json:"success" example:"true"`
	Connections []snapshotservice.ConnectionDetail `json:"connections" validate:"required"`
}
