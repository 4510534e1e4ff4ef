package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Audit entity types understood by the backend.
const (
	EntityTypeDocument          = "Document"
	EntityTypeDocumentSignatory = "DocumentSignatory"
)

// AuditLog is one entry of an entity's audit trail.
type AuditLog struct {
	ID         int64           `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	UserID     *int64          `json:"userId"`
	UserName   string          `json:"userName,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   int64           `json:"entityId"`
	Details    json.RawMessage `json:"details,omitempty"`
}
