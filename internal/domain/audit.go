package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one entry in a payment's append-only trail. Entries
// are never mutated or reordered once appended.
type AuditEvent struct {
	ID        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
