package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the shape delivered to lifecycle subscribers. Delivery is
// best-effort, at most once.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Type       string          `json:"type"`
	ResourceID uuid.UUID       `json:"resource_id"`
	Action     string          `json:"action"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
