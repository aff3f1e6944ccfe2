package domain

import "time"

type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
	EscrowStatusDisputed EscrowStatus = "disputed"
)

// Escrow tracks held funds. The only transitions are
// held -> released | refunded | disputed; released and refunded are
// terminal, and disputed awaits resolution outside this core.
// TimeoutSeconds, DisputeWindowSeconds and AutoRelease are declared
// policy consumed by an external scheduler; nothing here enforces them.
type Escrow struct {
	Address              string       `json:"address"`
	Status               EscrowStatus `json:"status"`
	ReleaseConditions    []Condition  `json:"release_conditions,omitempty"`
	Arbitrator           string       `json:"arbitrator,omitempty"`
	TimeoutSeconds       int64        `json:"timeout_seconds,omitempty"`
	DisputeWindowSeconds int64        `json:"dispute_window_seconds,omitempty"`
	AutoRelease          bool         `json:"auto_release"`
	DisputeReason        string       `json:"dispute_reason,omitempty"`
	ResolvedAt           *time.Time   `json:"resolved_at,omitempty"`
}
