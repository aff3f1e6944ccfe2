package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quantapay/gateway/internal/domain"
)

// Filter narrows List results. Zero-valued fields match everything.
type Filter struct {
	Type        domain.PaymentType
	Status      domain.PaymentStatus
	SenderID    string
	RecipientID string
	// DueBefore matches payments whose schedule has a next execution at
	// or before the given instant.
	DueBefore *time.Time
}

// PaymentRepository is the persistence boundary for payment records.
// Implementations must be read-after-write consistent for a single id.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
	List(ctx context.Context, f Filter) ([]*domain.Payment, error)
}

// Matches reports whether a payment satisfies the filter. Shared by
// the in-memory store; the Postgres store pushes the same predicates
// into SQL.
func (f Filter) Matches(p *domain.Payment) bool {
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.SenderID != "" && p.Sender.ID != f.SenderID {
		return false
	}
	if f.RecipientID != "" && p.Recipient.ID != f.RecipientID {
		return false
	}
	if f.DueBefore != nil {
		if p.Schedule == nil || p.Schedule.NextExecutionAt.IsZero() {
			return false
		}
		if p.Schedule.NextExecutionAt.After(*f.DueBefore) {
			return false
		}
	}
	return true
}
