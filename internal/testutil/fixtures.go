package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantapay/gateway/internal/domain"
)

// PaymentFixture builds a minimal valid payment for store-level tests.
// Engine-level tests create payments through the gateway instead.
func PaymentFixture(typ domain.PaymentType, status domain.PaymentStatus) *domain.Payment {
	now := time.Now().UTC()
	p := &domain.Payment{
		ID:        uuid.New(),
		Type:      typ,
		Status:    status,
		Amount:    decimal.NewFromInt(1000),
		Currency:  "USD",
		Method:    "card",
		Sender:    domain.Party{ID: "acct-alice", Verified: true},
		Recipient: domain.Party{ID: "acct-bob"},
		Fees: domain.Fees{
			Network:  decimal.NewFromInt(1),
			Platform: decimal.NewFromInt(5),
			Total:    decimal.NewFromInt(6),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.AppendAudit("created", "system", string(typ), now)
	return p
}

// ScheduledFixture builds a pending recurring payment due at next.
func ScheduledFixture(next time.Time) *domain.Payment {
	p := PaymentFixture(domain.PaymentTypeRecurring, domain.PaymentStatusPending)
	p.Schedule = &domain.Schedule{
		Kind:            domain.ScheduleKindRecurring,
		Frequency:       domain.FrequencyDaily,
		Interval:        1,
		StartDate:       next.AddDate(0, 0, -1),
		NextExecutionAt: next,
	}
	return p
}
