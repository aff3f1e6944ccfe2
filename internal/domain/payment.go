package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentTypeOneTime     PaymentType = "one_time"
	PaymentTypeRecurring   PaymentType = "recurring"
	PaymentTypeScheduled   PaymentType = "scheduled"
	PaymentTypeConditional PaymentType = "conditional"
	PaymentTypeSplit       PaymentType = "split"
	PaymentTypeEscrow      PaymentType = "escrow"
	PaymentTypeInvoice     PaymentType = "invoice"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusDisputed   PaymentStatus = "disputed"
)

// statusGraph encodes every legal forward transition. Statuses are
// monotonic: there are no backward edges and no skipped intermediates.
var statusGraph = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusAuthorized, PaymentStatusProcessing, PaymentStatusCancelled, PaymentStatusFailed},
	PaymentStatusAuthorized: {PaymentStatusProcessing, PaymentStatusCancelled, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusDisputed},
	PaymentStatusCompleted:  {PaymentStatusRefunded, PaymentStatusDisputed},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range statusGraph[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist. Dispute
// resolution happens outside this core, so disputed counts as terminal
// here.
func (s PaymentStatus) Terminal() bool {
	return len(statusGraph[s]) == 0
}

type Currency string

type Method string

// Party identifies one side of a transfer.
type Party struct {
	ID       string `json:"id"`
	Address  string `json:"address,omitempty"`
	Verified bool   `json:"verified"`
}

// Fees are computed once at creation and never recomputed.
type Fees struct {
	Network  decimal.Decimal `json:"network"`
	Platform decimal.Decimal `json:"platform"`
	Total    decimal.Decimal `json:"total"`
}

type Payment struct {
	ID            uuid.UUID       `json:"id"`
	Type          PaymentType     `json:"type"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	Method        Method          `json:"method"`
	Sender        Party           `json:"sender"`
	Recipient     Party           `json:"recipient"`
	Fees          Fees            `json:"fees"`
	Description   string          `json:"description,omitempty"`
	Authorization *Authorization  `json:"authorization,omitempty"`
	Schedule      *Schedule       `json:"schedule,omitempty"`
	Conditions    []Condition     `json:"conditions,omitempty"`
	Splits        []Split         `json:"splits,omitempty"`
	Escrow        *Escrow         `json:"escrow,omitempty"`
	Audit         []AuditEvent    `json:"audit"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	SettlementRef *string         `json:"settlement_ref,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// TransitionTo moves the payment along the status graph, rejecting
// anything the graph does not allow.
func (p *Payment) TransitionTo(next PaymentStatus, at time.Time) error {
	if p.Status.Terminal() {
		return ErrPaymentTerminal
	}
	if !p.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	p.Status = next
	p.UpdatedAt = at
	if next == PaymentStatusCompleted {
		t := at
		p.CompletedAt = &t
	}
	return nil
}

// AppendAudit appends an immutable lifecycle event. Timestamps are
// clamped so the trail is always non-decreasing even when the caller's
// clock drifts.
func (p *Payment) AppendAudit(action, actor, detail string, at time.Time) {
	if n := len(p.Audit); n > 0 && at.Before(p.Audit[n-1].CreatedAt) {
		at = p.Audit[n-1].CreatedAt
	}
	p.Audit = append(p.Audit, AuditEvent{
		ID:        uuid.New(),
		Action:    action,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: at,
	})
}

// Clone returns a deep copy so stores can hand out records without
// sharing mutable state with the caller.
func (p *Payment) Clone() *Payment {
	cp := *p
	if p.Authorization != nil {
		auth := *p.Authorization
		auth.Approvers = append([]Approver(nil), p.Authorization.Approvers...)
		cp.Authorization = &auth
	}
	if p.Schedule != nil {
		sched := *p.Schedule
		cp.Schedule = &sched
	}
	if p.Escrow != nil {
		esc := *p.Escrow
		esc.ReleaseConditions = append([]Condition(nil), p.Escrow.ReleaseConditions...)
		cp.Escrow = &esc
	}
	cp.Conditions = append([]Condition(nil), p.Conditions...)
	cp.Splits = append([]Split(nil), p.Splits...)
	cp.Audit = append([]AuditEvent(nil), p.Audit...)
	return &cp
}
