package domain

import "github.com/shopspring/decimal"

type SplitKind string

const (
	SplitKindFixed      SplitKind = "fixed"
	SplitKindPercentage SplitKind = "percentage"
)

type SplitStatus string

const (
	SplitStatusPending SplitStatus = "pending"
	SplitStatusSettled SplitStatus = "settled"
	SplitStatusFailed  SplitStatus = "failed"
)

// Split allocates part of a payment's value to one recipient, either
// a fixed amount or a percentage of the total. Each split settles
// independently; distribution itself is the settlement collaborator's
// job.
type Split struct {
	Recipient     Party           `json:"recipient"`
	Kind          SplitKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	Percentage    decimal.Decimal `json:"percentage,omitempty"`
	Status        SplitStatus     `json:"status"`
	SettlementRef *string         `json:"settlement_ref,omitempty"`
}
