package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrApproverNotFound = errors.New("approver not found")

	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrInvalidSplitConfig  = errors.New("invalid split configuration")
	ErrInvalidSchedule     = errors.New("invalid schedule")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrDuplicatePayment    = errors.New("duplicate payment")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentTerminal   = errors.New("payment already in terminal state")
	ErrNotConditional    = errors.New("payment has no conditions")
	ErrNotMultiParty     = errors.New("payment has no authorization block")
	ErrNotScheduled      = errors.New("payment has no schedule")
	ErrNotEscrow         = errors.New("payment is not an escrow payment")
	ErrEscrowDisabled    = errors.New("escrow payments are disabled")
	ErrEscrowNotHeld     = errors.New("escrow funds are not held")
	ErrMonitorRunning    = errors.New("condition monitor already running")

	ErrSettlementFailed   = errors.New("settlement failed")
	ErrComplianceDeclined = errors.New("declined by compliance screening")
)

// ErrNotReady is the umbrella for outcomes the caller may legitimately
// retry: the operation is valid, the payment just cannot proceed yet.
var (
	ErrNotReady                = errors.New("cannot proceed yet")
	ErrConditionsNotMet        = fmt.Errorf("conditions not met: %w", ErrNotReady)
	ErrApprovalThresholdNotMet = fmt.Errorf("approval threshold not met: %w", ErrNotReady)
	ErrComplianceReview        = fmt.Errorf("held for compliance review: %w", ErrNotReady)
)

func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}
