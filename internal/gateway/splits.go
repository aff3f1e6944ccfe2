package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantapay/gateway/internal/domain"
)

// ValidateSplits rejects any configuration whose percentage entries
// sum above 100 or whose fixed entries sum above the payment total.
// It runs before any mutation, so an invalid configuration is never
// partially stored.
func ValidateSplits(splits []domain.Split, total decimal.Decimal) error {
	pctSum := decimal.Zero
	fixedSum := decimal.Zero

	for i, sp := range splits {
		if sp.Recipient.ID == "" {
			return fmt.Errorf("ValidateSplits: split %d missing recipient: %w", i, domain.ErrInvalidSplitConfig)
		}
		switch sp.Kind {
		case domain.SplitKindPercentage:
			if !sp.Percentage.IsPositive() {
				return fmt.Errorf("ValidateSplits: split %d percentage must be positive: %w", i, domain.ErrInvalidSplitConfig)
			}
			pctSum = pctSum.Add(sp.Percentage)
		case domain.SplitKindFixed:
			if !sp.Amount.IsPositive() {
				return fmt.Errorf("ValidateSplits: split %d amount must be positive: %w", i, domain.ErrInvalidSplitConfig)
			}
			fixedSum = fixedSum.Add(sp.Amount)
		default:
			return fmt.Errorf("ValidateSplits: split %d kind %q: %w", i, sp.Kind, domain.ErrInvalidSplitConfig)
		}
	}

	if pctSum.GreaterThan(oneHundred) {
		return fmt.Errorf("ValidateSplits: percentages sum to %s: %w", pctSum, domain.ErrInvalidSplitConfig)
	}
	if fixedSum.GreaterThan(total) {
		return fmt.Errorf("ValidateSplits: fixed amounts sum to %s of %s: %w", fixedSum, total, domain.ErrInvalidSplitConfig)
	}
	return nil
}

// UpdateSplitStatus records the settlement outcome of one split, so a
// split payment can be partially complete while the remaining entries
// are still in flight.
func (s *Service) UpdateSplitStatus(ctx context.Context, id uuid.UUID, index int, status domain.SplitStatus, settlementRef, actor string) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateSplitStatus: %w", err)
	}

	if index < 0 || index >= len(p.Splits) {
		return nil, fmt.Errorf("UpdateSplitStatus: split %d: %w", index, domain.ErrInvalidRequest)
	}
	switch status {
	case domain.SplitStatusPending, domain.SplitStatusSettled, domain.SplitStatusFailed:
	default:
		return nil, fmt.Errorf("UpdateSplitStatus: status %q: %w", status, domain.ErrInvalidRequest)
	}

	now := s.now()
	p.Splits[index].Status = status
	if settlementRef != "" {
		ref := settlementRef
		p.Splits[index].SettlementRef = &ref
	}
	p.UpdatedAt = now
	p.AppendAudit("split_updated", actorOrSystem(actor), fmt.Sprintf("split %d %s", index, status), now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("UpdateSplitStatus: %w", err)
	}

	s.emit(p, "split_updated", map[string]string{"index": fmt.Sprint(index), "status": string(status)})
	return p, nil
}
