package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
	"github.com/quantapay/gateway/internal/settlement"
)

// Evaluation is the outcome of one evaluation pass over a payment's
// conditions.
type Evaluation struct {
	AllMet     bool
	CanExecute bool
}

// EvaluateConditions evaluates every condition independently against
// its own operator and value (the composition is a plain AND), persists
// the per-condition statuses and reports whether the payment can
// execute.
func (s *Service) EvaluateConditions(ctx context.Context, id uuid.UUID) (Evaluation, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Evaluation{}, fmt.Errorf("EvaluateConditions: %w", err)
	}
	if len(p.Conditions) == 0 {
		return Evaluation{}, fmt.Errorf("EvaluateConditions: %w", domain.ErrNotConditional)
	}

	now := s.now()
	allMet := evaluateConditionSet(p.Conditions, now)
	p.UpdatedAt = now

	if err := s.store.Update(ctx, p); err != nil {
		return Evaluation{}, fmt.Errorf("EvaluateConditions: %w", err)
	}

	return Evaluation{
		AllMet:     allMet,
		CanExecute: allMet && p.Status == domain.PaymentStatusPending,
	}, nil
}

// RecordConditionObservation feeds an externally observed value
// (oracle data, delivery confirmation, balance snapshot) into one
// condition for the next evaluation pass.
func (s *Service) RecordConditionObservation(ctx context.Context, id uuid.UUID, index int, observed, actor string) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RecordConditionObservation: %w", err)
	}
	conds := p.Conditions
	if len(conds) == 0 && p.Escrow != nil {
		conds = p.Escrow.ReleaseConditions
	}
	if index < 0 || index >= len(conds) {
		return nil, fmt.Errorf("RecordConditionObservation: condition %d: %w", index, domain.ErrInvalidRequest)
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("RecordConditionObservation: %w", domain.ErrPaymentTerminal)
	}

	now := s.now()
	conds[index].Actual = observed
	p.UpdatedAt = now
	p.AppendAudit("condition_observed", actorOrSystem(actor),
		fmt.Sprintf("condition %d", index), now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("RecordConditionObservation: %w", err)
	}
	return p, nil
}

// TriggerConditionalPayment executes the payment when every condition
// is met. When conditions are unmet it fails with a retryable
// not-ready error and leaves the payment pending.
func (s *Service) TriggerConditionalPayment(ctx context.Context, id uuid.UUID, actor string) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", err)
	}
	if len(p.Conditions) == 0 {
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", domain.ErrNotConditional)
	}

	now := s.now()
	allMet := evaluateConditionSet(p.Conditions, now)
	p.UpdatedAt = now

	if p.Status != domain.PaymentStatusPending {
		if err := s.store.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("TriggerConditionalPayment: %w", err)
		}
		return nil, fmt.Errorf("TriggerConditionalPayment: status %s: %w", p.Status, domain.ErrInvalidTransition)
	}
	if !allMet {
		if err := s.store.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("TriggerConditionalPayment: %w", err)
		}
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", domain.ErrConditionsNotMet)
	}

	if err := p.TransitionTo(domain.PaymentStatusProcessing, now); err != nil {
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", err)
	}
	p.AppendAudit("triggered", actorOrSystem(actor), "all conditions met", now)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", err)
	}

	result, err := s.settlement.Transfer(ctx, settlement.Request{
		PaymentID: p.ID,
		Sender:    p.Sender.ID,
		Recipient: p.Recipient.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	now = s.now()
	if err != nil || !result.Succeeded {
		reason := "settlement rejected the transfer"
		if err != nil {
			reason = err.Error()
		}
		p.FailureReason = &reason
		if terr := p.TransitionTo(domain.PaymentStatusFailed, now); terr != nil {
			return nil, fmt.Errorf("TriggerConditionalPayment: %w", terr)
		}
		p.AppendAudit("settlement_failed", actorOrSystem(actor), reason, now)
		if uerr := s.store.Update(ctx, p); uerr != nil {
			return nil, fmt.Errorf("TriggerConditionalPayment: %w", uerr)
		}
		s.emit(p, "failed", map[string]string{"reason": reason})
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", domain.ErrSettlementFailed)
	}

	if result.Reference != "" {
		ref := result.Reference
		p.SettlementRef = &ref
	}
	if err := p.TransitionTo(domain.PaymentStatusCompleted, now); err != nil {
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", err)
	}
	p.AppendAudit("completed", actorOrSystem(actor), result.Reference, now)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("TriggerConditionalPayment: %w", err)
	}

	s.emit(p, "completed", nil)
	log.Info("conditional payment executed", "payment_id", p.ID)
	return p, nil
}

// MonitorConditions polls a single payment's conditions at the
// configured interval and triggers it once they pass. The loop stops
// itself when the payment executes or leaves pending, and at most one
// monitor per payment can run at a time.
func (s *Service) MonitorConditions(ctx context.Context, id uuid.UUID) error {
	if _, running := s.monitors.LoadOrStore(id, struct{}{}); running {
		return fmt.Errorf("MonitorConditions: %w", domain.ErrMonitorRunning)
	}
	defer s.monitors.Delete(id)

	log := logging.FromContext(ctx)
	interval := time.Duration(s.cfg.ConditionPollIntervalS) * time.Second
	if interval <= 0 {
		// time.NewTicker panics on non-positive durations.
		interval = time.Second
	}
	log.Info("condition monitor started", "payment_id", id, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("condition monitor stopped", "payment_id", id)
			return nil
		case <-ticker.C:
			p, err := s.store.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("MonitorConditions: %w", err)
			}
			if p.Status != domain.PaymentStatusPending {
				log.Info("condition monitor finished", "payment_id", id, "status", p.Status)
				return nil
			}

			if _, err := s.TriggerConditionalPayment(ctx, id, "monitor"); err != nil {
				if domain.IsNotReady(err) {
					continue
				}
				if errors.Is(err, domain.ErrInvalidTransition) {
					return nil
				}
				log.Warn("condition monitor trigger failed", "payment_id", id, logging.Err(err))
				continue
			}
			return nil
		}
	}
}

// evaluateConditionSet evaluates each condition in place and reports
// whether all of them are met.
func evaluateConditionSet(conds []domain.Condition, now time.Time) bool {
	allMet := true
	for i := range conds {
		met := evaluateCondition(conds[i], now)
		t := now
		conds[i].EvaluatedAt = &t
		if met {
			conds[i].Status = domain.ConditionStatusMet
		} else {
			conds[i].Status = domain.ConditionStatusNotMet
			allMet = false
		}
	}
	return allMet
}

// evaluateCondition is pure. time_based conditions compare the
// evaluation clock against the target in Value; every other type
// compares the recorded observation against Value.
func evaluateCondition(c domain.Condition, now time.Time) bool {
	if c.Type == domain.ConditionTimeBased {
		target, err := parseTimeValue(c.Value)
		if err != nil {
			return false
		}
		return compareOrdered(decimal.NewFromInt(now.Unix()), decimal.NewFromInt(target.Unix()), c.Operator)
	}

	if c.Actual == "" {
		return false
	}
	return compareValues(c.Actual, c.Value, c.Operator)
}

func compareValues(actual, target string, op domain.ConditionOperator) bool {
	switch op {
	case domain.OperatorContains:
		return strings.Contains(actual, target)
	case domain.OperatorInRange:
		lo, hi, ok := parseRange(target)
		if !ok {
			return false
		}
		a, err := decimal.NewFromString(actual)
		if err != nil {
			return false
		}
		return a.GreaterThanOrEqual(lo) && a.LessThanOrEqual(hi)
	}

	a, aerr := decimal.NewFromString(actual)
	b, berr := decimal.NewFromString(target)
	if aerr == nil && berr == nil {
		return compareOrdered(a, b, op)
	}

	switch op {
	case domain.OperatorEquals:
		return actual == target
	case domain.OperatorNotEquals:
		return actual != target
	}
	return false
}

func compareOrdered(a, b decimal.Decimal, op domain.ConditionOperator) bool {
	cmp := a.Cmp(b)
	switch op {
	case domain.OperatorEquals:
		return cmp == 0
	case domain.OperatorNotEquals:
		return cmp != 0
	case domain.OperatorGT:
		return cmp > 0
	case domain.OperatorLT:
		return cmp < 0
	case domain.OperatorGTE:
		return cmp >= 0
	case domain.OperatorLTE:
		return cmp <= 0
	}
	return false
}

func parseRange(s string) (lo, hi decimal.Decimal, ok bool) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return decimal.Zero, decimal.Zero, false
	}
	lo, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	hi, err = decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return lo, hi, true
}

func parseTimeValue(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	unix, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parseTimeValue: %q: %w", s, domain.ErrInvalidRequest)
	}
	return time.Unix(unix, 0).UTC(), nil
}
