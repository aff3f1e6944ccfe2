package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
	"github.com/quantapay/gateway/internal/repository"
	"github.com/quantapay/gateway/internal/settlement"
)

type ScheduleRequest struct {
	Kind          domain.ScheduleKind
	Amount        string
	Currency      domain.Currency
	Method        domain.Method
	Sender        domain.Party
	Recipient     domain.Party
	Description   string
	Actor         string
	ExecuteAt     time.Time
	Frequency     domain.Frequency
	Interval      int
	StartDate     time.Time
	EndDate       *time.Time
	MaxExecutions int
}

// SchedulePayment creates a scheduled (one-shot) or recurring payment
// and computes its first execution time.
func (s *Service) SchedulePayment(ctx context.Context, req ScheduleRequest) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	var typ domain.PaymentType
	switch req.Kind {
	case domain.ScheduleKindScheduled:
		typ = domain.PaymentTypeScheduled
		if req.ExecuteAt.IsZero() {
			return nil, fmt.Errorf("SchedulePayment: execute_at required: %w", domain.ErrInvalidSchedule)
		}
	case domain.ScheduleKindRecurring:
		typ = domain.PaymentTypeRecurring
		if !req.Frequency.Valid() {
			return nil, fmt.Errorf("SchedulePayment: frequency %q: %w", req.Frequency, domain.ErrInvalidSchedule)
		}
		if req.Interval < 1 {
			return nil, fmt.Errorf("SchedulePayment: interval %d: %w", req.Interval, domain.ErrInvalidSchedule)
		}
	default:
		return nil, fmt.Errorf("SchedulePayment: kind %q: %w", req.Kind, domain.ErrInvalidSchedule)
	}

	p, err := s.newPayment(typ, req.Amount, req.Currency, req.Method, req.Sender, req.Recipient, req.Description, req.Actor)
	if err != nil {
		return nil, fmt.Errorf("SchedulePayment: %w", err)
	}

	startDate := req.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}
	p.Schedule = &domain.Schedule{
		Kind:          req.Kind,
		Frequency:     req.Frequency,
		Interval:      req.Interval,
		ExecuteAt:     req.ExecuteAt,
		StartDate:     startDate,
		EndDate:       req.EndDate,
		MaxExecutions: req.MaxExecutions,
	}
	p.Schedule.NextExecutionAt = NextExecution(*p.Schedule)
	if p.Schedule.NextExecutionAt.IsZero() {
		return nil, fmt.Errorf("SchedulePayment: no executable occurrence: %w", domain.ErrInvalidSchedule)
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("SchedulePayment: %w", err)
	}

	s.emit(p, "scheduled", nil)
	log.Info("payment scheduled",
		"payment_id", p.ID,
		"kind", req.Kind,
		"next_execution_at", p.Schedule.NextExecutionAt,
	)
	return p, nil
}

// NextExecution computes the next due time for a schedule. It is a
// pure function of its input. The zero time means no further
// executions remain; that is a sentinel, not an error.
func NextExecution(sched domain.Schedule) time.Time {
	if sched.MaxExecutions > 0 && sched.ExecutionCount >= sched.MaxExecutions {
		return time.Time{}
	}

	switch sched.Kind {
	case domain.ScheduleKindScheduled:
		if sched.ExecutionCount > 0 {
			return time.Time{}
		}
		return sched.ExecuteAt
	case domain.ScheduleKindRecurring:
		base := sched.StartDate
		if sched.LastExecutedAt != nil && sched.LastExecutedAt.After(base) {
			base = *sched.LastExecutedAt
		}
		interval := sched.Interval
		if interval < 1 {
			interval = 1
		}
		next := sched.Frequency.Add(base, interval)
		if sched.EndDate != nil && next.After(*sched.EndDate) {
			return time.Time{}
		}
		return next
	}
	return time.Time{}
}

// RunScheduler polls for due payments and executes them until the
// context is cancelled. An external harness can instead drive
// ExecuteDuePayment directly.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) {
	log := logging.FromContext(ctx)
	log.Info("scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

func (s *Service) runDue(ctx context.Context) {
	log := logging.FromContext(ctx)

	now := s.now()
	due, err := s.store.List(ctx, repository.Filter{
		Status:    domain.PaymentStatusPending,
		DueBefore: &now,
	})
	if err != nil {
		log.Error("failed to list due payments", logging.Err(err))
		return
	}

	for _, p := range due {
		if err := s.ExecuteDuePayment(ctx, p.ID); err != nil {
			if domain.IsNotReady(err) {
				continue
			}
			log.Error("failed to execute due payment", "payment_id", p.ID, logging.Err(err))
		}
	}
}

// ExecuteDuePayment runs one scheduled occurrence. A cancel that
// lands first wins: the status re-check under the per-id lock rejects
// the execution as a state error, so cancel and execute can never both
// take effect.
func (s *Service) ExecuteDuePayment(ctx context.Context, id uuid.UUID) error {
	log := logging.FromContext(ctx)

	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("ExecuteDuePayment: %w", err)
	}
	if p.Schedule == nil {
		return fmt.Errorf("ExecuteDuePayment: %w", domain.ErrNotScheduled)
	}
	if p.Status != domain.PaymentStatusPending {
		return fmt.Errorf("ExecuteDuePayment: status %s: %w", p.Status, domain.ErrInvalidTransition)
	}
	if p.Schedule.NextExecutionAt.IsZero() || p.Schedule.NextExecutionAt.After(s.now()) {
		return fmt.Errorf("ExecuteDuePayment: not due: %w", domain.ErrNotReady)
	}

	result, err := s.settlement.Transfer(ctx, settlement.Request{
		PaymentID: p.ID,
		Sender:    p.Sender.ID,
		Recipient: p.Recipient.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	now := s.now()
	if err != nil || !result.Succeeded {
		reason := "settlement rejected the transfer"
		if err != nil {
			reason = err.Error()
		}
		if p.Schedule.Kind == domain.ScheduleKindScheduled {
			p.FailureReason = &reason
			if terr := p.TransitionTo(domain.PaymentStatusFailed, now); terr != nil {
				return fmt.Errorf("ExecuteDuePayment: %w", terr)
			}
		}
		// Recurring payments keep their due time and retry next poll.
		p.AppendAudit("execution_failed", "scheduler", reason, now)
		if uerr := s.store.Update(ctx, p); uerr != nil {
			return fmt.Errorf("ExecuteDuePayment: %w", uerr)
		}
		s.emit(p, "execution_failed", map[string]string{"reason": reason})
		return fmt.Errorf("ExecuteDuePayment: %w", domain.ErrSettlementFailed)
	}

	p.Schedule.ExecutionCount++
	t := now
	p.Schedule.LastExecutedAt = &t
	if result.Reference != "" {
		ref := result.Reference
		p.SettlementRef = &ref
	}
	p.AppendAudit("executed", "scheduler",
		fmt.Sprintf("execution %d", p.Schedule.ExecutionCount), now)

	p.Schedule.NextExecutionAt = NextExecution(*p.Schedule)
	if p.Schedule.NextExecutionAt.IsZero() {
		if err := p.TransitionTo(domain.PaymentStatusProcessing, now); err != nil {
			return fmt.Errorf("ExecuteDuePayment: %w", err)
		}
		if err := p.TransitionTo(domain.PaymentStatusCompleted, now); err != nil {
			return fmt.Errorf("ExecuteDuePayment: %w", err)
		}
		p.AppendAudit("completed", "scheduler", "schedule exhausted", now)
	} else {
		p.UpdatedAt = now
	}

	if err := s.store.Update(ctx, p); err != nil {
		return fmt.Errorf("ExecuteDuePayment: %w", err)
	}

	s.emit(p, "executed", map[string]string{"execution": fmt.Sprint(p.Schedule.ExecutionCount)})
	if p.Status == domain.PaymentStatusCompleted {
		s.emit(p, "completed", nil)
	}
	log.Info("scheduled execution completed",
		"payment_id", p.ID,
		"execution", p.Schedule.ExecutionCount,
		"next_execution_at", p.Schedule.NextExecutionAt,
	)
	return nil
}
