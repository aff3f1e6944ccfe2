package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
	"github.com/quantapay/gateway/internal/settlement"
)

type EscrowRequest struct {
	Amount               string
	Currency             domain.Currency
	Method               domain.Method
	Sender               domain.Party
	Recipient            domain.Party
	Description          string
	Actor                string
	ReleaseConditions    []domain.Condition
	Arbitrator           string
	TimeoutSeconds       int64
	DisputeWindowSeconds int64
	AutoRelease          bool
}

// CreateEscrowPayment allocates a holding reference and records the
// funding intent; moving the actual funds is the settlement
// collaborator's job. The payment sits in processing while the escrow
// is held. Timeout and dispute-window values are stored as declared
// policy; enforcing them is an external scheduler's responsibility.
func (s *Service) CreateEscrowPayment(ctx context.Context, req EscrowRequest) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if !s.cfg.EscrowEnabled {
		return nil, fmt.Errorf("CreateEscrowPayment: %w", domain.ErrEscrowDisabled)
	}

	p, err := s.newPayment(domain.PaymentTypeEscrow, req.Amount, req.Currency, req.Method, req.Sender, req.Recipient, req.Description, req.Actor)
	if err != nil {
		return nil, fmt.Errorf("CreateEscrowPayment: %w", err)
	}

	now := p.CreatedAt
	p.Escrow = &domain.Escrow{
		Address:              "escrow:" + uuid.NewString(),
		Status:               domain.EscrowStatusHeld,
		ReleaseConditions:    normalizeConditions(req.ReleaseConditions),
		Arbitrator:           req.Arbitrator,
		TimeoutSeconds:       req.TimeoutSeconds,
		DisputeWindowSeconds: req.DisputeWindowSeconds,
		AutoRelease:          req.AutoRelease,
	}
	p.AppendAudit("escrow_funded", actorOrSystem(req.Actor), p.Escrow.Address, now)
	if err := p.TransitionTo(domain.PaymentStatusProcessing, now); err != nil {
		return nil, fmt.Errorf("CreateEscrowPayment: %w", err)
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("CreateEscrowPayment: %w", err)
	}

	s.emit(p, "escrow_funded", map[string]string{"address": p.Escrow.Address})
	log.Info("escrow payment created",
		"payment_id", p.ID,
		"address", p.Escrow.Address,
		"amount", p.Amount,
	)
	return p, nil
}

// ReleaseEscrow pays the held funds out to the recipient. All release
// conditions, when present, must evaluate met first.
func (s *Service) ReleaseEscrow(ctx context.Context, id uuid.UUID, actor string) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.escrowInHeldState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ReleaseEscrow: %w", err)
	}

	now := s.now()
	if len(p.Escrow.ReleaseConditions) > 0 {
		if !evaluateConditionSet(p.Escrow.ReleaseConditions, now) {
			p.UpdatedAt = now
			if uerr := s.store.Update(ctx, p); uerr != nil {
				return nil, fmt.Errorf("ReleaseEscrow: %w", uerr)
			}
			return nil, fmt.Errorf("ReleaseEscrow: %w", domain.ErrConditionsNotMet)
		}
	}

	result, err := s.settlement.Transfer(ctx, settlement.Request{
		PaymentID: p.ID,
		Sender:    p.Escrow.Address,
		Recipient: p.Recipient.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	if err != nil || !result.Succeeded {
		if err != nil {
			return nil, fmt.Errorf("ReleaseEscrow: %w: %w", domain.ErrSettlementFailed, err)
		}
		return nil, fmt.Errorf("ReleaseEscrow: %w", domain.ErrSettlementFailed)
	}

	now = s.now()
	p.Escrow.Status = domain.EscrowStatusReleased
	t := now
	p.Escrow.ResolvedAt = &t
	if result.Reference != "" {
		ref := result.Reference
		p.SettlementRef = &ref
	}
	if err := p.TransitionTo(domain.PaymentStatusCompleted, now); err != nil {
		return nil, fmt.Errorf("ReleaseEscrow: %w", err)
	}
	p.AppendAudit("escrow_released", actorOrSystem(actor), result.Reference, now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("ReleaseEscrow: %w", err)
	}

	s.emit(p, "escrow_released", nil)
	log.Info("escrow released", "payment_id", p.ID)
	return p, nil
}

// RefundEscrow returns the held funds to the sender.
func (s *Service) RefundEscrow(ctx context.Context, id uuid.UUID, actor string) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.escrowInHeldState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RefundEscrow: %w", err)
	}

	result, err := s.settlement.Transfer(ctx, settlement.Request{
		PaymentID: p.ID,
		Sender:    p.Escrow.Address,
		Recipient: p.Sender.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	if err != nil || !result.Succeeded {
		if err != nil {
			return nil, fmt.Errorf("RefundEscrow: %w: %w", domain.ErrSettlementFailed, err)
		}
		return nil, fmt.Errorf("RefundEscrow: %w", domain.ErrSettlementFailed)
	}

	now := s.now()
	p.Escrow.Status = domain.EscrowStatusRefunded
	t := now
	p.Escrow.ResolvedAt = &t
	if err := p.TransitionTo(domain.PaymentStatusRefunded, now); err != nil {
		return nil, fmt.Errorf("RefundEscrow: %w", err)
	}
	p.AppendAudit("escrow_refunded", actorOrSystem(actor), result.Reference, now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("RefundEscrow: %w", err)
	}

	s.emit(p, "escrow_refunded", nil)
	log.Info("escrow refunded", "payment_id", p.ID)
	return p, nil
}

// DisputeEscrow freezes the escrow pending resolution by the
// arbitrator. Resolution itself happens outside this core.
func (s *Service) DisputeEscrow(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if reason == "" {
		return nil, fmt.Errorf("DisputeEscrow: reason required: %w", domain.ErrInvalidRequest)
	}

	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.escrowInHeldState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("DisputeEscrow: %w", err)
	}

	now := s.now()
	p.Escrow.Status = domain.EscrowStatusDisputed
	p.Escrow.DisputeReason = reason
	if err := p.TransitionTo(domain.PaymentStatusDisputed, now); err != nil {
		return nil, fmt.Errorf("DisputeEscrow: %w", err)
	}
	p.AppendAudit("escrow_disputed", actorOrSystem(actor), reason, now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("DisputeEscrow: %w", err)
	}

	s.emit(p, "escrow_disputed", map[string]string{"reason": reason})
	log.Info("escrow disputed", "payment_id", p.ID, "reason", reason)
	return p, nil
}

// escrowInHeldState loads the payment and verifies the escrow can
// still be acted on. Callers must hold the payment's lock.
func (s *Service) escrowInHeldState(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Escrow == nil {
		return nil, domain.ErrNotEscrow
	}
	if p.Escrow.Status != domain.EscrowStatusHeld {
		return nil, fmt.Errorf("escrow is %s: %w", p.Escrow.Status, domain.ErrEscrowNotHeld)
	}
	return p, nil
}
