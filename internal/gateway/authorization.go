package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
)

// AddApprover appends an approver to the payment's authorization
// block. Adding never changes the collected tally.
func (s *Service) AddApprover(ctx context.Context, id uuid.UUID, approverID string) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("AddApprover: %w", err)
	}
	if p.Authorization == nil {
		return nil, fmt.Errorf("AddApprover: %w", domain.ErrNotMultiParty)
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("AddApprover: %w", domain.ErrPaymentTerminal)
	}
	if p.Authorization.Find(approverID) != nil {
		return p, nil
	}

	now := s.now()
	p.Authorization.Approvers = append(p.Authorization.Approvers, domain.Approver{
		ID:     approverID,
		Status: domain.ApproverStatusPending,
	})
	p.UpdatedAt = now
	p.AppendAudit("approver_added", approverID, "", now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("AddApprover: %w", err)
	}
	return p, nil
}

// RemoveApprover drops an approver and recounts the tally.
func (s *Service) RemoveApprover(ctx context.Context, id uuid.UUID, approverID string) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RemoveApprover: %w", err)
	}
	if p.Authorization == nil {
		return nil, fmt.Errorf("RemoveApprover: %w", domain.ErrNotMultiParty)
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("RemoveApprover: %w", domain.ErrPaymentTerminal)
	}

	found := false
	approvers := p.Authorization.Approvers[:0]
	for _, ap := range p.Authorization.Approvers {
		if ap.ID == approverID {
			found = true
			continue
		}
		approvers = append(approvers, ap)
	}
	if !found {
		return nil, fmt.Errorf("RemoveApprover: %q: %w", approverID, domain.ErrApproverNotFound)
	}

	now := s.now()
	p.Authorization.Approvers = approvers
	p.Authorization.Recount()
	p.UpdatedAt = now
	p.AppendAudit("approver_removed", approverID, "", now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("RemoveApprover: %w", err)
	}
	return p, nil
}

// Approve marks (or inserts) an approver as approved and recounts the
// tally. The payment moves pending -> authorized exactly once, the
// moment collected reaches the threshold; repeat calls are idempotent.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approverID, signature string) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}
	if p.Authorization == nil {
		return nil, fmt.Errorf("Approve: %w", domain.ErrNotMultiParty)
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("Approve: %w", domain.ErrPaymentTerminal)
	}

	ap := p.Authorization.Find(approverID)
	if ap == nil {
		p.Authorization.Approvers = append(p.Authorization.Approvers, domain.Approver{ID: approverID})
		ap = &p.Authorization.Approvers[len(p.Authorization.Approvers)-1]
	}
	if ap.Status == domain.ApproverStatusApproved {
		return p, nil
	}

	now := s.now()
	ap.Status = domain.ApproverStatusApproved
	ap.Signature = signature
	t := now
	ap.ApprovedAt = &t

	p.Authorization.Recount()
	p.UpdatedAt = now
	p.AppendAudit("approver_approved", approverID, "", now)

	authorized := false
	if p.Authorization.ThresholdMet() && p.Status == domain.PaymentStatusPending {
		if err := p.TransitionTo(domain.PaymentStatusAuthorized, now); err != nil {
			return nil, fmt.Errorf("Approve: %w", err)
		}
		p.AppendAudit("authorized", approverID,
			fmt.Sprintf("%d of %d approvals", p.Authorization.Collected, p.Authorization.Required), now)
		authorized = true
	}

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	s.emit(p, "approved", map[string]string{"approver": approverID})
	if authorized {
		s.emit(p, "authorized", nil)
		log.Info("payment authorized",
			"payment_id", p.ID,
			"collected", p.Authorization.Collected,
			"required", p.Authorization.Required,
		)
	}
	return p, nil
}

// Reject records a rejection and cancels the payment outright. One
// rejection vetoes the payment regardless of approvals already
// collected.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, approverID, reason string) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}
	if p.Authorization == nil {
		return nil, fmt.Errorf("Reject: %w", domain.ErrNotMultiParty)
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("Reject: %w", domain.ErrPaymentTerminal)
	}

	now := s.now()
	ap := p.Authorization.Find(approverID)
	if ap == nil {
		p.Authorization.Approvers = append(p.Authorization.Approvers, domain.Approver{ID: approverID})
		ap = &p.Authorization.Approvers[len(p.Authorization.Approvers)-1]
	}
	ap.Status = domain.ApproverStatusRejected
	ap.Reason = reason

	p.Authorization.Recount()
	p.UpdatedAt = now
	p.AppendAudit("approver_rejected", approverID, reason, now)

	if p.Status == domain.PaymentStatusPending || p.Status == domain.PaymentStatusAuthorized {
		if err := p.TransitionTo(domain.PaymentStatusCancelled, now); err != nil {
			return nil, fmt.Errorf("Reject: %w", err)
		}
		p.AppendAudit("cancelled", approverID, "rejected by approver", now)
	}

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}

	s.emit(p, "rejected", map[string]string{"approver": approverID, "reason": reason})
	return p, nil
}

// AuthorizePayment transitions pending -> authorized when the
// threshold is already met. Below the threshold it is a no-op, not an
// error.
func (s *Service) AuthorizePayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("AuthorizePayment: %w", err)
	}
	if p.Authorization == nil {
		return nil, fmt.Errorf("AuthorizePayment: %w", domain.ErrNotMultiParty)
	}

	if !p.Authorization.ThresholdMet() || p.Status != domain.PaymentStatusPending {
		return p, nil
	}

	now := s.now()
	if err := p.TransitionTo(domain.PaymentStatusAuthorized, now); err != nil {
		return nil, fmt.Errorf("AuthorizePayment: %w", err)
	}
	p.AppendAudit("authorized", "system",
		fmt.Sprintf("%d of %d approvals", p.Authorization.Collected, p.Authorization.Required), now)

	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("AuthorizePayment: %w", err)
	}

	s.emit(p, "authorized", nil)
	return p, nil
}
