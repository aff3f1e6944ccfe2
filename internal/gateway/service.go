// Package gateway implements the payment lifecycle core: creation,
// multi-party authorization, scheduling, conditional triggering,
// splitting and escrow, all over one payment entity with an
// append-only audit trail.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantapay/gateway/internal/compliance"
	"github.com/quantapay/gateway/internal/config"
	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/logging"
	"github.com/quantapay/gateway/internal/repository"
	"github.com/quantapay/gateway/internal/settlement"
)

type paymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, p *domain.Payment) error
	List(ctx context.Context, f repository.Filter) ([]*domain.Payment, error)
}

type settlementClient interface {
	Transfer(ctx context.Context, req settlement.Request) (settlement.Result, error)
}

type complianceScreener interface {
	Screen(ctx context.Context, p *domain.Payment) (compliance.Recommendation, error)
}

type eventEmitter interface {
	Emit(ev domain.Event)
}

// Service is the gateway facade. Every mutation of a given payment id
// runs under that id's lock; operations on different ids never contend.
type Service struct {
	store      paymentStore
	settlement settlementClient
	compliance complianceScreener
	emitter    eventEmitter
	cfg        *config.Config
	fees       FeeCalculator
	currencies map[domain.Currency]bool
	methods    map[domain.Method]bool
	now        func() time.Time

	// locks grows with every payment id ever touched and is never
	// pruned. Entries are one mutex each; swap in a striped lock if a
	// single process ever handles payments in the tens of millions.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex

	monitors sync.Map
}

func NewService(
	store paymentStore,
	settle settlementClient,
	screener complianceScreener,
	emitter eventEmitter,
	cfg *config.Config,
) (*Service, error) {
	fees, err := NewFeeCalculator(cfg.PlatformFeePercent, cfg.NetworkFeeMultiplier)
	if err != nil {
		return nil, fmt.Errorf("NewService: %w", err)
	}

	currencies := make(map[domain.Currency]bool, len(cfg.SupportedCurrencies))
	for _, c := range cfg.SupportedCurrencies {
		currencies[domain.Currency(c)] = true
	}
	methods := make(map[domain.Method]bool, len(cfg.SupportedMethods))
	for _, m := range cfg.SupportedMethods {
		methods[domain.Method(m)] = true
	}

	return &Service{
		store:      store,
		settlement: settle,
		compliance: screener,
		emitter:    emitter,
		cfg:        cfg,
		fees:       fees,
		currencies: currencies,
		methods:    methods,
		now:        func() time.Time { return time.Now().UTC() },
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// paymentLock returns the mutex serializing mutations for one id.
func (s *Service) paymentLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

type CreatePaymentRequest struct {
	Type              domain.PaymentType
	Amount            string
	Currency          domain.Currency
	Method            domain.Method
	Sender            domain.Party
	Recipient         domain.Party
	Description       string
	RequiredApprovals int
	Approvers         []string
	Conditions        []domain.Condition
	Splits            []domain.Split
	Actor             string
}

// CreatePayment creates one_time, conditional, split and invoice
// payments. Scheduled/recurring creation goes through SchedulePayment
// and escrow through CreateEscrowPayment.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	typ := req.Type
	if typ == "" {
		typ = domain.PaymentTypeOneTime
	}
	switch typ {
	case domain.PaymentTypeOneTime, domain.PaymentTypeConditional, domain.PaymentTypeSplit, domain.PaymentTypeInvoice:
	default:
		return nil, fmt.Errorf("CreatePayment: type %q: %w", typ, domain.ErrInvalidRequest)
	}

	p, err := s.newPayment(typ, req.Amount, req.Currency, req.Method, req.Sender, req.Recipient, req.Description, req.Actor)
	if err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	if typ == domain.PaymentTypeConditional && len(req.Conditions) == 0 {
		return nil, fmt.Errorf("CreatePayment: conditional payment needs conditions: %w", domain.ErrInvalidRequest)
	}
	if typ == domain.PaymentTypeSplit && len(req.Splits) == 0 {
		return nil, fmt.Errorf("CreatePayment: split payment needs splits: %w", domain.ErrInvalidRequest)
	}

	if len(req.Splits) > 0 {
		if err := ValidateSplits(req.Splits, p.Amount); err != nil {
			return nil, fmt.Errorf("CreatePayment: %w", err)
		}
		p.Splits = normalizeSplits(req.Splits)
	}
	if len(req.Conditions) > 0 {
		p.Conditions = normalizeConditions(req.Conditions)
	}
	if req.RequiredApprovals > 0 {
		auth := &domain.Authorization{Required: req.RequiredApprovals}
		for _, id := range req.Approvers {
			auth.Approvers = append(auth.Approvers, domain.Approver{ID: id, Status: domain.ApproverStatusPending})
		}
		p.Authorization = auth
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	s.emit(p, "created", nil)
	log.Info("payment created",
		"payment_id", p.ID,
		"type", p.Type,
		"amount", p.Amount,
		"currency", p.Currency,
	)
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", err)
	}
	return p, nil
}

func (s *Service) ListPayments(ctx context.Context, f repository.Filter) ([]*domain.Payment, error) {
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListPayments: %w", err)
	}
	return out, nil
}

// CapturePayment consults compliance, then hands the transfer to the
// settlement collaborator and walks the payment to completed. Payments
// carrying an authorization block must be authorized first.
func (s *Service) CapturePayment(ctx context.Context, id uuid.UUID, actor string) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("CapturePayment: %w", err)
	}

	if p.Status.Terminal() {
		return nil, fmt.Errorf("CapturePayment: %w", domain.ErrPaymentTerminal)
	}
	if p.Authorization != nil && p.Status != domain.PaymentStatusAuthorized {
		return nil, fmt.Errorf("CapturePayment: %w", domain.ErrApprovalThresholdNotMet)
	}
	if p.Status != domain.PaymentStatusPending && p.Status != domain.PaymentStatusAuthorized {
		return nil, fmt.Errorf("CapturePayment: status %s: %w", p.Status, domain.ErrInvalidTransition)
	}

	// Capture is not a side door around the other gates: conditional
	// payments still need every condition met, and scheduled payments
	// cannot settle before they are due.
	if p.Type == domain.PaymentTypeConditional {
		if !evaluateConditionSet(p.Conditions, s.now()) {
			if uerr := s.store.Update(ctx, p); uerr != nil {
				return nil, fmt.Errorf("CapturePayment: %w", uerr)
			}
			return nil, fmt.Errorf("CapturePayment: %w", domain.ErrConditionsNotMet)
		}
	}
	if p.Schedule != nil && (p.Schedule.NextExecutionAt.IsZero() || p.Schedule.NextExecutionAt.After(s.now())) {
		return nil, fmt.Errorf("CapturePayment: not due: %w", domain.ErrNotReady)
	}

	rec, err := s.compliance.Screen(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("CapturePayment: compliance screen: %w", err)
	}
	switch rec {
	case compliance.RecommendDecline:
		now := s.now()
		reason := "declined by compliance screening"
		p.FailureReason = &reason
		if err := p.TransitionTo(domain.PaymentStatusFailed, now); err != nil {
			return nil, fmt.Errorf("CapturePayment: %w", err)
		}
		p.AppendAudit("capture_declined", actor, reason, now)
		if err := s.store.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("CapturePayment: %w", err)
		}
		s.emit(p, "failed", map[string]string{"reason": reason})
		return nil, fmt.Errorf("CapturePayment: %w", domain.ErrComplianceDeclined)
	case compliance.RecommendReview:
		return nil, fmt.Errorf("CapturePayment: %w", domain.ErrComplianceReview)
	}

	now := s.now()
	if err := p.TransitionTo(domain.PaymentStatusProcessing, now); err != nil {
		return nil, fmt.Errorf("CapturePayment: %w", err)
	}
	p.AppendAudit("capture_started", actor, "", now)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("CapturePayment: %w", err)
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
			return nil, fmt.Errorf("CapturePayment: %w", terr)
		}
		p.AppendAudit("settlement_failed", actor, reason, now)
		if uerr := s.store.Update(ctx, p); uerr != nil {
			return nil, fmt.Errorf("CapturePayment: %w", uerr)
		}
		s.emit(p, "failed", map[string]string{"reason": reason})
		return nil, fmt.Errorf("CapturePayment: %w", domain.ErrSettlementFailed)
	}

	if result.Reference != "" {
		ref := result.Reference
		p.SettlementRef = &ref
	}
	if err := p.TransitionTo(domain.PaymentStatusCompleted, now); err != nil {
		return nil, fmt.Errorf("CapturePayment: %w", err)
	}
	p.AppendAudit("captured", actor, result.Reference, now)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("CapturePayment: %w", err)
	}

	s.emit(p, "completed", nil)
	log.Info("payment captured", "payment_id", p.ID, "settlement_ref", result.Reference)
	return p, nil
}

// CancelPayment records cancellation; the record itself is never
// deleted.
func (s *Service) CancelPayment(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("CancelPayment: %w", err)
	}

	now := s.now()
	if err := p.TransitionTo(domain.PaymentStatusCancelled, now); err != nil {
		return nil, fmt.Errorf("CancelPayment: %w", err)
	}
	if p.Schedule != nil {
		// A cancelled payment must never be picked up as due again.
		p.Schedule.NextExecutionAt = time.Time{}
	}
	p.AppendAudit("cancelled", actor, reason, now)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("CancelPayment: %w", err)
	}

	s.emit(p, "cancelled", map[string]string{"reason": reason})
	return p, nil
}

// RefundPayment reverses a completed payment through settlement.
// Escrow refunds go through RefundEscrow instead.
func (s *Service) RefundPayment(ctx context.Context, id uuid.UUID, actor string) (*domain.Payment, error) {
	mu := s.paymentLock(id)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("RefundPayment: %w", err)
	}

	if p.Type == domain.PaymentTypeEscrow && p.Escrow != nil && p.Escrow.Status == domain.EscrowStatusHeld {
		return nil, fmt.Errorf("RefundPayment: held escrow must be refunded via RefundEscrow: %w", domain.ErrInvalidRequest)
	}
	if p.Status != domain.PaymentStatusCompleted {
		return nil, fmt.Errorf("RefundPayment: status %s: %w", p.Status, domain.ErrInvalidTransition)
	}

	result, err := s.settlement.Transfer(ctx, settlement.Request{
		PaymentID: p.ID,
		Sender:    p.Recipient.ID,
		Recipient: p.Sender.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	if err != nil || !result.Succeeded {
		if err != nil {
			return nil, fmt.Errorf("RefundPayment: %w: %w", domain.ErrSettlementFailed, err)
		}
		return nil, fmt.Errorf("RefundPayment: %w", domain.ErrSettlementFailed)
	}

	now := s.now()
	if err := p.TransitionTo(domain.PaymentStatusRefunded, now); err != nil {
		return nil, fmt.Errorf("RefundPayment: %w", err)
	}
	p.AppendAudit("refunded", actor, result.Reference, now)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("RefundPayment: %w", err)
	}

	s.emit(p, "refunded", nil)
	return p, nil
}

func (s *Service) newPayment(
	typ domain.PaymentType,
	amount string,
	currency domain.Currency,
	method domain.Method,
	sender, recipient domain.Party,
	description, actor string,
) (*domain.Payment, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("newPayment: amount %q: %w", amount, domain.ErrInvalidAmount)
	}
	if !amt.IsPositive() {
		return nil, fmt.Errorf("newPayment: %w", domain.ErrInvalidAmount)
	}
	if !s.currencies[currency] {
		return nil, fmt.Errorf("newPayment: %q: %w", currency, domain.ErrUnsupportedCurrency)
	}
	if !s.methods[method] {
		return nil, fmt.Errorf("newPayment: %q: %w", method, domain.ErrUnsupportedMethod)
	}
	if sender.ID == "" || recipient.ID == "" {
		return nil, fmt.Errorf("newPayment: sender and recipient required: %w", domain.ErrInvalidRequest)
	}

	now := s.now()
	p := &domain.Payment{
		ID:          uuid.New(),
		Type:        typ,
		Status:      domain.PaymentStatusPending,
		Amount:      amt,
		Currency:    currency,
		Method:      method,
		Sender:      sender,
		Recipient:   recipient,
		Fees:        s.fees.Calculate(amt),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.AppendAudit("created", actorOrSystem(actor), string(typ), now)
	return p, nil
}

func (s *Service) emit(p *domain.Payment, action string, payload any) {
	if s.emitter == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	s.emitter.Emit(domain.Event{
		ID:         uuid.New(),
		Timestamp:  s.now(),
		Type:       "payment",
		ResourceID: p.ID,
		Action:     action,
		Payload:    raw,
	})
}

func normalizeConditions(conds []domain.Condition) []domain.Condition {
	out := make([]domain.Condition, len(conds))
	copy(out, conds)
	for i := range out {
		out[i].Status = domain.ConditionStatusPending
		out[i].EvaluatedAt = nil
	}
	return out
}

func normalizeSplits(splits []domain.Split) []domain.Split {
	out := make([]domain.Split, len(splits))
	copy(out, splits)
	for i := range out {
		out[i].Status = domain.SplitStatusPending
		out[i].SettlementRef = nil
	}
	return out
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
