package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantapay/gateway/internal/domain"
)

func createMultiParty(t *testing.T, svc *Service, required int, approvers ...string) *domain.Payment {
	t.Helper()
	p, err := svc.CreatePayment(context.Background(), CreatePaymentRequest{
		Amount:            "1000",
		Currency:          "USD",
		Method:            "card",
		Sender:            domain.Party{ID: "acct-alice"},
		Recipient:         domain.Party{ID: "acct-bob"},
		RequiredApprovals: required,
		Approvers:         approvers,
	})
	require.NoError(t, err)
	return p
}

func countAction(p *domain.Payment, action string) int {
	n := 0
	for _, ev := range p.Audit {
		if ev.Action == action {
			n++
		}
	}
	return n
}

func TestApprove_ThresholdTransition(t *testing.T) {
	svc, _, rec := newTestService(t)
	p := createMultiParty(t, svc, 2, "cfo", "ceo", "auditor")

	require.Equal(t, 2, p.Authorization.Required)
	require.Len(t, p.Authorization.Approvers, 3)

	got, err := svc.Approve(context.Background(), p.ID, "cfo", "sig-cfo")
	require.NoError(t, err)
	require.Equal(t, 1, got.Authorization.Collected)
	require.Equal(t, domain.PaymentStatusPending, got.Status)

	// The second approval crosses the threshold and authorizes exactly
	// once.
	got, err = svc.Approve(context.Background(), p.ID, "ceo", "sig-ceo")
	require.NoError(t, err)
	require.Equal(t, 2, got.Authorization.Collected)
	require.Equal(t, domain.PaymentStatusAuthorized, got.Status)
	require.Equal(t, 1, countAction(got, "authorized"))
	require.Contains(t, rec.actions(), "authorized")

	ap := got.Authorization.Find("ceo")
	require.NotNil(t, ap)
	require.Equal(t, domain.ApproverStatusApproved, ap.Status)
	require.Equal(t, "sig-ceo", ap.Signature)
	require.NotNil(t, ap.ApprovedAt)

	// Repeat approval is a silent no-op.
	before := len(got.Audit)
	got, err = svc.Approve(context.Background(), p.ID, "ceo", "sig-ceo-2")
	require.NoError(t, err)
	require.Equal(t, 2, got.Authorization.Collected)
	require.Len(t, got.Audit, before)
	require.Equal(t, "sig-ceo", got.Authorization.Find("ceo").Signature)

	// A surplus approval raises the tally but never re-authorizes.
	got, err = svc.Approve(context.Background(), p.ID, "auditor", "sig-aud")
	require.NoError(t, err)
	require.Equal(t, 3, got.Authorization.Collected)
	require.Equal(t, domain.PaymentStatusAuthorized, got.Status)
	require.Equal(t, 1, countAction(got, "authorized"))
}

func TestApprove_UnknownApproverInserted(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createMultiParty(t, svc, 1, "cfo")

	got, err := svc.Approve(context.Background(), p.ID, "delegate", "sig-del")
	require.NoError(t, err)
	require.Len(t, got.Authorization.Approvers, 2)
	require.Equal(t, 1, got.Authorization.Collected)
	require.Equal(t, domain.PaymentStatusAuthorized, got.Status)
}

func TestCapture_RequiresAuthorization(t *testing.T) {
	svc, settle, _ := newTestService(t)
	p := createMultiParty(t, svc, 2, "cfo", "ceo")

	_, err := svc.CapturePayment(context.Background(), p.ID, "alice")
	require.ErrorIs(t, err, domain.ErrApprovalThresholdNotMet)
	require.True(t, domain.IsNotReady(err))
	require.Zero(t, settle.calls())

	_, err = svc.Approve(context.Background(), p.ID, "cfo", "")
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), p.ID, "ceo", "")
	require.NoError(t, err)

	got, err := svc.CapturePayment(context.Background(), p.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCompleted, got.Status)
	require.Equal(t, 1, settle.calls())
}

func TestReject_SingleVeto(t *testing.T) {
	svc, settle, rec := newTestService(t)
	p := createMultiParty(t, svc, 2, "cfo", "ceo", "auditor")

	_, err := svc.Approve(context.Background(), p.ID, "cfo", "")
	require.NoError(t, err)

	// One rejection cancels the payment despite the collected approval.
	got, err := svc.Reject(context.Background(), p.ID, "auditor", "amount over limit")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusCancelled, got.Status)
	require.Equal(t, domain.ApproverStatusRejected, got.Authorization.Find("auditor").Status)
	require.Contains(t, auditActions(got), "approver_rejected")
	require.Contains(t, rec.actions(), "rejected")

	_, err = svc.Approve(context.Background(), p.ID, "ceo", "")
	require.ErrorIs(t, err, domain.ErrPaymentTerminal)

	_, err = svc.CapturePayment(context.Background(), p.ID, "alice")
	require.ErrorIs(t, err, domain.ErrPaymentTerminal)
	require.Zero(t, settle.calls())
}

func TestAddRemoveApprover(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createMultiParty(t, svc, 2, "cfo", "ceo")

	_, err := svc.Approve(context.Background(), p.ID, "cfo", "")
	require.NoError(t, err)

	// Adding never touches the tally; adding an existing id is a no-op.
	got, err := svc.AddApprover(context.Background(), p.ID, "auditor")
	require.NoError(t, err)
	require.Len(t, got.Authorization.Approvers, 3)
	require.Equal(t, 1, got.Authorization.Collected)

	got, err = svc.AddApprover(context.Background(), p.ID, "auditor")
	require.NoError(t, err)
	require.Len(t, got.Authorization.Approvers, 3)

	// Removing an approved approver recounts the tally down.
	got, err = svc.RemoveApprover(context.Background(), p.ID, "cfo")
	require.NoError(t, err)
	require.Len(t, got.Authorization.Approvers, 2)
	require.Equal(t, 0, got.Authorization.Collected)

	_, err = svc.RemoveApprover(context.Background(), p.ID, "nobody")
	require.ErrorIs(t, err, domain.ErrApproverNotFound)
}

func TestAuthorizePayment(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createMultiParty(t, svc, 2, "cfo", "ceo")

	// Below the threshold it is a no-op, not an error.
	got, err := svc.AuthorizePayment(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentStatusPending, got.Status)
	require.Zero(t, countAction(got, "authorized"))
}

func TestAuthorizationOps_RequireAuthBlock(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := createOneTime(t, svc, "1000")

	_, err := svc.Approve(context.Background(), p.ID, "cfo", "")
	require.ErrorIs(t, err, domain.ErrNotMultiParty)

	_, err = svc.Reject(context.Background(), p.ID, "cfo", "no")
	require.ErrorIs(t, err, domain.ErrNotMultiParty)

	_, err = svc.AddApprover(context.Background(), p.ID, "cfo")
	require.ErrorIs(t, err, domain.ErrNotMultiParty)

	_, err = svc.AuthorizePayment(context.Background(), p.ID)
	require.ErrorIs(t, err, domain.ErrNotMultiParty)
}
