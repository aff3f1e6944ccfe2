package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		want bool
	}{
		{PaymentStatusPending, PaymentStatusAuthorized, true},
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusCancelled, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusCompleted, false},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusPending, PaymentStatusDisputed, false},
		{PaymentStatusAuthorized, PaymentStatusProcessing, true},
		{PaymentStatusAuthorized, PaymentStatusCompleted, false},
		{PaymentStatusAuthorized, PaymentStatusPending, false},
		{PaymentStatusProcessing, PaymentStatusCompleted, true},
		{PaymentStatusProcessing, PaymentStatusRefunded, true},
		{PaymentStatusProcessing, PaymentStatusDisputed, true},
		{PaymentStatusProcessing, PaymentStatusCancelled, false},
		{PaymentStatusCompleted, PaymentStatusRefunded, true},
		{PaymentStatusCompleted, PaymentStatusDisputed, true},
		{PaymentStatusCompleted, PaymentStatusCancelled, false},
		{PaymentStatusCompleted, PaymentStatusProcessing, false},
		{PaymentStatusCancelled, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusPending, false},
		{PaymentStatusRefunded, PaymentStatusDisputed, false},
		{PaymentStatusDisputed, PaymentStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			require.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPaymentStatus_Terminal(t *testing.T) {
	terminal := []PaymentStatus{
		PaymentStatusCancelled, PaymentStatusFailed, PaymentStatusRefunded, PaymentStatusDisputed,
	}
	for _, s := range terminal {
		require.True(t, s.Terminal(), "%s should be terminal", s)
	}

	open := []PaymentStatus{
		PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusProcessing, PaymentStatusCompleted,
	}
	for _, s := range open {
		require.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}

func TestPayment_TransitionTo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := &Payment{Status: PaymentStatusPending}
	require.NoError(t, p.TransitionTo(PaymentStatusProcessing, now))
	require.Equal(t, PaymentStatusProcessing, p.Status)
	require.Nil(t, p.CompletedAt)

	require.NoError(t, p.TransitionTo(PaymentStatusCompleted, now.Add(time.Minute)))
	require.NotNil(t, p.CompletedAt)
	require.True(t, p.CompletedAt.Equal(now.Add(time.Minute)))

	// No skipping and no backward edges.
	require.ErrorIs(t, p.TransitionTo(PaymentStatusProcessing, now), ErrInvalidTransition)

	require.NoError(t, p.TransitionTo(PaymentStatusRefunded, now.Add(2*time.Minute)))
	require.ErrorIs(t, p.TransitionTo(PaymentStatusCompleted, now), ErrPaymentTerminal)
}

func TestPayment_AppendAudit_Clamped(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := &Payment{}
	p.AppendAudit("created", "alice", "", now)
	p.AppendAudit("updated", "alice", "", now.Add(-time.Hour))
	p.AppendAudit("completed", "alice", "", now.Add(time.Minute))

	require.Len(t, p.Audit, 3)
	// The stale clock gets clamped to the previous entry.
	require.True(t, p.Audit[1].CreatedAt.Equal(now))
	for i := 1; i < len(p.Audit); i++ {
		require.False(t, p.Audit[i].CreatedAt.Before(p.Audit[i-1].CreatedAt))
	}
}

func TestPayment_Clone(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Payment{
		ID:     uuid.New(),
		Status: PaymentStatusPending,
		Amount: decimal.NewFromInt(1000),
		Authorization: &Authorization{
			Required:  2,
			Approvers: []Approver{{ID: "cfo", Status: ApproverStatusPending}},
		},
		Schedule:   &Schedule{Kind: ScheduleKindRecurring, Frequency: FrequencyDaily, Interval: 1, StartDate: now},
		Conditions: []Condition{{Type: ConditionTimeBased, Operator: OperatorGTE, Value: "0"}},
		Splits:     []Split{{Recipient: Party{ID: "a"}, Kind: SplitKindPercentage, Percentage: decimal.NewFromInt(50)}},
		Escrow: &Escrow{
			Status:            EscrowStatusHeld,
			ReleaseConditions: []Condition{{Type: ConditionCustom, Operator: OperatorEquals, Value: "x"}},
		},
	}
	p.AppendAudit("created", "alice", "", now)

	cp := p.Clone()
	cp.Status = PaymentStatusProcessing
	cp.Authorization.Approvers[0].Status = ApproverStatusApproved
	cp.Conditions[0].Status = ConditionStatusMet
	cp.Splits[0].Status = SplitStatusSettled
	cp.Escrow.ReleaseConditions[0].Status = ConditionStatusMet
	cp.Schedule.ExecutionCount = 5
	cp.AppendAudit("mutated", "alice", "", now)

	require.Equal(t, PaymentStatusPending, p.Status)
	require.Equal(t, ApproverStatusPending, p.Authorization.Approvers[0].Status)
	require.Equal(t, ConditionStatus(""), p.Conditions[0].Status)
	require.Equal(t, SplitStatus(""), p.Splits[0].Status)
	require.Equal(t, ConditionStatus(""), p.Escrow.ReleaseConditions[0].Status)
	require.Equal(t, 0, p.Schedule.ExecutionCount)
	require.Len(t, p.Audit, 1)
}

func TestAuthorization_Recount(t *testing.T) {
	auth := &Authorization{
		Required: 2,
		Approvers: []Approver{
			{ID: "a", Status: ApproverStatusApproved},
			{ID: "b", Status: ApproverStatusPending},
			{ID: "c", Status: ApproverStatusRejected},
		},
	}

	auth.Recount()
	require.Equal(t, 1, auth.Collected)
	require.False(t, auth.ThresholdMet())

	auth.Approvers[1].Status = ApproverStatusApproved
	auth.Recount()
	require.Equal(t, 2, auth.Collected)
	require.True(t, auth.ThresholdMet())

	require.Nil(t, auth.Find("nobody"))
	require.NotNil(t, auth.Find("b"))
}

func TestFrequency_Valid(t *testing.T) {
	require.True(t, FrequencyDaily.Valid())
	require.True(t, FrequencyBiweekly.Valid())
	require.False(t, Frequency("fortnightly").Valid())
	require.False(t, Frequency("").Valid())
}
