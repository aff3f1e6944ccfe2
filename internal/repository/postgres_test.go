package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantapay/gateway/internal/domain"
	"github.com/quantapay/gateway/internal/testutil"
)

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	db := testutil.SetupTestDB(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	t.Run("round trip with nested blocks", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		p := testutil.PaymentFixture(domain.PaymentTypeConditional, domain.PaymentStatusPending)
		p.Amount = decimal.RequireFromString("1234.56")
		p.Conditions = []domain.Condition{
			{Type: domain.ConditionPriceThreshold, Operator: domain.OperatorGT, Value: "100", Status: domain.ConditionStatusPending},
		}
		p.Authorization = &domain.Authorization{
			Required:  2,
			Approvers: []domain.Approver{{ID: "cfo", Status: domain.ApproverStatusPending}},
		}
		p.Escrow = &domain.Escrow{
			Address: "escrow:test",
			Status:  domain.EscrowStatusHeld,
		}
		p.CreatedAt = now
		p.UpdatedAt = now

		require.NoError(t, repo.Create(ctx, p))

		got, err := repo.Get(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
		require.True(t, got.Amount.Equal(p.Amount), "amount survived as %s", got.Amount)
		require.Equal(t, domain.ConditionStatusPending, got.Conditions[0].Status)
		require.Equal(t, 2, got.Authorization.Required)
		require.Equal(t, domain.EscrowStatusHeld, got.Escrow.Status)
		require.Len(t, got.Audit, 1)
	})

	t.Run("duplicate create", func(t *testing.T) {
		p := testutil.PaymentFixture(domain.PaymentTypeOneTime, domain.PaymentStatusPending)
		require.NoError(t, repo.Create(ctx, p))
		require.ErrorIs(t, repo.Create(ctx, p), domain.ErrDuplicatePayment)
	})

	t.Run("update", func(t *testing.T) {
		p := testutil.PaymentFixture(domain.PaymentTypeOneTime, domain.PaymentStatusPending)
		require.NoError(t, repo.Create(ctx, p))

		p.Status = domain.PaymentStatusCompleted
		ref := "stl-99"
		p.SettlementRef = &ref
		require.NoError(t, repo.Update(ctx, p))

		got, err := repo.Get(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PaymentStatusCompleted, got.Status)
		require.Equal(t, "stl-99", *got.SettlementRef)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		require.ErrorIs(t, err, domain.ErrNotFound)

		missing := testutil.PaymentFixture(domain.PaymentTypeOneTime, domain.PaymentStatusPending)
		require.ErrorIs(t, repo.Update(ctx, missing), domain.ErrNotFound)
	})

	t.Run("list due payments", func(t *testing.T) {
		now := time.Now().UTC()

		due := testutil.ScheduledFixture(now.Add(-time.Minute))
		notDue := testutil.ScheduledFixture(now.Add(time.Hour))
		require.NoError(t, repo.Create(ctx, due))
		require.NoError(t, repo.Create(ctx, notDue))

		out, err := repo.List(ctx, Filter{Status: domain.PaymentStatusPending, DueBefore: &now})
		require.NoError(t, err)

		ids := make(map[uuid.UUID]bool, len(out))
		for _, p := range out {
			ids[p.ID] = true
		}
		require.True(t, ids[due.ID])
		require.False(t, ids[notDue.ID])
	})

	t.Run("list by sender", func(t *testing.T) {
		p := testutil.PaymentFixture(domain.PaymentTypeOneTime, domain.PaymentStatusPending)
		p.Sender.ID = "acct-dave"
		require.NoError(t, repo.Create(ctx, p))

		out, err := repo.List(ctx, Filter{SenderID: "acct-dave"})
		require.NoError(t, err)
		require.Len(t, out, 1)
		require.Equal(t, p.ID, out[0].ID)
	})
}
