package postgres

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	orderpg "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptRepository_InsertIfAbsent(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Now().UTC().Truncate(time.Millisecond)
	o, _, err := orderpg.NewRepository(log, pool).CreateIfAbsent(ctx,
		orderdomain.NewOrder(orderdomain.Customer{ID: "cust-1"}, "SKILL", decimal.NewFromInt(100), "", "skill", now))
	require.NoError(t, err)

	repo := NewAttemptRepository(log, pool)
	a, err := domain.NewAttempt(o.ID, domain.ReportedPayment{
		PaymentID: "p1", Status: "FAILED", CompletionTime: "2025-06-01T10:00:00Z",
	}, now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := repo.InsertIfAbsent(ctx, a)
			assert.NoError(t, err)
			results[i] = inserted
		}()
	}
	wg.Wait()

	inserted := 0
	for _, ok := range results {
		if ok {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)

	a.Status = "SUCCESS"
	ok, err := repo.InsertIfAbsent(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].CompletedAt)
	assert.True(t, stored[0].CompletedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)))
}
