package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/testutil"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOrder(customerID string, fee domain.FeeType) domain.Order {
	return domain.NewOrder(domain.Customer{ID: customerID, Name: "Asha"}, fee,
		decimal.RequireFromString("1499.50"), "", "acct", time.Now().UTC())
}

func TestRepository_CreateIfAbsent(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := NewRepository(testLogger(), pool)

	first, created, err := repo.CreateIfAbsent(ctx, newOrder("cust-1", "SKILL"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, first.Amount.Equal(decimal.RequireFromString("1499.50")))

	second, created, err := repo.CreateIfAbsent(ctx, newOrder("cust-1", "SKILL"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, err = repo.Get(ctx, "ORDER_missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestRepository_UpdateStatusCompareAndSwap(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := NewRepository(testLogger(), pool)

	o, _, err := repo.CreateIfAbsent(ctx, newOrder("cust-1", "SKILL"))
	require.NoError(t, err)

	msg := outbox.Message{AggregateType: domain.AggregateType, AggregateID: o.ID, Type: domain.EventStatusChanged, Payload: []byte(`{}`)}
	updated, err := repo.UpdateStatus(ctx, o.ID, 0, "FAILED", msg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, "FAILED", updated.Status)

	_, err = repo.UpdateStatus(ctx, o.ID, 0, "SUCCESS", msg)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = repo.UpdateStatus(ctx, "ORDER_missing", 0, "SUCCESS", msg)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id=$1`, o.ID).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestRepository_SessionAndQueries(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := NewRepository(testLogger(), pool)

	skill, _, err := repo.CreateIfAbsent(ctx, newOrder("cust-1", "SKILL"))
	require.NoError(t, err)
	_, _, err = repo.CreateIfAbsent(ctx, newOrder("cust-1", "COLLEGE"))
	require.NoError(t, err)

	withSession, err := repo.AssignSession(ctx, skill.ID, 0, "session_1", domain.StatusPending,
		outbox.Message{AggregateType: domain.AggregateType, AggregateID: skill.ID, Type: domain.EventSessionCreated, Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "session_1", withSession.SessionID)

	pending, err := repo.ListByStatus(ctx, "pending")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	paid, err := repo.ExistsWithStatus(ctx, "cust-1", "SKILL", domain.StatusSuccess)
	require.NoError(t, err)
	assert.False(t, paid)

	_, err = repo.UpdateStatus(ctx, skill.ID, withSession.Version, "success", outbox.Message{Payload: []byte(`{}`)})
	require.NoError(t, err)
	paid, err = repo.ExistsWithStatus(ctx, "cust-1", "SKILL", domain.StatusSuccess)
	require.NoError(t, err)
	assert.True(t, paid)
}

func TestOutboxStore_LockAndRetry(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	repo := NewRepository(testLogger(), pool)
	store := NewOutboxStore(testLogger(), pool)

	o, _, err := repo.CreateIfAbsent(ctx, newOrder("cust-1", "SKILL"))
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, o.ID, 0, "FAILED", outbox.Message{
		AggregateType: domain.AggregateType, AggregateID: o.ID, Type: domain.EventStatusChanged,
		Payload: []byte(`{"to":"FAILED"}`), Headers: map[string]string{"source": "webhook"},
	})
	require.NoError(t, err)

	events, err := store.LockBatch(ctx, "relay-a", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "webhook", events[0].Headers["source"])

	again, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, store.MarkFailed(ctx, events[0].ID, "broker down"))
	retry, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].RetryCount)

	require.NoError(t, store.MarkSent(ctx, []int64{retry[0].ID}))
	done, err := store.LockBatch(ctx, "relay-c", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, done)
}
