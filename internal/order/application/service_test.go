package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/merchant"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/storage/inmemory"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	sessionID string
	err       error
	calls     int
	lastCreds merchant.Credentials
	expiresAt time.Time
}

func (g *fakeGateway) CreateSession(_ context.Context, _ domain.Order, creds merchant.Credentials, expiresAt time.Time) (string, error) {
	g.calls++
	g.lastCreds = creds
	g.expiresAt = expiresAt
	return g.sessionID, g.err
}

type fakeReconciler struct {
	apply func(ctx context.Context, id string) error
	calls int
}

func (r *fakeReconciler) ReconcileOrder(ctx context.Context, id string) error {
	r.calls++
	if r.apply != nil {
		return r.apply(ctx, id)
	}
	return nil
}

type serviceFixture struct {
	svc     *Service
	repo    *inmemory.OrderRepository
	outbox  *inmemory.OutboxStore
	gateway *fakeGateway
	rec     *fakeReconciler
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ob := inmemory.NewOutboxStore(clk)
	repo := inmemory.NewOrderRepository(ob, clk)

	dir, err := merchant.NewDirectory(map[domain.FeeType]merchant.Account{
		"SKILL":   {Key: "skill-acct", Credentials: merchant.Credentials{ClientID: "skill-id", ClientSecret: "skill-secret"}},
		"COLLEGE": {Key: "college-acct", Credentials: merchant.Credentials{ClientID: "college-id", ClientSecret: "college-secret"}},
	})
	require.NoError(t, err)

	gw := &fakeGateway{sessionID: "session_1"}
	rec := &fakeReconciler{}
	writer := NewStatusWriter(log, repo, clk, 3)
	svc := NewService(log, repo, dir, gw, rec, writer, clk, Config{
		Policy: domain.FeePolicy{Base: "SKILL", Dependents: map[domain.FeeType]domain.FeeType{"COLLEGE": "SKILL"}},
	})
	return &serviceFixture{svc: svc, repo: repo, outbox: ob, gateway: gw, rec: rec, now: now}
}

func (f *serviceFixture) register(t *testing.T, customerID, fee string) domain.Order {
	t.Helper()
	o, _, err := f.svc.RegisterCustomer(context.Background(), RegisterInput{
		CustomerID: customerID,
		Name:       "Asha",
		Phone:      "9999999999",
		FeeType:    fee,
		Amount:     decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	return o
}

func TestService_RegisterCustomerIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	in := RegisterInput{CustomerID: "cust-1", FeeType: "skill", Amount: decimal.NewFromInt(1000)}

	first, created, err := f.svc.RegisterCustomer(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.FeeType("SKILL"), first.FeeType)
	assert.Equal(t, "skill-acct", first.Account)
	assert.Equal(t, domain.StatusPending, first.Status)

	second, created, err := f.svc.RegisterCustomer(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestService_RegisterCustomerRejectsInput(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.RegisterCustomer(ctx, RegisterInput{CustomerID: "cust-1", FeeType: "HOSTEL", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrUnknownFeeType)

	_, _, err = f.svc.RegisterCustomer(ctx, RegisterInput{CustomerID: "cust-1", FeeType: "SKILL", Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = f.svc.RegisterCustomer(ctx, RegisterInput{FeeType: "SKILL", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestService_CreateOrderSessionNoRecord(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.CreateOrderSession(context.Background(), "cust-1", "SKILL")
	assert.ErrorIs(t, err, domain.ErrNoMatchingRecord)
	assert.Zero(t, f.gateway.calls)
}

func TestService_CreateOrderSessionCreatesThenReuses(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o := f.register(t, "cust-1", "SKILL")

	res, err := f.svc.CreateOrderSession(ctx, "cust-1", "SKILL")
	require.NoError(t, err)
	assert.Equal(t, o.ID, res.OrderID)
	assert.Equal(t, "session_1", res.SessionID)
	assert.True(t, res.Allowed)
	assert.False(t, res.Reused)
	assert.Equal(t, "skill-id", f.gateway.lastCreds.ClientID)
	assert.Equal(t, f.now.Add(12*time.Hour), f.gateway.expiresAt)

	stored, err := f.repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "session_1", stored.SessionID)
	assert.Equal(t, domain.StatusPending, stored.Status)

	events := f.outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSessionCreated, events[0].Type)

	f.gateway.sessionID = "session_2"
	again, err := f.svc.CreateOrderSession(ctx, "cust-1", "SKILL")
	require.NoError(t, err)
	assert.Equal(t, "session_1", again.SessionID)
	assert.True(t, again.Reused)
	assert.Equal(t, 1, f.gateway.calls)
}

func TestService_CreateOrderSessionGatesDependentFee(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	skill := f.register(t, "cust-1", "SKILL")
	college := f.register(t, "cust-1", "COLLEGE")

	res, err := f.svc.CreateOrderSession(ctx, "cust-1", "COLLEGE")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, "college-id", f.gateway.lastCreds.ClientID)

	// the session exists, it is only withheld; reuse must gate too
	res, err = f.svc.CreateOrderSession(ctx, "cust-1", "COLLEGE")
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Empty(t, res.SessionID)

	_, err = f.svc.ApplyWebhook(ctx, skill.ID, "SUCCESS")
	require.NoError(t, err)

	res, err = f.svc.CreateOrderSession(ctx, "cust-1", "COLLEGE")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, college.ID, res.OrderID)
	assert.Equal(t, "session_1", res.SessionID)
}

func TestService_CreateOrderSessionProviderFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o := f.register(t, "cust-1", "SKILL")

	f.gateway.err = errors.New("upstream 503")
	_, err := f.svc.CreateOrderSession(ctx, "cust-1", "SKILL")
	assert.ErrorIs(t, err, domain.ErrProvider)

	f.gateway.err = nil
	f.gateway.sessionID = ""
	_, err = f.svc.CreateOrderSession(ctx, "cust-1", "SKILL")
	assert.ErrorIs(t, err, domain.ErrSessionNotIssued)

	stored, err := f.repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasSession())
	assert.Empty(t, f.outbox.Events())
}

func TestService_VerifyStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o := f.register(t, "cust-1", "SKILL")

	_, err := f.svc.VerifyStatus(ctx, "ORDER_missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Zero(t, f.rec.calls)

	f.rec.apply = func(ctx context.Context, id string) error {
		cur, err := f.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		_, err = f.repo.UpdateStatus(ctx, id, cur.Version, "FAILED", outbox.Message{})
		return err
	}
	status, err := f.svc.VerifyStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", status)

	f.rec.apply = func(context.Context, string) error { return domain.ErrProvider }
	_, err = f.svc.VerifyStatus(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestService_ApplyWebhook(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	o := f.register(t, "cust-1", "SKILL")

	_, err := f.svc.ApplyWebhook(ctx, "ORDER_missing", "SUCCESS")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	_, err = f.svc.ApplyWebhook(ctx, o.ID, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	updated, err := f.svc.ApplyWebhook(ctx, o.ID, "FAILED")
	require.NoError(t, err)
	assert.Equal(t, "FAILED", updated.Status)
	assert.Equal(t, int64(1), updated.Version)

	updated, err = f.svc.ApplyWebhook(ctx, o.ID, "SUCCESS")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", updated.Status)

	updated, err = f.svc.ApplyWebhook(ctx, o.ID, "FAILED")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", updated.Status)
	assert.Equal(t, int64(2), updated.Version)
}
