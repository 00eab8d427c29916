//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/bootstrap"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/config"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/application"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	orderkafka "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/tracing"
)

var env *Env

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	env, err = Setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "integration setup:", err)
		os.Exit(1)
	}
	code := m.Run()
	env.Teardown(ctx)
	os.Exit(code)
}

// fakeProvider answers the two provider calls the service makes.
func fakeProvider(t *testing.T, payments string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/pg/orders":
			var body struct {
				OrderID string `json:"order_id"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			_, _ = fmt.Fprintf(w, `{"order_id":%q,"payment_session_id":"session_%s"}`, body.OrderID, body.OrderID)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/payments"):
			_, _ = io.WriteString(w, payments)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReconciliation_PostgresAndOutboxToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider := fakeProvider(t, `[
		{"cf_payment_id": 101, "payment_status": "FAILED", "payment_group": "upi", "payment_completion_time": "2025-03-01T10:00:00+05:30"},
		{"cf_payment_id": 102, "payment_status": "SUCCESS", "payment_group": "card", "payment_completion_time": "2025-03-01T10:05:00+05:30"},
		{"cf_payment_id": 103, "payment_status": "NOT_ATTEMPTED"}
	]`)

	cfg := &config.Config{
		Store:    config.StoreConfig{Driver: config.DriverPostgres, PostgresURL: env.PGURL},
		Provider: config.ProviderConfig{BaseURL: provider.URL, APIVersion: "2025-01-01", Timeout: 5 * time.Second},
		Accounts: map[string]config.AccountConfig{
			"SKILL":   {ClientID: "id-1", ClientSecret: "secret-1"},
			"COLLEGE": {ClientID: "id-2", ClientSecret: "secret-2"},
		},
		Fees:      config.FeeConfig{Base: "SKILL", Dependents: map[string]string{"COLLEGE": "SKILL"}},
		Session:   config.SessionConfig{TTL: 12 * time.Hour},
		Reconcile: config.ReconcileConfig{Mode: config.ModeInline, MaxRetries: 3, CallTimeout: 5 * time.Second},
	}
	app, err := bootstrap.New(ctx, log, cfg, clock.NewSystem())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	customer := fmt.Sprintf("IT-%d", time.Now().UnixNano())
	order, created, err := app.Orders.RegisterCustomer(ctx, application.RegisterInput{
		CustomerID: customer,
		Name:       "Integration",
		Phone:      "9876543210",
		FeeType:    "skill",
		Amount:     decimal.RequireFromString("2500.00"),
		Currency:   "INR",
	})
	require.NoError(t, err)
	require.True(t, created)

	session, err := app.Orders.CreateOrderSession(ctx, customer, "SKILL")
	require.NoError(t, err)
	require.True(t, session.Allowed)
	require.Equal(t, "session_"+order.ID, session.SessionID)

	res, err := app.Engine.Reconcile(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuccess, res.Status)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 1, res.Discarded)
	require.True(t, res.Updated)

	res, err = app.Engine.Reconcile(ctx, order.ID)
	require.NoError(t, err)
	require.Zero(t, res.Inserted)
	require.Equal(t, 2, res.Duplicates)
	require.False(t, res.Updated)

	// the college fee is now unlocked
	_, _, err = app.Orders.RegisterCustomer(ctx, application.RegisterInput{
		CustomerID: customer, Name: "Integration", Phone: "9876543210",
		FeeType: "COLLEGE", Amount: decimal.RequireFromString("100"), Currency: "INR",
	})
	require.NoError(t, err)
	college, err := app.Orders.CreateOrderSession(ctx, customer, "COLLEGE")
	require.NoError(t, err)
	require.True(t, college.Allowed)

	topic := "payment.events." + strings.ToLower(customer)
	writer := orderkafka.NewWriter(env.KAddr)
	t.Cleanup(func() { _ = writer.Close() })
	relay := outbox.NewRelay(log, app.Stores.Outbox, outbox.NewDispatcher(log, writer, topic), "it-relay",
		outbox.WithInterval(100*time.Millisecond))
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go func() { _ = relay.Run(relayCtx) }()

	want := map[string]bool{domain.EventSessionCreated: false, domain.EventStatusChanged: false}
	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: env.KAddr, Topic: topic, Partition: 0, MinBytes: 1, MaxBytes: 1 << 20})
	t.Cleanup(func() { _ = reader.Close() })
	for seen := 0; seen < len(want); {
		msg, err := reader.ReadMessage(ctx)
		require.NoError(t, err)
		if string(msg.Key) != order.ID {
			continue
		}
		typ := tracing.HeaderValue(msg.Headers, "event_type")
		if done, ok := want[typ]; ok && !done {
			want[typ] = true
			seen++
		}
	}
}
