package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/config"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		Store:    config.StoreConfig{Driver: driver, SQLitePath: ":memory:"},
		Provider: config.ProviderConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		Accounts: map[string]config.AccountConfig{
			"SKILL":   {ClientID: "a", ClientSecret: "s1"},
			"COLLEGE": {ClientID: "b", ClientSecret: "s2"},
		},
		Fees:      config.FeeConfig{Base: "SKILL", Dependents: map[string]string{"COLLEGE": "SKILL"}},
		Session:   config.SessionConfig{TTL: 12 * time.Hour},
		Reconcile: config.ReconcileConfig{Mode: config.ModeInline, Interval: time.Hour, Concurrency: 2, MaxRetries: 3, CallTimeout: time.Second},
		Webhook:   config.WebhookConfig{VerifySignature: true, Tolerance: 5 * time.Minute},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_WiresRegistrationEndToEnd(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			app, err := New(context.Background(), discardLogger(), testConfig(driver), clock.NewSystem())
			require.NoError(t, err)
			t.Cleanup(app.Close)
			require.NotNil(t, app.Verifier)

			srv := httptest.NewServer(app.HTTPHandler(discardLogger()))
			t.Cleanup(srv.Close)

			body := `{"customerId":"C1","customerName":"Asha","customerPhone":"9876543210","feeType":"skill","orderAmount":"1500.00"}`
			resp, err := http.Post(srv.URL+"/api/orders/save", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			_ = resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			pending, err := app.Stores.Orders.ListByStatus(context.Background(), domain.StatusPending)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			require.Equal(t, domain.FeeType("SKILL"), pending[0].FeeType)

			report, err := app.Trigger(discardLogger(), noopReconciler{}).RunOnce(context.Background())
			require.NoError(t, err)
			require.Equal(t, 1, report.Listed)
			require.Equal(t, 1, report.Succeeded)
		})
	}
}

func TestNew_WebhookVerificationCanBeDisabled(t *testing.T) {
	cfg := testConfig(config.DriverMemory)
	cfg.Webhook.VerifySignature = false

	app, err := New(context.Background(), discardLogger(), cfg, clock.NewSystem())
	require.NoError(t, err)
	require.Nil(t, app.Verifier)
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), discardLogger(), config.StoreConfig{Driver: "mysql"}, clock.NewSystem())
	require.Error(t, err)
}

type noopReconciler struct{}

func (noopReconciler) ReconcileOrder(context.Context, string) error { return nil }
