package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/config"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/gateway/cashfree"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/merchant"
	orderapp "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/application"
	orderhttp "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/infrastructure/http"
	reconapp "github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/application"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/webhook"
)

// App is the wired core shared by the service binary and the operator CLI.
// Transports that need a broker or Redis are attached by the caller.
type App struct {
	Config    *config.Config
	Stores    *Stores
	Directory *merchant.Directory
	Gateway   *cashfree.Client
	Status    *orderapp.StatusWriter
	Engine    *reconapp.Engine
	Orders    *orderapp.Service
	Verifier  *webhook.Verifier
	Clock     clock.Clock
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config, clk clock.Clock) (*App, error) {
	dir, err := merchant.NewDirectory(cfg.MerchantAccounts())
	if err != nil {
		return nil, fmt.Errorf("merchant accounts: %w", err)
	}

	stores, err := OpenStores(ctx, log, cfg.Store, clk)
	if err != nil {
		return nil, err
	}

	gateway := cashfree.NewClient(log, cashfree.Config{
		BaseURL:    cfg.Provider.BaseURL,
		APIVersion: cfg.Provider.APIVersion,
		NotifyURL:  cfg.Provider.NotifyURL,
		Timeout:    cfg.Provider.Timeout,
	})

	status := orderapp.NewStatusWriter(log, stores.Orders, clk, cfg.Reconcile.MaxRetries)
	engine := reconapp.NewEngine(log, stores.Orders, stores.Attempts, gateway, dir, status, clk, cfg.Reconcile.CallTimeout)
	orders := orderapp.NewService(log, stores.Orders, dir, gateway, engine, status, clk, orderapp.Config{
		Policy:      cfg.FeePolicy(),
		SessionTTL:  cfg.Session.TTL,
		CallTimeout: cfg.Reconcile.CallTimeout,
		MaxRetries:  cfg.Reconcile.MaxRetries,
	})

	var verifier *webhook.Verifier
	if cfg.Webhook.VerifySignature {
		verifier = webhook.NewVerifier(dir.Secrets(), cfg.Webhook.Tolerance)
	} else {
		log.Warn("webhook signature verification disabled")
	}

	return &App{
		Config:    cfg,
		Stores:    stores,
		Directory: dir,
		Gateway:   gateway,
		Status:    status,
		Engine:    engine,
		Orders:    orders,
		Verifier:  verifier,
		Clock:     clk,
	}, nil
}

// Trigger builds the pending-order batch around reconciler, which is the
// engine in inline mode and a publisher in kafka mode.
func (a *App) Trigger(log *slog.Logger, reconciler reconapp.OrderReconciler, opts ...reconapp.TriggerOption) *reconapp.Trigger {
	base := []reconapp.TriggerOption{
		reconapp.WithInterval(a.Config.Reconcile.Interval),
		reconapp.WithConcurrency(a.Config.Reconcile.Concurrency),
	}
	return reconapp.NewTrigger(log, a.Stores.Orders, reconciler, append(base, opts...)...)
}

func (a *App) HTTPHandler(log *slog.Logger) http.Handler {
	return orderhttp.NewHandler(log, a.Orders, a.Verifier).Routes()
}

func (a *App) Close() {
	a.Stores.Close()
}
