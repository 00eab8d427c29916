package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = time.Hour
	DefaultConcurrency = 4
	batchLockName      = "reconcile-pending"
)

type BatchReport struct {
	Listed    int
	Succeeded int
	Failed    int
	// Skipped is set when another replica holds the batch lock.
	Skipped bool
}

// Trigger periodically reconciles every order still in the pending state.
type Trigger struct {
	log         *slog.Logger
	orders      PendingLister
	reconciler  OrderReconciler
	locker      Locker
	interval    time.Duration
	concurrency int
	lockTTL     time.Duration
}

type TriggerOption func(*Trigger)

func WithInterval(d time.Duration) TriggerOption {
	return func(t *Trigger) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithConcurrency(n int) TriggerOption {
	return func(t *Trigger) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithLocker makes each tick take a named lease first, so only one replica
// runs the batch.
func WithLocker(l Locker, ttl time.Duration) TriggerOption {
	return func(t *Trigger) {
		t.locker = l
		if ttl > 0 {
			t.lockTTL = ttl
		}
	}
}

func NewTrigger(log *slog.Logger, orders PendingLister, reconciler OrderReconciler, opts ...TriggerOption) *Trigger {
	t := &Trigger{
		log:         log,
		orders:      orders,
		reconciler:  reconciler,
		interval:    DefaultInterval,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.lockTTL <= 0 {
		t.lockTTL = t.interval / 2
	}
	return t
}

func (t *Trigger) Run(ctx context.Context) error {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info("batch trigger stopping")
			return nil
		case <-tk.C:
			if _, err := t.RunOnce(ctx); err != nil {
				t.log.Error("reconcile batch error", "err", err)
			}
		}
	}
}

// RunOnce reconciles the current pending orders. A failing order is logged
// and counted; it never stops the rest of the batch.
func (t *Trigger) RunOnce(ctx context.Context) (BatchReport, error) {
	var report BatchReport

	if t.locker != nil {
		release, ok, err := t.locker.TryLock(ctx, batchLockName, t.lockTTL)
		if err != nil {
			return report, err
		}
		if !ok {
			t.log.Info("reconcile batch held by another replica")
			report.Skipped = true
			return report, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				t.log.Warn("release batch lock failed", "err", err)
			}
		}()
	}

	pending, err := t.orders.ListByStatus(ctx, orderdomain.StatusPending)
	if err != nil {
		return report, err
	}
	report.Listed = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for _, o := range pending {
		o := o
		g.Go(func() error {
			if err := t.reconciler.ReconcileOrder(gctx, o.ID); err != nil {
				failed.Add(1)
				t.log.Error("reconcile order failed", "order_id", o.ID, "err", err)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	t.log.Info("reconcile batch finished",
		"listed", report.Listed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	return report, nil
}
