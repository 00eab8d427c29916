package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	orderapp "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/application"
	orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultCallTimeout = 10 * time.Second

type Result struct {
	OrderID    string
	Found      bool
	Previous   string
	Status     string
	Inserted   int
	Duplicates int
	Discarded  int
	Updated    bool
}

// Engine reconciles one order against the payments the provider reports for
// it.
type Engine struct {
	log         *slog.Logger
	orders      OrderReader
	attempts    AttemptRepository
	payments    PaymentLister
	creds       CredentialsResolver
	status      *orderapp.StatusWriter
	clock       clock.Clock
	callTimeout time.Duration
	tracer      trace.Tracer
}

func NewEngine(log *slog.Logger, orders OrderReader, attempts AttemptRepository, payments PaymentLister, creds CredentialsResolver, status *orderapp.StatusWriter, clk clock.Clock, callTimeout time.Duration) *Engine {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Engine{
		log:         log,
		orders:      orders,
		attempts:    attempts,
		payments:    payments,
		creds:       creds,
		status:      status,
		clock:       clk,
		callTimeout: callTimeout,
		tracer:      otel.Tracer("reconciliation-engine"),
	}
}

func (e *Engine) ReconcileOrder(ctx context.Context, orderID string) error {
	_, err := e.Reconcile(ctx, orderID)
	return err
}

func (e *Engine) Reconcile(ctx context.Context, orderID string) (res Result, err error) {
	ctx, span := e.tracer.Start(ctx, "Reconcile", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	res.OrderID = orderID
	o, err := e.orders.Get(ctx, orderID)
	if errors.Is(err, orderdomain.ErrOrderNotFound) {
		e.log.Warn("reconcile skipped, order not found", "order_id", orderID)
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Found = true
	res.Previous = o.Status
	res.Status = o.Status

	creds, err := e.creds.CredentialsFor(o.FeeType)
	if err != nil {
		return res, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	reports, err := e.payments.ListPayments(callCtx, o.ID, creds)
	cancel()
	if err != nil {
		return res, fmt.Errorf("%w: list payments for %s: %w", orderdomain.ErrProvider, o.ID, err)
	}
	if len(reports) == 0 {
		e.log.Info("no payments reported", "order_id", o.ID)
		return res, nil
	}

	now := e.clock.Now()
	valid := make([]domain.PaymentAttempt, 0, len(reports))
	for _, r := range reports {
		a, err := domain.NewAttempt(o.ID, r, now)
		switch {
		case errors.Is(err, domain.ErrNotAttempted):
			res.Discarded++
			e.log.Debug("payment not attempted, discarded", "order_id", o.ID, "payment_id", r.PaymentID)
			continue
		case err != nil:
			res.Discarded++
			e.log.Warn("malformed payment record skipped", "order_id", o.ID, "payment_id", r.PaymentID, "err", err)
			continue
		}

		inserted, err := e.attempts.InsertIfAbsent(ctx, a)
		if err != nil {
			return res, fmt.Errorf("record payment %s: %w", a.PaymentID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Duplicates++
		}
		valid = append(valid, a)
	}
	span.SetAttributes(
		attribute.Int("payments.inserted", res.Inserted),
		attribute.Int("payments.duplicates", res.Duplicates),
		attribute.Int("payments.discarded", res.Discarded),
	)

	resolved, ok := domain.Resolve(valid)
	if !ok {
		e.log.Info("no valid payments to resolve", "order_id", o.ID, "discarded", res.Discarded)
		return res, nil
	}

	change, err := e.status.Apply(ctx, o.ID, resolved.Status, orderdomain.SourceReconciliation)
	if err != nil {
		return res, err
	}
	res.Previous = change.Previous
	res.Status = change.Order.Status
	res.Updated = change.Changed

	e.log.Info("order reconciled",
		"order_id", o.ID,
		"status", res.Status,
		"updated", res.Updated,
		"decisive_payment_id", resolved.Decisive.PaymentID,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
	)
	return res, nil
}
