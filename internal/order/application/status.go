package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
)

const DefaultMaxRetries = 3

type StatusChange struct {
	Order    domain.Order
	Previous string
	Changed  bool
}

// StatusWriter moves an order to a new status with a compare-and-swap on its
// version. On conflict it re-reads the order and decides again, so a SUCCESS
// written by a concurrent writer is never replaced.
type StatusWriter struct {
	log        *slog.Logger
	repo       StatusRepository
	clock      clock.Clock
	maxRetries int
}

func NewStatusWriter(log *slog.Logger, repo StatusRepository, clk clock.Clock, maxRetries int) *StatusWriter {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &StatusWriter{log: log, repo: repo, clock: clk, maxRetries: maxRetries}
}

func (w *StatusWriter) Apply(ctx context.Context, orderID, status, source string) (StatusChange, error) {
	for attempt := 1; ; attempt++ {
		o, err := w.repo.Get(ctx, orderID)
		if err != nil {
			return StatusChange{}, err
		}

		next, changed := o.NextStatus(status)
		if !changed {
			if domain.IsSuccess(o.Status) && !domain.SameStatus(o.Status, status) {
				w.log.Info("status update ignored, order already successful",
					"order_id", orderID, "status", status, "source", source)
			}
			return StatusChange{Order: o, Previous: o.Status}, nil
		}

		msg, err := outbox.NewMessage(ctx, domain.AggregateType, o.ID, domain.EventStatusChanged, domain.OrderStatusChanged{
			OrderID:    o.ID,
			CustomerID: o.Customer.ID,
			FeeType:    o.FeeType,
			From:       o.Status,
			To:         next,
			Source:     source,
			Version:    o.Version + 1,
			ChangedAt:  w.clock.Now(),
		}, map[string]string{"source": source})
		if err != nil {
			return StatusChange{}, err
		}

		updated, err := w.repo.UpdateStatus(ctx, o.ID, o.Version, next, msg)
		if errors.Is(err, domain.ErrVersionConflict) {
			if attempt >= w.maxRetries {
				return StatusChange{}, fmt.Errorf("update order %s after %d attempts: %w", orderID, attempt, err)
			}
			w.log.Debug("status update conflict, retrying", "order_id", orderID, "attempt", attempt)
			continue
		}
		if err != nil {
			return StatusChange{}, err
		}

		w.log.Info("order status changed", "order_id", o.ID, "from", o.Status, "to", next, "source", source)
		return StatusChange{Order: updated, Previous: o.Status, Changed: true}, nil
	}
}
