package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
)

// ApplyWebhook writes the status pushed by the provider straight onto the
// order. It does not record a payment attempt; the next reconciliation does.
func (s *Service) ApplyWebhook(ctx context.Context, orderID, paymentStatus string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	paymentStatus = strings.TrimSpace(paymentStatus)
	if orderID == "" || paymentStatus == "" {
		return domain.Order{}, fmt.Errorf("%w: order id and payment status are required", domain.ErrInvalidInput)
	}

	change, err := s.status.Apply(ctx, orderID, paymentStatus, domain.SourceWebhook)
	if errors.Is(err, domain.ErrOrderNotFound) {
		s.log.Warn("webhook for unknown order", "order_id", orderID, "status", paymentStatus)
		return domain.Order{}, err
	}
	if err != nil {
		s.log.Error("webhook status update failed", "order_id", orderID, "err", err)
		return domain.Order{}, err
	}
	return change.Order, nil
}
