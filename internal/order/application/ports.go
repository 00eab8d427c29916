package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/merchant"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
)

// StatusRepository is the part of the order store both status-writing paths
// need. UpdateStatus fails with domain.ErrVersionConflict when the stored
// version no longer matches expectedVersion.
type StatusRepository interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status string, msg outbox.Message) (domain.Order, error)
}

type OrderRepository interface {
	StatusRepository
	FindByCustomerFee(ctx context.Context, customerID string, fee domain.FeeType) (domain.Order, error)
	// CreateIfAbsent stores o unless an order already exists for its
	// (customer, fee type); it returns whichever order is stored.
	CreateIfAbsent(ctx context.Context, o domain.Order) (domain.Order, bool, error)
	ListByStatus(ctx context.Context, status string) ([]domain.Order, error)
	ExistsWithStatus(ctx context.Context, customerID string, fee domain.FeeType, status string) (bool, error)
	AssignSession(ctx context.Context, id string, expectedVersion int64, sessionID, status string, msg outbox.Message) (domain.Order, error)
}

type AccountResolver interface {
	AccountFor(fee domain.FeeType) (merchant.Account, error)
}

type SessionGateway interface {
	CreateSession(ctx context.Context, o domain.Order, creds merchant.Credentials, expiresAt time.Time) (string, error)
}

type Reconciler interface {
	ReconcileOrder(ctx context.Context, orderID string) error
}
