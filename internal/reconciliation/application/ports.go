package application

import (
	"context"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/merchant"
	orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/domain"
)

type OrderReader interface {
	Get(ctx context.Context, id string) (orderdomain.Order, error)
}

type PendingLister interface {
	ListByStatus(ctx context.Context, status string) ([]orderdomain.Order, error)
}

// AttemptRepository stores each (payment id, status) pair at most once.
// InsertIfAbsent reports false for a pair that is already stored.
type AttemptRepository interface {
	InsertIfAbsent(ctx context.Context, a domain.PaymentAttempt) (bool, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error)
}

type PaymentLister interface {
	ListPayments(ctx context.Context, orderID string, creds merchant.Credentials) ([]domain.ReportedPayment, error)
}

type CredentialsResolver interface {
	CredentialsFor(fee orderdomain.FeeType) (merchant.Credentials, error)
}

// OrderReconciler is anything that can bring one order up to date: the
// engine itself, or a publisher handing the order to a consumer group.
type OrderReconciler interface {
	ReconcileOrder(ctx context.Context, orderID string) error
}

type Locker interface {
	TryLock(ctx context.Context, name string, lease time.Duration) (func(context.Context) error, bool, error)
}
