package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
)

type businessKey struct {
	customerID string
	fee        domain.FeeType
}

// OrderRepository keeps orders in memory. Outbox messages written with a
// state change land in the shared OutboxStore under the same lock.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	byKey  map[businessKey]string
	outbox *OutboxStore
	clock  clock.Clock
}

func NewOrderRepository(outbox *OutboxStore, clk clock.Clock) *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]domain.Order),
		byKey:  make(map[businessKey]string),
		outbox: outbox,
		clock:  clk,
	}
}

func (r *OrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *OrderRepository) FindByCustomerFee(_ context.Context, customerID string, fee domain.FeeType) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[businessKey{customerID, fee}]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.orders[id], nil
}

func (r *OrderRepository) CreateIfAbsent(_ context.Context, o domain.Order) (domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := businessKey{o.Customer.ID, o.FeeType}
	if id, exists := r.byKey[key]; exists {
		return r.orders[id], false, nil
	}
	r.orders[o.ID] = o
	r.byKey[key] = o.ID
	return o, true, nil
}

func (r *OrderRepository) ListByStatus(_ context.Context, status string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Order
	for _, o := range r.orders {
		if domain.SameStatus(o.Status, status) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *OrderRepository) ExistsWithStatus(_ context.Context, customerID string, fee domain.FeeType, status string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[businessKey{customerID, fee}]
	if !ok {
		return false, nil
	}
	return domain.SameStatus(r.orders[id].Status, status), nil
}

func (r *OrderRepository) AssignSession(_ context.Context, id string, expectedVersion int64, sessionID, status string, msg outbox.Message) (domain.Order, error) {
	return r.swap(id, expectedVersion, msg, func(o *domain.Order) {
		o.SessionID = sessionID
		o.Status = status
	})
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, expectedVersion int64, status string, msg outbox.Message) (domain.Order, error) {
	return r.swap(id, expectedVersion, msg, func(o *domain.Order) {
		o.Status = status
	})
}

func (r *OrderRepository) swap(id string, expectedVersion int64, msg outbox.Message, mutate func(*domain.Order)) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if o.Version != expectedVersion {
		return domain.Order{}, domain.ErrVersionConflict
	}

	mutate(&o)
	o.Version++
	o.UpdatedAt = r.clock.Now()
	r.orders[id] = o
	if r.outbox != nil {
		r.outbox.append(msg, o.UpdatedAt)
	}
	return o, nil
}
