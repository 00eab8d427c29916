package inmemory

import (
	"context"
	"sync"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/domain"
)

type attemptKey struct {
	paymentID string
	status    string
}

type AttemptRepository struct {
	mu       sync.RWMutex
	keys     map[attemptKey]struct{}
	attempts map[string][]domain.PaymentAttempt
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{
		keys:     make(map[attemptKey]struct{}),
		attempts: make(map[string][]domain.PaymentAttempt),
	}
}

func (r *AttemptRepository) InsertIfAbsent(_ context.Context, a domain.PaymentAttempt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := attemptKey{a.PaymentID, a.Status}
	if _, exists := r.keys[key]; exists {
		return false, nil
	}
	r.keys[key] = struct{}{}
	r.attempts[a.OrderID] = append(r.attempts[a.OrderID], a)
	return true, nil
}

func (r *AttemptRepository) ListByOrder(_ context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.PaymentAttempt(nil), r.attempts[orderID]...), nil
}
