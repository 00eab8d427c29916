package domain

import orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"

type Resolution struct {
	Status    string
	Decisive  PaymentAttempt
	BySuccess bool
}

// Resolve derives the order status from validated attempts.
//
// Any successful attempt resolves to SUCCESS regardless of its timestamp.
// Otherwise the attempt with the latest completion time decides; attempts
// without a usable time never beat one that has it, and ties keep the first
// attempt in provider order. ok is false when attempts is empty.
func Resolve(attempts []PaymentAttempt) (res Resolution, ok bool) {
	if len(attempts) == 0 {
		return Resolution{}, false
	}

	for _, a := range attempts {
		if orderdomain.IsSuccess(a.Status) {
			return Resolution{Status: orderdomain.StatusSuccess, Decisive: a, BySuccess: true}, true
		}
	}

	latest := attempts[0]
	for _, a := range attempts[1:] {
		if laterThan(a, latest) {
			latest = a
		}
	}
	return Resolution{Status: latest.Status, Decisive: latest}, true
}

func laterThan(a, b PaymentAttempt) bool {
	if a.CompletedAt == nil {
		return false
	}
	if b.CompletedAt == nil {
		return true
	}
	return a.CompletedAt.After(*b.CompletedAt)
}
