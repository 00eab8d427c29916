package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
)

var (
	ErrMalformedRecord = errors.New("malformed payment record")
	ErrNotAttempted    = errors.New("payment not attempted")
)

// ReportedPayment is one payment as the provider reported it, before
// validation. Err is set when the provider record could not be decoded.
type ReportedPayment struct {
	PaymentID      string
	Status         string
	Method         string
	BankReference  string
	CompletionTime string
	Err            error
}

// PaymentAttempt is a validated, storable payment event. (PaymentID, Status)
// is its identity.
type PaymentAttempt struct {
	OrderID           string
	PaymentID         string
	Status            string
	Method            string
	BankReference     string
	CompletedAt       *time.Time
	RawCompletionTime string
	RecordedAt        time.Time
}

func NewAttempt(orderID string, r ReportedPayment, now time.Time) (PaymentAttempt, error) {
	if r.Err != nil {
		return PaymentAttempt{}, fmt.Errorf("%w: %w", ErrMalformedRecord, r.Err)
	}
	id := strings.TrimSpace(r.PaymentID)
	status := strings.TrimSpace(r.Status)
	if id == "" {
		return PaymentAttempt{}, fmt.Errorf("%w: missing payment id", ErrMalformedRecord)
	}
	if status == "" {
		return PaymentAttempt{}, fmt.Errorf("%w: payment %s has no status", ErrMalformedRecord, id)
	}
	if orderdomain.IsNotAttempted(status) {
		return PaymentAttempt{}, ErrNotAttempted
	}

	a := PaymentAttempt{
		OrderID:           orderID,
		PaymentID:         id,
		Status:            status,
		Method:            r.Method,
		BankReference:     r.BankReference,
		RawCompletionTime: r.CompletionTime,
		RecordedAt:        now,
	}
	if t, ok := ParseCompletionTime(r.CompletionTime); ok {
		a.CompletedAt = &t
	}
	return a, nil
}

var completionLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseCompletionTime accepts the timestamp shapes the provider has been seen
// to emit. Unparseable values report ok=false.
func ParseCompletionTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range completionLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
