package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "INR"

type FeeType string

type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type Order struct {
	ID        string
	Customer  Customer
	FeeType   FeeType
	Amount    decimal.Decimal
	Currency  string
	SessionID string
	Status    string
	Account   string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrderID() string {
	return "ORDER_" + uuid.NewString()
}

func NewOrder(customer Customer, fee FeeType, amount decimal.Decimal, currency, account string, now time.Time) Order {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Order{
		ID:        NewOrderID(),
		Customer:  customer,
		FeeType:   fee,
		Amount:    amount,
		Currency:  currency,
		Status:    StatusPending,
		Account:   account,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (o Order) HasSession() bool {
	return o.SessionID != ""
}

// NextStatus reports whether moving the order to status is a real change.
// SUCCESS is terminal: once reached, no writer may replace it.
func (o Order) NextStatus(status string) (string, bool) {
	if strings.TrimSpace(status) == "" || SameStatus(status, o.Status) {
		return o.Status, false
	}
	if IsSuccess(o.Status) {
		return o.Status, false
	}
	return status, true
}
