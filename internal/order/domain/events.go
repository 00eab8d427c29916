package domain

import "time"

const (
	AggregateType = "order"

	EventStatusChanged  = "OrderStatusChanged"
	EventSessionCreated = "OrderSessionCreated"
)

// Sources of a status change, recorded on OrderStatusChanged.
const (
	SourceReconciliation = "reconciliation"
	SourceWebhook        = "webhook"
	SourceSession        = "session"
)

type OrderStatusChanged struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	FeeType    FeeType   `json:"fee_type"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Source     string    `json:"source"`
	Version    int64     `json:"version"`
	ChangedAt  time.Time `json:"changed_at"`
}

type OrderSessionCreated struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	FeeType    FeeType   `json:"fee_type"`
	Account    string    `json:"account"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
