package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/merchant"
	orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/domain"
)

const (
	DefaultBaseURL    = "https://sandbox.cashfree.com"
	DefaultAPIVersion = "2025-01-01"
	DefaultTimeout    = 15 * time.Second

	maxErrorBody = 4 << 10
)

type Config struct {
	BaseURL    string
	APIVersion string
	NotifyURL  string
	Timeout    time.Duration
}

// Client talks to the Cashfree PG orders API. Credentials are passed per
// call because each fee type settles into its own sub-account.
type Client struct {
	log        *slog.Logger
	http       *http.Client
	baseURL    string
	apiVersion string
	notifyURL  string
}

func NewClient(log *slog.Logger, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		log:        log,
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		notifyURL:  cfg.NotifyURL,
	}
}

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
}

type orderMeta struct {
	NotifyURL string `json:"notify_url,omitempty"`
}

type createOrderRequest struct {
	OrderID         string          `json:"order_id"`
	OrderAmount     json.Number     `json:"order_amount"`
	OrderCurrency   string          `json:"order_currency"`
	CustomerDetails customerDetails `json:"customer_details"`
	OrderMeta       *orderMeta      `json:"order_meta,omitempty"`
	OrderExpiryTime string          `json:"order_expiry_time"`
}

type createOrderResponse struct {
	OrderID          string `json:"order_id"`
	CFOrderID        any    `json:"cf_order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	OrderStatus      string `json:"order_status"`
}

// CreateSession creates the provider order for o and returns its hosted
// checkout session id.
func (c *Client) CreateSession(ctx context.Context, o orderdomain.Order, creds merchant.Credentials, expiresAt time.Time) (string, error) {
	const op = "create order"

	body := createOrderRequest{
		OrderID:       o.ID,
		OrderAmount:   json.Number(o.Amount.String()),
		OrderCurrency: o.Currency,
		CustomerDetails: customerDetails{
			CustomerID:    o.Customer.ID,
			CustomerName:  o.Customer.Name,
			CustomerEmail: o.Customer.Email,
			CustomerPhone: o.Customer.Phone,
		},
		OrderExpiryTime: expiresAt.Format(time.RFC3339),
	}
	if c.notifyURL != "" {
		body.OrderMeta = &orderMeta{NotifyURL: c.notifyURL}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Op: op, Kind: ErrUnexpected, Err: err}
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/pg/orders", creds, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(op, resp)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &Error{Op: op, StatusCode: resp.StatusCode, Kind: ErrUnexpected, Err: err}
	}
	c.log.Debug("cashfree order created", "order_id", o.ID, "order_status", out.OrderStatus)
	return out.PaymentSessionID, nil
}

type payment struct {
	CFPaymentID           flexID          `json:"cf_payment_id"`
	PaymentStatus         string          `json:"payment_status"`
	PaymentGroup          string          `json:"payment_group"`
	PaymentMethod         json.RawMessage `json:"payment_method"`
	BankReference         string          `json:"bank_reference"`
	PaymentCompletionTime string          `json:"payment_completion_time"`
}

// ListPayments returns every payment the provider holds for orderID, in the
// provider's order. A record that does not decode is returned with Err set so
// the caller can skip it without losing the rest. An order unknown to the
// provider has no payments.
func (c *Client) ListPayments(ctx context.Context, orderID string, creds merchant.Credentials) ([]domain.ReportedPayment, error) {
	const op = "list payments"

	resp, err := c.do(ctx, op, http.MethodGet, "/pg/orders/"+url.PathEscape(orderID)+"/payments", creds, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Kind: ErrUnexpected, Err: err}
	}

	out := make([]domain.ReportedPayment, 0, len(raw))
	for i, item := range raw {
		var p payment
		if err := json.Unmarshal(item, &p); err != nil {
			out = append(out, domain.ReportedPayment{Err: fmt.Errorf("payment %d: %w", i, err)})
			continue
		}
		out = append(out, domain.ReportedPayment{
			PaymentID:      string(p.CFPaymentID),
			Status:         p.PaymentStatus,
			Method:         methodName(p.PaymentGroup, p.PaymentMethod),
			BankReference:  p.BankReference,
			CompletionTime: p.PaymentCompletionTime,
		})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, creds merchant.Credentials, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrUnexpected, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-api-version", c.apiVersion)
	req.Header.Set("x-client-id", creds.ClientID)
	req.Header.Set("x-client-secret", creds.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrTransport, Err: err}
	}
	return resp, nil
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}

func statusError(op string, resp *http.Response) error {
	e := &Error{Op: op, StatusCode: resp.StatusCode, Kind: kindForStatus(resp.StatusCode)}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body apiError
	if json.Unmarshal(data, &body) == nil {
		e.Code = body.Code
		e.Message = body.Message
	}
	return e
}

// flexID accepts an id encoded either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("cf_payment_id must be a string or a number")
	}
	*f = flexID(n.String())
	return nil
}

// methodName prefers payment_group and falls back to the single key of the
// payment_method object, e.g. {"upi": {...}}.
func methodName(group string, raw json.RawMessage) string {
	if group != "" {
		return group
	}
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) == nil {
		for k := range m {
			return k
		}
	}
	return ""
}
