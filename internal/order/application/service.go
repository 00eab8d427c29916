package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/shopspring/decimal"
)

const (
	DefaultSessionTTL  = 12 * time.Hour
	DefaultCallTimeout = 10 * time.Second
)

type Config struct {
	Policy      domain.FeePolicy
	SessionTTL  time.Duration
	CallTimeout time.Duration
	MaxRetries  int
}

type Service struct {
	log        *slog.Logger
	repo       OrderRepository
	accounts   AccountResolver
	gateway    SessionGateway
	reconciler Reconciler
	status     *StatusWriter
	clock      clock.Clock
	cfg        Config
}

func NewService(log *slog.Logger, repo OrderRepository, accounts AccountResolver, gateway SessionGateway, reconciler Reconciler, status *StatusWriter, clk clock.Clock, cfg Config) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Service{
		log:        log,
		repo:       repo,
		accounts:   accounts,
		gateway:    gateway,
		reconciler: reconciler,
		status:     status,
		clock:      clk,
		cfg:        cfg,
	}
}

type RegisterInput struct {
	CustomerID string
	Name       string
	Email      string
	Phone      string
	FeeType    string
	Amount     decimal.Decimal
	Currency   string
}

// RegisterCustomer creates the order for (customer, fee type), or returns the
// existing one. created reports whether a new order was stored.
func (s *Service) RegisterCustomer(ctx context.Context, in RegisterInput) (domain.Order, bool, error) {
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		return domain.Order{}, false, fmt.Errorf("%w: customer id is required", domain.ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return domain.Order{}, false, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	fee := domain.NormalizeFeeType(in.FeeType)
	if !s.cfg.Policy.Known(fee) {
		return domain.Order{}, false, fmt.Errorf("%w: %s", domain.ErrUnknownFeeType, in.FeeType)
	}

	existing, err := s.repo.FindByCustomerFee(ctx, customerID, fee)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return domain.Order{}, false, err
	}

	acct, err := s.accounts.AccountFor(fee)
	if err != nil {
		return domain.Order{}, false, err
	}

	o := domain.NewOrder(domain.Customer{
		ID:    customerID,
		Name:  in.Name,
		Email: in.Email,
		Phone: in.Phone,
	}, fee, in.Amount, in.Currency, acct.Key, s.clock.Now())

	stored, created, err := s.repo.CreateIfAbsent(ctx, o)
	if err != nil {
		return domain.Order{}, false, err
	}
	if created {
		s.log.Info("order registered", "order_id", stored.ID, "customer_id", customerID, "fee_type", fee)
	}
	return stored, created, nil
}

type SessionResult struct {
	OrderID string
	// SessionID is empty when payment for this fee is not allowed yet.
	SessionID string
	Allowed   bool
	Reused    bool
}

// CreateOrderSession returns the hosted checkout session for the customer's
// order, creating it at the provider on first use.
func (s *Service) CreateOrderSession(ctx context.Context, customerID, feeType string) (SessionResult, error) {
	customerID = strings.TrimSpace(customerID)
	fee := domain.NormalizeFeeType(feeType)

	o, err := s.repo.FindByCustomerFee(ctx, customerID, fee)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return SessionResult{}, fmt.Errorf("%w: customer %s, fee type %s", domain.ErrNoMatchingRecord, customerID, fee)
	}
	if err != nil {
		return SessionResult{}, err
	}

	res := SessionResult{OrderID: o.ID, Reused: o.HasSession()}
	sessionID := o.SessionID
	if !o.HasSession() {
		sessionID, err = s.openSession(ctx, o)
		if err != nil {
			return SessionResult{}, err
		}
	}

	allowed, err := s.paymentAllowed(ctx, customerID, fee)
	if err != nil {
		return SessionResult{}, err
	}
	res.Allowed = allowed
	if allowed {
		res.SessionID = sessionID
	} else {
		s.log.Info("session withheld, prerequisite fee unpaid", "order_id", o.ID, "fee_type", fee)
	}
	return res, nil
}

func (s *Service) openSession(ctx context.Context, o domain.Order) (string, error) {
	acct, err := s.accounts.AccountFor(o.FeeType)
	if err != nil {
		return "", err
	}

	expiresAt := s.clock.Now().Add(s.cfg.SessionTTL)
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	sessionID, err := s.gateway.CreateSession(callCtx, o, acct.Credentials, expiresAt)
	cancel()
	if err != nil {
		s.log.Error("provider order creation failed", "order_id", o.ID, "err", err)
		return "", fmt.Errorf("%w: %w", domain.ErrProvider, err)
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("%w: order %s", domain.ErrSessionNotIssued, o.ID)
	}

	for attempt := 1; ; attempt++ {
		status := domain.StatusPending
		if domain.IsSuccess(o.Status) {
			status = o.Status
		}
		msg, err := outbox.NewMessage(ctx, domain.AggregateType, o.ID, domain.EventSessionCreated, domain.OrderSessionCreated{
			OrderID:    o.ID,
			CustomerID: o.Customer.ID,
			FeeType:    o.FeeType,
			Account:    acct.Key,
			ExpiresAt:  expiresAt,
			CreatedAt:  s.clock.Now(),
		}, map[string]string{"source": domain.SourceSession})
		if err != nil {
			return "", err
		}

		_, err = s.repo.AssignSession(ctx, o.ID, o.Version, sessionID, status, msg)
		if err == nil {
			s.log.Info("payment session created", "order_id", o.ID, "account", acct.Key)
			return sessionID, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= s.cfg.MaxRetries {
			return "", err
		}

		if o, err = s.repo.Get(ctx, o.ID); err != nil {
			return "", err
		}
		// a concurrent request won the race; its session is the one on record
		if o.HasSession() {
			return o.SessionID, nil
		}
	}
}

func (s *Service) paymentAllowed(ctx context.Context, customerID string, fee domain.FeeType) (bool, error) {
	prereq, ok := s.cfg.Policy.Prerequisite(fee)
	if !ok {
		return s.cfg.Policy.PaymentAllowed(fee, false), nil
	}
	paid, err := s.repo.ExistsWithStatus(ctx, customerID, prereq, domain.StatusSuccess)
	if err != nil {
		return false, err
	}
	return s.cfg.Policy.PaymentAllowed(fee, paid), nil
}

// VerifyStatus reconciles the order against the provider and returns the
// status on record afterwards.
func (s *Service) VerifyStatus(ctx context.Context, orderID string) (string, error) {
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return "", err
	}
	if err := s.reconciler.ReconcileOrder(ctx, orderID); err != nil {
		return "", err
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(o.Status) == "" {
		return "", fmt.Errorf("%w: order %s", domain.ErrStatusUnavailable, orderID)
	}
	return o.Status, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}
