package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, customer_id, customer_name, customer_email, customer_phone, fee_type,
	amount, currency, session_id, status, account, version, created_at, updated_at`

type OrderRepository struct {
	db    *sql.DB
	clock clock.Clock
}

func NewOrderRepository(db *sql.DB, clk clock.Clock) *OrderRepository {
	return &OrderRepository{db: db, clock: clk}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o                    domain.Order
		fee, amount          string
		createdAt, updatedAt string
	)
	err := row.Scan(&o.ID, &o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &fee,
		&amount, &o.Currency, &o.SessionID, &o.Status, &o.Account, &o.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	o.FeeType = domain.FeeType(fee)
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Order{}, fmt.Errorf("order %s amount: %w", o.ID, err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Order{}, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
}

func (r *OrderRepository) FindByCustomerFee(ctx context.Context, customerID string, fee domain.FeeType) (domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = ? AND fee_type = ?`, customerID, string(fee)))
}

func (r *OrderRepository) CreateIfAbsent(ctx context.Context, o domain.Order) (domain.Order, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		o.ID, o.Customer.ID, o.Customer.Name, o.Customer.Email, o.Customer.Phone, string(o.FeeType),
		o.Amount.String(), o.Currency, o.SessionID, o.Status, o.Account,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return domain.Order{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, false, err
	}

	stored, err := r.FindByCustomerFee(ctx, o.Customer.ID, o.FeeType)
	if err != nil {
		return domain.Order{}, false, err
	}
	return stored, affected == 1, nil
}

func (r *OrderRepository) ListByStatus(ctx context.Context, status string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? COLLATE NOCASE ORDER BY created_at, id`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepository) ExistsWithStatus(ctx context.Context, customerID string, fee domain.FeeType, status string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = ? AND fee_type = ? AND status = ? COLLATE NOCASE)`,
		customerID, string(fee), status).Scan(&exists)
	return exists, err
}

func (r *OrderRepository) AssignSession(ctx context.Context, id string, expectedVersion int64, sessionID, status string, msg outbox.Message) (domain.Order, error) {
	now := formatTime(r.clock.Now())
	return r.swap(ctx, id, msg,
		`UPDATE orders SET session_id = ?, status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		sessionID, status, now, id, expectedVersion)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status string, msg outbox.Message) (domain.Order, error) {
	now := formatTime(r.clock.Now())
	return r.swap(ctx, id, msg,
		`UPDATE orders SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		status, now, id, expectedVersion)
}

func (r *OrderRepository) swap(ctx context.Context, id string, msg outbox.Message, query string, args ...any) (domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Order{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, err
	}

	o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return domain.Order{}, err
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrVersionConflict
	}

	if err := insertOutbox(ctx, tx, msg, r.clock.Now()); err != nil {
		return domain.Order{}, fmt.Errorf("write outbox: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func insertOutbox(ctx context.Context, tx *sql.Tx, msg outbox.Message, now time.Time) error {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	payload := msg.Payload
	if payload == nil {
		payload = []byte(`{}`)
	}
	rawHeaders, err := json.Marshal(headers)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)`,
		msg.AggregateType, msg.AggregateID, msg.Type, payload, string(rawHeaders), msg.Traceparent, formatTime(now))
	return err
}
