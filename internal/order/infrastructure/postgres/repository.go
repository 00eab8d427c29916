package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, customer_id, customer_name, customer_email, customer_phone, fee_type,
	amount::text, currency, session_id, status, account, version, created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		fee    string
		amount string
	)
	err := row.Scan(&o.ID, &o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &fee,
		&amount, &o.Currency, &o.SessionID, &o.Status, &o.Account, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.FeeType = domain.FeeType(fee)
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Order{}, fmt.Errorf("order %s amount: %w", o.ID, err)
	}
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *Repository) FindByCustomerFee(ctx context.Context, customerID string, fee domain.FeeType) (domain.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id=$1 AND fee_type=$2`, customerID, string(fee)))
}

func (r *Repository) CreateIfAbsent(ctx context.Context, o domain.Order) (domain.Order, bool, error) {
	stored, err := scanOrder(r.pool.QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, customer_name, customer_email, customer_phone, fee_type,
			amount, currency, session_id, status, account, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10,$11,0,$12,$12)
		ON CONFLICT (customer_id, fee_type) DO NOTHING
		RETURNING `+orderColumns,
		o.ID, o.Customer.ID, o.Customer.Name, o.Customer.Email, o.Customer.Phone, string(o.FeeType),
		o.Amount.String(), o.Currency, o.SessionID, o.Status, o.Account, o.CreatedAt))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) && !isUniqueViolation(err) {
		return domain.Order{}, false, err
	}

	existing, err := r.FindByCustomerFee(ctx, o.Customer.ID, o.FeeType)
	if err != nil {
		return domain.Order{}, false, err
	}
	return existing, false, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE UPPER(status) = UPPER($1) ORDER BY created_at, id`, status)
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

func (r *Repository) ExistsWithStatus(ctx context.Context, customerID string, fee domain.FeeType, status string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM orders WHERE customer_id=$1 AND fee_type=$2 AND UPPER(status) = UPPER($3))`,
		customerID, string(fee), status).Scan(&exists)
	return exists, err
}

func (r *Repository) AssignSession(ctx context.Context, id string, expectedVersion int64, sessionID, status string, msg outbox.Message) (domain.Order, error) {
	return r.swap(ctx, id, msg, `UPDATE orders SET session_id=$3, status=$4, version=version+1, updated_at=NOW()
		WHERE id=$1 AND version=$2 RETURNING `+orderColumns, id, expectedVersion, sessionID, status)
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status string, msg outbox.Message) (domain.Order, error) {
	return r.swap(ctx, id, msg, `UPDATE orders SET status=$3, version=version+1, updated_at=NOW()
		WHERE id=$1 AND version=$2 RETURNING `+orderColumns, id, expectedVersion, status)
}

// swap runs a version-guarded update and its outbox insert in one
// transaction. Zero rows means the order is gone or was changed underneath.
func (r *Repository) swap(ctx context.Context, id string, msg outbox.Message, query string, args ...any) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	o, err := scanOrder(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, domain.ErrOrderNotFound) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return domain.Order{}, err
		}
		if exists {
			return domain.Order{}, domain.ErrVersionConflict
		}
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	if err := insertOutbox(ctx, tx, msg); err != nil {
		return domain.Order{}, fmt.Errorf("write outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
