package postgres

import (
	"context"
	"log/slog"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AttemptRepository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewAttemptRepository(log *slog.Logger, pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{log: log, pool: pool}
}

// InsertIfAbsent relies on the (payment_id, status) unique key; concurrent
// duplicates both see zero affected rows on the losing side.
func (r *AttemptRepository) InsertIfAbsent(ctx context.Context, a domain.PaymentAttempt) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO payment_attempts (order_id, payment_id, status, method, bank_reference, completed_at, raw_completion_time, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (payment_id, status) DO NOTHING`,
		a.OrderID, a.PaymentID, a.Status, a.Method, a.BankReference, a.CompletedAt, a.RawCompletionTime, a.RecordedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *AttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, payment_id, status, method, bank_reference, completed_at, raw_completion_time, recorded_at
		FROM payment_attempts WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentAttempt
	for rows.Next() {
		var a domain.PaymentAttempt
		if err := rows.Scan(&a.OrderID, &a.PaymentID, &a.Status, &a.Method, &a.BankReference, &a.CompletedAt, &a.RawCompletionTime, &a.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
