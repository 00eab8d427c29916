package sqlite

import (
	"context"
	"database/sql"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/domain"
)

type AttemptRepository struct {
	db *sql.DB
}

func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) InsertIfAbsent(ctx context.Context, a domain.PaymentAttempt) (bool, error) {
	var completedAt sql.NullString
	if a.CompletedAt != nil {
		completedAt = sql.NullString{String: formatTime(*a.CompletedAt), Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO payment_attempts
		 (order_id, payment_id, status, method, bank_reference, completed_at, raw_completion_time, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.OrderID, a.PaymentID, a.Status, a.Method, a.BankReference,
		completedAt, a.RawCompletionTime, formatTime(a.RecordedAt),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// 0 rows = this (payment, status) pair was already recorded
	return affected == 1, nil
}

func (r *AttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, payment_id, status, method, bank_reference, completed_at, raw_completion_time, recorded_at
		 FROM payment_attempts WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentAttempt
	for rows.Next() {
		var (
			a           domain.PaymentAttempt
			completedAt sql.NullString
			recordedAt  string
		)
		if err := rows.Scan(&a.OrderID, &a.PaymentID, &a.Status, &a.Method, &a.BankReference,
			&completedAt, &a.RawCompletionTime, &recordedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t, err := parseTime(completedAt.String)
			if err != nil {
				return nil, err
			}
			a.CompletedAt = &t
		}
		if a.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
