package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
)

type OutboxStore struct {
	db    *sql.DB
	clock clock.Clock
}

func NewOutboxStore(db *sql.DB, clk clock.Clock) *OutboxStore {
	return &OutboxStore{db: db, clock: clk}
}

func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.clock.Now()
	rows, err := tx.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, retry_count, created_at
		 FROM outbox
		 WHERE status = 'pending' OR (status = 'in_progress' AND lease_until < ?)
		 ORDER BY id
		 LIMIT ?`, formatTime(now), batchSize)
	if err != nil {
		return nil, err
	}

	var events []outbox.Event
	for rows.Next() {
		var (
			e          outbox.Event
			rawHeaders string
			createdAt  string
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload, &rawHeaders,
			&e.Traceparent, &e.RetryCount, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(rawHeaders), &e.Headers); err != nil {
			rows.Close()
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		e.Status = outbox.StatusInProgress
		e.RelayID = relayID
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	query, args := inClause(`UPDATE outbox SET status = 'in_progress', relay_id = ?, lease_until = ? WHERE id IN (%s)`,
		ids, relayID, formatTime(now.Add(lease)))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	query, args := inClause(`UPDATE outbox SET status = 'sent', lease_until = NULL WHERE id IN (%s)`, ids)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox
		 SET retry_count = retry_count + 1,
		     last_error = ?,
		     lease_until = NULL,
		     status = CASE WHEN retry_count + 1 >= ? THEN 'failed' ELSE 'pending' END
		 WHERE id = ?`, errMsg, outbox.MaxAttempts, id)
	return err
}

func (s *OutboxStore) ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error {
	query, args := inClause(`UPDATE outbox SET lease_until = ? WHERE relay_id = ? AND id IN (%s)`,
		ids, formatTime(s.clock.Now().Add(lease)), relayID)
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// inClause expands the %s in format into one placeholder per id; the ids are
// appended after the leading args.
func inClause(format string, ids []int64, leading ...any) (string, []any) {
	args := append([]any{}, leading...)
	marks := make([]string, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args = append(args, id)
	}
	return strings.Replace(format, "%s", strings.Join(marks, ", "), 1), args
}
