package postgres

import (
	"context"
	"errors"

	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func insertOutbox(ctx context.Context, tx pgx.Tx, msg outbox.Message) error {
	headers := msg.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	payload := msg.Payload
	if payload == nil {
		payload = []byte(`{}`)
	}
	_, err := tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		msg.AggregateType, msg.AggregateID, msg.Type, payload, headers, msg.Traceparent)
	return err
}
