package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
)

type outboxRow struct {
	event      outbox.Event
	leaseUntil time.Time
}

// OutboxStore implements outbox.Store over a slice. Leases expire against the
// injected clock so an abandoned batch is picked up again.
type OutboxStore struct {
	mu     sync.Mutex
	rows   []*outboxRow
	nextID int64
	clock  clock.Clock
}

func NewOutboxStore(clk clock.Clock) *OutboxStore {
	return &OutboxStore{clock: clk}
}

func (s *OutboxStore) append(msg outbox.Message, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.rows = append(s.rows, &outboxRow{event: outbox.Event{
		ID:            s.nextID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		Type:          msg.Type,
		Payload:       msg.Payload,
		Headers:       msg.Headers,
		Traceparent:   msg.Traceparent,
		CreatedAt:     at,
		Status:        outbox.StatusPending,
	}})
}

// Events returns a copy of every row, oldest first.
func (s *OutboxStore) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]outbox.Event, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row.event)
	}
	return out
}

func (s *OutboxStore) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var events []outbox.Event
	for _, row := range s.rows {
		if len(events) == batchSize {
			break
		}
		claimable := row.event.Status == outbox.StatusPending ||
			(row.event.Status == outbox.StatusInProgress && now.After(row.leaseUntil))
		if !claimable {
			continue
		}
		row.event.Status = outbox.StatusInProgress
		row.event.RelayID = relayID
		row.leaseUntil = now.Add(lease)
		events = append(events, row.event)
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if slices.Contains(ids, row.event.ID) {
			row.event.Status = outbox.StatusSent
		}
	}
	return nil
}

func (s *OutboxStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.event.ID != id {
			continue
		}
		row.event.RetryCount++
		row.event.LastError = &errMsg
		row.event.Status = outbox.StatusPending
		if row.event.RetryCount >= outbox.MaxAttempts {
			row.event.Status = outbox.StatusFailed
		}
	}
	return nil
}

func (s *OutboxStore) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := s.clock.Now().Add(lease)
	for _, row := range s.rows {
		if row.event.RelayID == relayID && slices.Contains(ids, row.event.ID) {
			row.leaseUntil = until
		}
	}
	return nil
}
