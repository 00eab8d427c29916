package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	orderdomain "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPending struct {
	orders []orderdomain.Order
	status string
}

func (s *staticPending) ListByStatus(_ context.Context, status string) ([]orderdomain.Order, error) {
	s.status = status
	return s.orders, nil
}

type recordingReconciler struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (r *recordingReconciler) ReconcileOrder(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, id)
	if r.fail[id] {
		return errors.New("provider unavailable")
	}
	return nil
}

type fakeLocker struct {
	held     bool
	released bool
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.released = true
		return nil
	}, true, nil
}

func pending(ids ...string) *staticPending {
	out := &staticPending{}
	for _, id := range ids {
		out.orders = append(out.orders, orderdomain.Order{ID: id, Status: orderdomain.StatusPending})
	}
	return out
}

func TestTrigger_FailureDoesNotStopBatch(t *testing.T) {
	lister := pending("o1", "o2", "o3", "o4", "o5")
	rec := &recordingReconciler{fail: map[string]bool{"o2": true, "o4": true}}
	trig := NewTrigger(discardLogger(), lister, rec, WithConcurrency(2))

	report, err := trig.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPending, lister.status)
	assert.Equal(t, 5, report.Listed)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.ElementsMatch(t, []string{"o1", "o2", "o3", "o4", "o5"}, rec.seen)
}

func TestTrigger_SkipsWhenLockHeld(t *testing.T) {
	rec := &recordingReconciler{}
	trig := NewTrigger(discardLogger(), pending("o1"), rec, WithLocker(&fakeLocker{held: true}, time.Minute))

	report, err := trig.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, rec.seen)
}

func TestTrigger_ReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	rec := &recordingReconciler{}
	trig := NewTrigger(discardLogger(), pending("o1"), rec, WithLocker(locker, time.Minute))

	report, err := trig.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.True(t, locker.released)
}

func TestTrigger_EmptyBatch(t *testing.T) {
	rec := &recordingReconciler{}
	report, err := NewTrigger(discardLogger(), pending(), rec).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Listed)
	assert.Empty(t, rec.seen)
}

func TestTrigger_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewTrigger(discardLogger(), pending(), &recordingReconciler{}, WithInterval(time.Millisecond)).Run(ctx)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("trigger did not stop")
	}
}
