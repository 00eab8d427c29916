package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// WithSignals returns a context that is cancelled on SIGINT or SIGTERM. A
// second signal while the process drains exits immediately.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
			return
		}
		<-ch
		os.Exit(1)
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}

// Graceful runs each stop function with a shared deadline and returns the
// first error. Every function is called even if an earlier one fails.
func Graceful(timeout time.Duration, stops ...func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var first error
	for _, stop := range stops {
		if err := stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
