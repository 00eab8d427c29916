package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/clock"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/config"
	orderapp "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/application"
	orderpg "github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/infrastructure/postgres"
	reconapp "github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/application"
	reconpg "github.com/dmehra2102/Payment-Reconciliation-Service/internal/reconciliation/infrastructure/postgres"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/storage/inmemory"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/storage/sqlite"
	"github.com/dmehra2102/Payment-Reconciliation-Service/migrations"
	"github.com/dmehra2102/Payment-Reconciliation-Service/pkg/outbox"
)

// Stores groups the repositories of one backing store.
type Stores struct {
	Driver   string
	Orders   orderapp.OrderRepository
	Attempts reconapp.AttemptRepository
	Outbox   outbox.Store
	close    func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects to the configured driver and brings its schema up to
// date.
func OpenStores(ctx context.Context, log *slog.Logger, cfg config.StoreConfig, clk clock.Clock) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("pg connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pg ping: %w", err)
		}
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Stores{
			Driver:   cfg.Driver,
			Orders:   orderpg.NewRepository(log, pool),
			Attempts: reconpg.NewAttemptRepository(log, pool),
			Outbox:   orderpg.NewOutboxStore(log, pool),
			close:    pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return &Stores{
			Driver:   cfg.Driver,
			Orders:   sqlite.NewOrderRepository(db, clk),
			Attempts: sqlite.NewAttemptRepository(db),
			Outbox:   sqlite.NewOutboxStore(db, clk),
			close:    closeDB(log, db),
		}, nil

	case config.DriverMemory:
		box := inmemory.NewOutboxStore(clk)
		return &Stores{
			Driver:   cfg.Driver,
			Orders:   inmemory.NewOrderRepository(box, clk),
			Attempts: inmemory.NewAttemptRepository(),
			Outbox:   box,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func closeDB(log *slog.Logger, db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("sqlite close failed", "err", err)
		}
	}
}
