package sqlite

import "database/sql"

func RunMigrations(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL,
			customer_name TEXT NOT NULL DEFAULT '',
			customer_email TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			fee_type TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			account TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (customer_id, fee_type)
		);`,

		`CREATE INDEX IF NOT EXISTS orders_status_idx ON orders (status COLLATE NOCASE);`,

		`CREATE TABLE IF NOT EXISTS payment_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL REFERENCES orders (id),
			payment_id TEXT NOT NULL,
			status TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			bank_reference TEXT NOT NULL DEFAULT '',
			completed_at TEXT,
			raw_completion_time TEXT NOT NULL DEFAULT '',
			recorded_at TEXT NOT NULL,
			UNIQUE (payment_id, status)
		);`,

		`CREATE TABLE IF NOT EXISTS outbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			type TEXT NOT NULL,
			payload BLOB NOT NULL,
			headers TEXT NOT NULL DEFAULT '{}',
			traceparent TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			relay_id TEXT,
			lease_until TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
