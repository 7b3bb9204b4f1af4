// Package sqlite implements the card and transaction repositories over
// an embedded SQLite database. It serves local and single-binary
// deployments and the repository test suite; postgres remains the
// production store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite allows a single writer; one pooled connection avoids
	// SQLITE_BUSY churn between goroutines.
	db.SetMaxOpenConns(1)

	return db, nil
}

// EnsureSchema creates the card ledger tables. SQLite deployments do
// not share the postgres migration files; the schema is small enough
// to declare here.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS cards (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	encrypted_card_number TEXT NOT NULL,
	card_holder TEXT NOT NULL,
	expiry_date DATETIME NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	balance TEXT NOT NULL DEFAULT '0',
	daily_limit TEXT,
	monthly_limit TEXT,
	single_transaction_limit TEXT,
	daily_transaction_count_limit INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reference TEXT NOT NULL UNIQUE,
	card_id INTEGER NOT NULL REFERENCES cards(id),
	counterpart_card_id INTEGER REFERENCES cards(id),
	amount TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	transfer_status TEXT NOT NULL,
	transaction_date DATETIME NOT NULL,
	description TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_card_date
	ON transactions (card_id, transaction_date);
`

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return nil
}
