package store

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT      NOT NULL UNIQUE CHECK (name <> ''),
		price         INTEGER   NOT NULL CHECK (price >= 0),
		stock         INTEGER   NOT NULL CHECK (stock >= 0),
		initial_stock INTEGER   NOT NULL CHECK (initial_stock >= 0),
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id    INTEGER   NOT NULL REFERENCES items(id),
		delta      INTEGER   NOT NULL,
		reason     TEXT      NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_events_created_at ON stock_events (created_at)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT        NOT NULL UNIQUE CHECK (name <> ''),
		price         BIGINT      NOT NULL CHECK (price >= 0),
		stock         BIGINT      NOT NULL CHECK (stock >= 0),
		initial_stock BIGINT      NOT NULL CHECK (initial_stock >= 0),
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stock_events (
		id         BIGSERIAL PRIMARY KEY,
		item_id    BIGINT      NOT NULL REFERENCES items(id),
		delta      BIGINT      NOT NULL,
		reason     TEXT        NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_events_created_at ON stock_events (created_at)`,
}

// Migrate creates the items and stock_events relations if missing
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
