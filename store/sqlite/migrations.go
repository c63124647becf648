package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the stable debt store (SQLite).
var Migrations = migrate.NewGroup("stabledebt")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_stabledebt_positions",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stabledebt_positions (
    id           TEXT PRIMARY KEY,
    asset        TEXT NOT NULL DEFAULT '',
    user_address TEXT NOT NULL DEFAULT '',
    principal    TEXT NOT NULL DEFAULT '0',
    rate         TEXT NOT NULL DEFAULT '0',
    last_updated TEXT NOT NULL DEFAULT (datetime('now')),
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_stabledebt_positions_asset ON stabledebt_positions (asset);
CREATE UNIQUE INDEX IF NOT EXISTS idx_stabledebt_positions_asset_user ON stabledebt_positions (asset, user_address);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stabledebt_positions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_stabledebt_supply",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stabledebt_supply (
    asset           TEXT PRIMARY KEY,
    total_principal TEXT NOT NULL DEFAULT '0',
    avg_rate        TEXT NOT NULL DEFAULT '0',
    last_updated    TEXT NOT NULL DEFAULT (datetime('now')),
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stabledebt_supply`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_stabledebt_events",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stabledebt_events (
    id               TEXT PRIMARY KEY,
    asset            TEXT NOT NULL DEFAULT '',
    kind             TEXT NOT NULL DEFAULT '',
    caller           TEXT NOT NULL DEFAULT '',
    on_behalf_of     TEXT NOT NULL DEFAULT '',
    amount           TEXT NOT NULL DEFAULT '',
    current_balance  TEXT NOT NULL DEFAULT '',
    balance_increase TEXT NOT NULL DEFAULT '',
    rate             TEXT NOT NULL DEFAULT '',
    avg_rate         TEXT NOT NULL DEFAULT '',
    new_total_supply TEXT NOT NULL DEFAULT '',
    timestamp        TEXT NOT NULL DEFAULT (datetime('now')),
    created_at       TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_stabledebt_events_asset_ts ON stabledebt_events (asset, timestamp);
CREATE INDEX IF NOT EXISTS idx_stabledebt_events_user ON stabledebt_events (asset, on_behalf_of, timestamp);
CREATE INDEX IF NOT EXISTS idx_stabledebt_events_kind ON stabledebt_events (asset, kind, timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stabledebt_events`)
				return err
			},
		},
	)
}
