// Package plugin provides an extensible plugin system for the debt ledger.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Debt operation hooks
// ──────────────────────────────────────────────────

// OnMint is called after debt is minted. The payload is the journaled
// mint event.
type OnMint interface {
	Plugin
	OnMint(ctx context.Context, evt interface{}) error
}

// OnBurn is called after debt is burned. The payload is the journaled
// burn event.
type OnBurn interface {
	Plugin
	OnBurn(ctx context.Context, evt interface{}) error
}

// OnPositionClosed is called when a burn repays a position in full.
type OnPositionClosed interface {
	Plugin
	OnPositionClosed(ctx context.Context, pos interface{}) error
}

// ──────────────────────────────────────────────────
// Cross-chain hooks
// ──────────────────────────────────────────────────

// OnCrossChainSync is called after a cross-chain balance adjustment.
type OnCrossChainSync interface {
	Plugin
	OnCrossChainSync(ctx context.Context, evt interface{}) error
}

// ──────────────────────────────────────────────────
// Journal hooks
// ──────────────────────────────────────────────────

// OnEventsFlushed is called when journaled events are flushed to the store.
type OnEventsFlushed interface {
	Plugin
	OnEventsFlushed(ctx context.Context, count int, elapsed time.Duration) error
}
