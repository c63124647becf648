package extension

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/plugin"
	"github.com/0xAtharva/stabledebt/store"
)

// Option configures the stable debt Forge extension.
type Option func(*Extension)

// WithAsset sets the underlying asset address for the ledger engine.
func WithAsset(asset common.Address) Option {
	return func(e *Extension) {
		e.asset = asset
	}
}

// WithStore sets the store for the ledger engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a stabledebt.Option through to the underlying engine.
func WithLedgerOption(opt stabledebt.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, stabledebt.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithJournalBatchSize sets the number of journal events to buffer before flushing.
func WithJournalBatchSize(size int) Option {
	return func(e *Extension) { e.config.JournalBatchSize = size }
}

// WithJournalFlushInterval sets how frequently the journal buffer is flushed.
func WithJournalFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.JournalFlushInterval = d }
}
