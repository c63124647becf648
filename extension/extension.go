// Package extension provides the Forge extension adapter for the stable
// debt ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions or
// via YAML configuration files under "extensions.stabledebt" or
// "stabledebt" keys.
package extension

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/store"
	"github.com/0xAtharva/stabledebt/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "stabledebt"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Stable rate debt accounting engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the stable debt ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	asset      common.Address
	engine     *stabledebt.Ledger
	store      store.Store
	ledgerOpts []stabledebt.Option
}

// New creates a new stable debt Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *stabledebt.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// The asset address may come from config when not set programmatically.
	if e.asset == (common.Address{}) && e.config.Asset != "" {
		if !common.IsHexAddress(e.config.Asset) {
			return errors.New("stabledebt: invalid asset address in config")
		}
		e.asset = common.HexToAddress(e.config.Asset)
	}
	if e.asset == (common.Address{}) {
		return errors.New("stabledebt: asset address is required; set it via WithAsset or config")
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build ledger options from resolved config.
	opts := e.buildLedgerOpts()

	eng := stabledebt.New(e.store, e.asset, opts...)
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*stabledebt.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("stabledebt: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("stabledebt: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs stabledebt.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []stabledebt.Option {
	opts := make([]stabledebt.Option, 0, len(e.ledgerOpts)+1)

	// Apply config-derived options.
	if e.config.JournalBatchSize > 0 || e.config.JournalFlushInterval > 0 {
		batchSize := e.config.JournalBatchSize
		flushInterval := e.config.JournalFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.JournalBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.JournalFlushInterval
		}
		opts = append(opts, stabledebt.WithJournalConfig(batchSize, flushInterval))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("stabledebt: configuration is required but not found in config files; " +
				"ensure 'extensions.stabledebt' or 'stabledebt' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("stabledebt: configuration loaded",
		forge.F("asset", e.config.Asset),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("journal_batch_size", e.config.JournalBatchSize),
		forge.F("journal_flush_interval", e.config.JournalFlushInterval),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.stabledebt" first (namespaced pattern).
	if cm.IsSet("extensions.stabledebt") {
		if err := cm.Bind("extensions.stabledebt", &cfg); err == nil {
			e.Logger().Debug("stabledebt: loaded config from file",
				forge.F("key", "extensions.stabledebt"),
			)
			return cfg, true
		}
		e.Logger().Warn("stabledebt: failed to bind extensions.stabledebt config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "stabledebt" key.
	if cm.IsSet("stabledebt") {
		if err := cm.Bind("stabledebt", &cfg); err == nil {
			e.Logger().Debug("stabledebt: loaded config from file",
				forge.F("key", "stabledebt"),
			)
			return cfg, true
		}
		e.Logger().Warn("stabledebt: failed to bind stabledebt config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.JournalBatchSize == 0 {
		cfg.JournalBatchSize = defaults.JournalBatchSize
	}
	if cfg.JournalFlushInterval == 0 {
		cfg.JournalFlushInterval = defaults.JournalFlushInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Asset == "" && programmaticConfig.Asset != "" {
		yamlConfig.Asset = programmaticConfig.Asset
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.JournalBatchSize == 0 && programmaticConfig.JournalBatchSize != 0 {
		yamlConfig.JournalBatchSize = programmaticConfig.JournalBatchSize
	}
	if yamlConfig.JournalFlushInterval == 0 && programmaticConfig.JournalFlushInterval != 0 {
		yamlConfig.JournalFlushInterval = programmaticConfig.JournalFlushInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
