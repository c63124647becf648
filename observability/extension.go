// Package observability provides a metrics extension for the stable debt
// ledger that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/0xAtharva/stabledebt/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin           = (*MetricsExtension)(nil)
	_ plugin.OnInit           = (*MetricsExtension)(nil)
	_ plugin.OnMint           = (*MetricsExtension)(nil)
	_ plugin.OnBurn           = (*MetricsExtension)(nil)
	_ plugin.OnPositionClosed = (*MetricsExtension)(nil)
	_ plugin.OnCrossChainSync = (*MetricsExtension)(nil)
	_ plugin.OnEventsFlushed  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a ledger plugin to automatically track debt activity.
type MetricsExtension struct {
	factory MetricFactory

	// Debt metrics
	Mints           Counter
	Burns           Counter
	PositionsClosed Counter

	// Cross-chain metrics
	CrossChainSyncs Counter

	// Journal metrics
	JournalBatchSize    Histogram
	JournalFlushLatency Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Debt metrics
		Mints:           factory.Counter("stabledebt.mint.count"),
		Burns:           factory.Counter("stabledebt.burn.count"),
		PositionsClosed: factory.Counter("stabledebt.position.closed"),

		// Cross-chain metrics
		CrossChainSyncs: factory.Counter("stabledebt.crosschain.syncs"),

		// Journal metrics
		JournalBatchSize:    factory.Histogram("stabledebt.journal.batch.size"),
		JournalFlushLatency: factory.Histogram("stabledebt.journal.flush.latency_ms"),

		// Error metrics
		StoreErrors:  factory.Counter("stabledebt.store.errors"),
		PluginErrors: factory.Counter("stabledebt.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Debt lifecycle hooks
// ──────────────────────────────────────────────────

// OnMint implements plugin.OnMint.
func (m *MetricsExtension) OnMint(_ context.Context, _ interface{}) error {
	m.Mints.Inc()
	return nil
}

// OnBurn implements plugin.OnBurn.
func (m *MetricsExtension) OnBurn(_ context.Context, _ interface{}) error {
	m.Burns.Inc()
	return nil
}

// OnPositionClosed implements plugin.OnPositionClosed.
func (m *MetricsExtension) OnPositionClosed(_ context.Context, _ interface{}) error {
	m.PositionsClosed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Cross-chain lifecycle hooks
// ──────────────────────────────────────────────────

// OnCrossChainSync implements plugin.OnCrossChainSync.
func (m *MetricsExtension) OnCrossChainSync(_ context.Context, _ interface{}) error {
	m.CrossChainSyncs.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Journal lifecycle hooks
// ──────────────────────────────────────────────────

// OnEventsFlushed implements plugin.OnEventsFlushed.
func (m *MetricsExtension) OnEventsFlushed(_ context.Context, count int, elapsed time.Duration) error {
	m.JournalBatchSize.Observe(float64(count))
	m.JournalFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
