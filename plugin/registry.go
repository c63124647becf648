package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit           []OnInit
	onShutdown       []OnShutdown
	onMint           []OnMint
	onBurn           []OnBurn
	onPositionClosed []OnPositionClosed
	onCrossChainSync []OnCrossChainSync
	onEventsFlushed  []OnEventsFlushed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnMint); ok {
		r.onMint = append(r.onMint, v)
	}
	if v, ok := p.(OnBurn); ok {
		r.onBurn = append(r.onBurn, v)
	}
	if v, ok := p.(OnPositionClosed); ok {
		r.onPositionClosed = append(r.onPositionClosed, v)
	}
	if v, ok := p.(OnCrossChainSync); ok {
		r.onCrossChainSync = append(r.onCrossChainSync, v)
	}
	if v, ok := p.(OnEventsFlushed); ok {
		r.onEventsFlushed = append(r.onEventsFlushed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnMint)(nil)).Elem(), "OnMint")
	checkInterface(reflect.TypeOf((*OnBurn)(nil)).Elem(), "OnBurn")
	checkInterface(reflect.TypeOf((*OnPositionClosed)(nil)).Elem(), "OnPositionClosed")
	checkInterface(reflect.TypeOf((*OnCrossChainSync)(nil)).Elem(), "OnCrossChainSync")
	checkInterface(reflect.TypeOf((*OnEventsFlushed)(nil)).Elem(), "OnEventsFlushed")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, ledger)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMint emits a debt minted event.
func (r *Registry) EmitMint(ctx context.Context, evt interface{}) {
	r.mu.RLock()
	plugins := r.onMint
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMint(ctx, evt)
		}); err != nil {
			r.logger.Warn("plugin OnMint failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitBurn emits a debt burned event.
func (r *Registry) EmitBurn(ctx context.Context, evt interface{}) {
	r.mu.RLock()
	plugins := r.onBurn
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnBurn(ctx, evt)
		}); err != nil {
			r.logger.Warn("plugin OnBurn failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPositionClosed emits a position closed event.
func (r *Registry) EmitPositionClosed(ctx context.Context, pos interface{}) {
	r.mu.RLock()
	plugins := r.onPositionClosed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPositionClosed(ctx, pos)
		}); err != nil {
			r.logger.Warn("plugin OnPositionClosed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCrossChainSync emits a cross-chain balance sync event.
func (r *Registry) EmitCrossChainSync(ctx context.Context, evt interface{}) {
	r.mu.RLock()
	plugins := r.onCrossChainSync
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCrossChainSync(ctx, evt)
		}); err != nil {
			r.logger.Warn("plugin OnCrossChainSync failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEventsFlushed emits a journal flushed event.
func (r *Registry) EmitEventsFlushed(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onEventsFlushed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEventsFlushed(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnEventsFlushed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the accounting pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
