// Package audithook bridges stable debt lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import any
// audit backend directly. Callers inject a RecorderFunc adapter that bridges
// to the concrete backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/plugin"
	"github.com/0xAtharva/stabledebt/position"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnMint           = (*Extension)(nil)
	_ plugin.OnBurn           = (*Extension)(nil)
	_ plugin.OnPositionClosed = (*Extension)(nil)
	_ plugin.OnCrossChainSync = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not depend on
// any concrete audit module; callers inject the backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges stable debt lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Debt lifecycle hooks
// ──────────────────────────────────────────────────

// OnMint implements plugin.OnMint.
func (e *Extension) OnMint(ctx context.Context, evt interface{}) error {
	return e.record(ctx, ActionDebtMinted, SeverityInfo, OutcomeSuccess,
		ResourceDebt, CategoryAccounting, nil,
		eventPairs(evt, "debt_minted")...,
	)
}

// OnBurn implements plugin.OnBurn.
func (e *Extension) OnBurn(ctx context.Context, evt interface{}) error {
	return e.record(ctx, ActionDebtBurned, SeverityInfo, OutcomeSuccess,
		ResourceDebt, CategoryAccounting, nil,
		eventPairs(evt, "debt_burned")...,
	)
}

// OnPositionClosed implements plugin.OnPositionClosed.
func (e *Extension) OnPositionClosed(ctx context.Context, pos interface{}) error {
	pairs := []any{"event", "position_closed"}
	if p, ok := pos.(*position.Position); ok {
		pairs = append(pairs,
			"asset", p.Asset.Hex(),
			"user", p.User.Hex(),
		)
	}
	return e.record(ctx, ActionPositionClosed, SeverityInfo, OutcomeSuccess,
		ResourcePosition, CategoryAccounting, nil,
		pairs...,
	)
}

// ──────────────────────────────────────────────────
// Cross-chain lifecycle hooks
// ──────────────────────────────────────────────────

// OnCrossChainSync implements plugin.OnCrossChainSync.
func (e *Extension) OnCrossChainSync(ctx context.Context, evt interface{}) error {
	return e.record(ctx, ActionCrossChainSync, SeverityWarning, OutcomeSuccess,
		ResourceSupply, CategoryBridge, nil,
		eventPairs(evt, "crosschain_sync")...,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// eventPairs extracts audit metadata from a journal event.
func eventPairs(evt interface{}, name string) []any {
	pairs := []any{"event", name}
	ev, ok := evt.(*event.Event)
	if !ok {
		return pairs
	}
	pairs = append(pairs,
		"event_id", ev.ID.String(),
		"asset", ev.Asset.Hex(),
		"user", ev.OnBehalfOf.Hex(),
	)
	if ev.Amount != nil {
		pairs = append(pairs, "amount", ev.Amount.String())
	}
	if ev.NewTotalSupply != nil {
		pairs = append(pairs, "new_total_supply", ev.NewTotalSupply.String())
	}
	return pairs
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	var resourceID string
	if v, ok := meta["event_id"].(string); ok {
		resourceID = v
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
