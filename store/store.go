package store

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/position"
	"github.com/0xAtharva/stabledebt/supply"
)

// Store is the unified storage interface for all debt ledger records.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Position methods
	GetPosition(ctx context.Context, asset, user common.Address) (*position.Position, error)
	PutPosition(ctx context.Context, p *position.Position) error
	DeletePosition(ctx context.Context, asset, user common.Address) error
	ListPositions(ctx context.Context, asset common.Address, opts position.ListOpts) ([]*position.Position, error)

	// Supply methods
	GetSupply(ctx context.Context, asset common.Address) (*supply.Supply, error)
	PutSupply(ctx context.Context, s *supply.Supply) error

	// Event journal methods
	AppendEvents(ctx context.Context, events []*event.Event) error
	QueryEvents(ctx context.Context, asset common.Address, opts event.QueryOpts) ([]*event.Event, error)
	PurgeEvents(ctx context.Context, before time.Time) (int64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
