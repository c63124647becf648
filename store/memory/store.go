package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/position"
	"github.com/0xAtharva/stabledebt/supply"
)

type Store struct {
	mu sync.RWMutex

	// Position storage, keyed by asset then user
	positions map[common.Address]map[common.Address]*position.Position

	// Aggregate supply storage, keyed by asset
	supplies map[common.Address]*supply.Supply

	// Event journal
	events []*event.Event
}

func New() *Store {
	return &Store{
		positions: make(map[common.Address]map[common.Address]*position.Position),
		supplies:  make(map[common.Address]*supply.Supply),
		events:    make([]*event.Event, 0),
	}
}

// Position Store implementation.
// Records are cloned on the way in and out so callers can never alias the
// stored big.Int values.
func (s *Store) GetPosition(_ context.Context, asset, user common.Address) (*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if byUser, ok := s.positions[asset]; ok {
		if p, ok := byUser[user]; ok {
			return p.Clone(), nil
		}
	}
	return nil, stabledebt.ErrPositionNotFound
}

func (s *Store) PutPosition(_ context.Context, p *position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.positions[p.Asset]
	if !ok {
		byUser = make(map[common.Address]*position.Position)
		s.positions[p.Asset] = byUser
	}
	byUser[p.User] = p.Clone()
	return nil
}

func (s *Store) DeletePosition(_ context.Context, asset, user common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byUser, ok := s.positions[asset]; ok {
		if _, ok := byUser[user]; ok {
			delete(byUser, user)
			return nil
		}
	}
	return stabledebt.ErrPositionNotFound
}

func (s *Store) ListPositions(_ context.Context, asset common.Address, opts position.ListOpts) ([]*position.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*position.Position, 0)
	for _, p := range s.positions[asset] {
		result = append(result, p.Clone())
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

// Supply Store implementation
func (s *Store) GetSupply(_ context.Context, asset common.Address) (*supply.Supply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sup, ok := s.supplies[asset]; ok {
		return sup.Clone(), nil
	}
	return nil, stabledebt.ErrSupplyNotFound
}

func (s *Store) PutSupply(_ context.Context, sup *supply.Supply) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supplies[sup.Asset] = sup.Clone()
	return nil
}

// Event journal implementation
func (s *Store) AppendEvents(_ context.Context, events []*event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.events = append(s.events, e.Clone())
	}
	return nil
}

func (s *Store) QueryEvents(_ context.Context, asset common.Address, opts event.QueryOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*event.Event, 0)
	for _, e := range s.events {
		if e.Asset != asset {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		if opts.User != nil && e.OnBehalfOf != *opts.User {
			continue
		}
		if !opts.Start.IsZero() && e.Timestamp.Before(opts.Start) {
			continue
		}
		if !opts.End.IsZero() && !e.Timestamp.Before(opts.End) {
			continue
		}
		result = append(result, e.Clone())
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) PurgeEvents(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	kept := make([]*event.Event, 0)
	for _, e := range s.events {
		if e.Timestamp.Before(before) {
			count++
		} else {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return count, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
