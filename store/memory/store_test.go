package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/id"
	"github.com/0xAtharva/stabledebt/position"
	"github.com/0xAtharva/stabledebt/supply"
	"github.com/0xAtharva/stabledebt/types"
)

var (
	asset = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	user1 = common.HexToAddress("0x0000000000000000000000000000000000000001")
	user2 = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func newPosition(user common.Address, principal int64) *position.Position {
	return &position.Position{
		Entity:      types.NewEntity(),
		Asset:       asset,
		User:        user,
		Principal:   big.NewInt(principal),
		Rate:        big.NewInt(1),
		LastUpdated: time.Now().UTC(),
	}
}

func TestPositionCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetPosition(ctx, asset, user1); !errors.Is(err, stabledebt.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}

	p := newPosition(user1, 1000)
	if err := s.PutPosition(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetPosition(ctx, asset, user1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Principal.Cmp(p.Principal) != 0 {
		t.Errorf("principal = %s, want %s", got.Principal, p.Principal)
	}

	// Overwrite is an upsert.
	p.Principal = big.NewInt(2000)
	if err := s.PutPosition(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetPosition(ctx, asset, user1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Principal.Int64() != 2000 {
		t.Errorf("principal = %s, want 2000", got.Principal)
	}

	if err := s.DeletePosition(ctx, asset, user1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPosition(ctx, asset, user1); !errors.Is(err, stabledebt.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound after delete, got %v", err)
	}
	if err := s.DeletePosition(ctx, asset, user1); !errors.Is(err, stabledebt.ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound on double delete, got %v", err)
	}
}

func TestPositionCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	p := newPosition(user1, 1000)
	if err := s.PutPosition(ctx, p); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy must not affect the stored record.
	p.Principal.SetInt64(9999)

	got, err := s.GetPosition(ctx, asset, user1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Principal.Int64() != 1000 {
		t.Errorf("stored principal mutated through caller alias: %s", got.Principal)
	}

	// Same for the returned copy.
	got.Principal.SetInt64(5)
	again, err := s.GetPosition(ctx, asset, user1)
	if err != nil {
		t.Fatal(err)
	}
	if again.Principal.Int64() != 1000 {
		t.Errorf("stored principal mutated through returned alias: %s", again.Principal)
	}
}

func TestListPositions(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.PutPosition(ctx, newPosition(user1, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.PutPosition(ctx, newPosition(user2, 2)); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListPositions(ctx, asset, position.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	limited, err := s.ListPositions(ctx, asset, position.ListOpts{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("len = %d, want 1", len(limited))
	}

	offset, err := s.ListPositions(ctx, asset, position.ListOpts{Offset: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(offset) != 0 {
		t.Fatalf("len = %d, want 0", len(offset))
	}

	other, err := s.ListPositions(ctx, common.Address{}, position.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Fatalf("len = %d, want 0 for unknown asset", len(other))
	}
}

func TestSupplyRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetSupply(ctx, asset); !errors.Is(err, stabledebt.ErrSupplyNotFound) {
		t.Fatalf("expected ErrSupplyNotFound, got %v", err)
	}

	sup := &supply.Supply{
		Entity:         types.NewEntity(),
		Asset:          asset,
		TotalPrincipal: big.NewInt(5000),
		AvgRate:        big.NewInt(7),
		LastUpdated:    time.Now().UTC(),
	}
	if err := s.PutSupply(ctx, sup); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSupply(ctx, asset)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalPrincipal.Int64() != 5000 || got.AvgRate.Int64() != 7 {
		t.Errorf("supply = %s @ %s, want 5000 @ 7", got.TotalPrincipal, got.AvgRate)
	}

	// Clone isolation applies here as well.
	sup.TotalPrincipal.SetInt64(1)
	again, err := s.GetSupply(ctx, asset)
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalPrincipal.Int64() != 5000 {
		t.Errorf("stored supply mutated through caller alias: %s", again.TotalPrincipal)
	}
}

func newEvent(kind event.Kind, user common.Address, ts time.Time) *event.Event {
	var eid id.ID
	switch kind {
	case event.KindMint:
		eid = id.NewMintID()
	case event.KindBurn:
		eid = id.NewBurnID()
	default:
		eid = id.NewSyncID()
	}
	return &event.Event{
		ID:             eid,
		Asset:          asset,
		Kind:           kind,
		Caller:         user,
		OnBehalfOf:     user,
		Amount:         big.NewInt(100),
		AvgRate:        big.NewInt(1),
		NewTotalSupply: big.NewInt(100),
		Timestamp:      ts,
	}
}

func TestQueryEventsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()

	t0 := time.Unix(1_700_000_000, 0).UTC()
	events := []*event.Event{
		newEvent(event.KindMint, user1, t0),
		newEvent(event.KindBurn, user1, t0.Add(time.Minute)),
		newEvent(event.KindMint, user2, t0.Add(2*time.Minute)),
		newEvent(event.KindSync, common.Address{}, t0.Add(3*time.Minute)),
	}
	if err := s.AppendEvents(ctx, events); err != nil {
		t.Fatal(err)
	}

	all, err := s.QueryEvents(ctx, asset, event.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("len = %d, want 4", len(all))
	}

	mints, err := s.QueryEvents(ctx, asset, event.QueryOpts{Kind: event.KindMint})
	if err != nil {
		t.Fatal(err)
	}
	if len(mints) != 2 {
		t.Fatalf("mints = %d, want 2", len(mints))
	}

	byUser, err := s.QueryEvents(ctx, asset, event.QueryOpts{User: &user1})
	if err != nil {
		t.Fatal(err)
	}
	if len(byUser) != 2 {
		t.Fatalf("user1 events = %d, want 2", len(byUser))
	}

	// Start is inclusive, End is exclusive.
	window, err := s.QueryEvents(ctx, asset, event.QueryOpts{
		Start: t0.Add(time.Minute),
		End:   t0.Add(3 * time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 2 {
		t.Fatalf("window events = %d, want 2", len(window))
	}

	paged, err := s.QueryEvents(ctx, asset, event.QueryOpts{Limit: 2, Offset: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 1 {
		t.Fatalf("paged events = %d, want 1", len(paged))
	}
}

func TestPurgeEvents(t *testing.T) {
	ctx := context.Background()
	s := New()

	t0 := time.Unix(1_700_000_000, 0).UTC()
	events := []*event.Event{
		newEvent(event.KindMint, user1, t0),
		newEvent(event.KindMint, user1, t0.Add(time.Hour)),
		newEvent(event.KindMint, user1, t0.Add(2*time.Hour)),
	}
	if err := s.AppendEvents(ctx, events); err != nil {
		t.Fatal(err)
	}

	purged, err := s.PurgeEvents(ctx, t0.Add(90*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 2 {
		t.Fatalf("purged = %d, want 2", purged)
	}

	remaining, err := s.QueryEvents(ctx, asset, event.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}
}
