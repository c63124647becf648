package stabledebt_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/incentives"
	"github.com/0xAtharva/stabledebt/position"
	"github.com/0xAtharva/stabledebt/store/memory"
	"github.com/0xAtharva/stabledebt/types"
)

var (
	testAsset = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	alice     = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

// wad returns n whole tokens in wad.
func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), types.Wad)
}

// rayPct returns n percent as a yearly ray rate.
func rayPct(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(25), nil))
}

// fixedClock is a manually advanced time source.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{t: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLedger(t *testing.T, opts ...stabledebt.Option) *stabledebt.Ledger {
	t.Helper()
	return stabledebt.New(memory.New(), testAsset, opts...)
}

func TestMintFirstBorrow(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	res, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	assert.True(t, res.FirstBorrow)
	assert.Equal(t, wad(1000), res.NewTotalSupply)
	assert.Equal(t, rayPct(4), res.AvgRate)

	// Second mint for the same user is no longer a first borrow.
	res, err = l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	assert.False(t, res.FirstBorrow)
	assert.Equal(t, wad(2000), res.NewTotalSupply)
}

func TestMintValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Mint(ctx, alice, alice, big.NewInt(0), rayPct(4))
	assert.ErrorIs(t, err, stabledebt.ErrInvalidAmount)

	_, err = l.Mint(ctx, alice, alice, nil, rayPct(4))
	assert.ErrorIs(t, err, stabledebt.ErrInvalidAmount)

	_, err = l.Mint(ctx, alice, alice, wad(1), big.NewInt(0))
	assert.ErrorIs(t, err, stabledebt.ErrInvalidRate)

	_, err = l.Mint(ctx, alice, alice, wad(1), big.NewInt(-1))
	assert.ErrorIs(t, err, stabledebt.ErrInvalidRate)
}

func TestMintWeightedRates(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock(time.Unix(1_700_000_000, 0).UTC())
	l := newTestLedger(t, stabledebt.WithClock(clock.Now))

	// Alice borrows 1000 at 4%.
	res, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	assert.Equal(t, rayPct(4), res.AvgRate)

	// Bob borrows 3000 at 8%: avg = (4%*1000 + 8%*3000) / 4000 = 7%.
	res, err = l.Mint(ctx, bob, bob, wad(3000), rayPct(8))
	require.NoError(t, err)
	assert.Equal(t, rayPct(7), res.AvgRate)
	assert.Equal(t, wad(4000), res.NewTotalSupply)

	// Alice tops up 1000 at 12%: her rate = (4%*1000 + 12%*1000) / 2000 = 8%.
	res, err = l.Mint(ctx, alice, alice, wad(1000), rayPct(12))
	require.NoError(t, err)
	assert.Equal(t, wad(5000), res.NewTotalSupply)

	aliceRate, err := l.UserStableRate(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, rayPct(8), aliceRate)

	// avg = (7%*4000 + 12%*1000) / 5000 = 8%.
	avgRate, err := l.AverageStableRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, rayPct(8), avgRate)

	alicePrincipal, err := l.PrincipalBalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, wad(2000), alicePrincipal)
}

func TestBalanceCompounds(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0).UTC()
	clock := newFixedClock(start)
	l := newTestLedger(t, stabledebt.WithClock(clock.Now))

	rate := rayPct(10)
	_, err := l.Mint(ctx, alice, alice, wad(1000), rate)
	require.NoError(t, err)

	clock.Advance(30 * 24 * time.Hour)

	balance, err := l.BalanceOf(ctx, alice)
	require.NoError(t, err)

	want := types.CompoundBalance(wad(1000), rate, start, clock.Now())
	assert.Equal(t, want, balance)
	assert.Equal(t, 1, balance.Cmp(wad(1000)), "balance should exceed principal")

	// The aggregate compounds the same way at the average rate.
	total, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, total)

	// Principal is untouched until the next mint or burn.
	principal, err := l.PrincipalBalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, wad(1000), principal)
}

func TestMintCapitalizesAccruedInterest(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0).UTC()
	clock := newFixedClock(start)
	l := newTestLedger(t, stabledebt.WithClock(clock.Now))

	rate := rayPct(10)
	_, err := l.Mint(ctx, alice, alice, wad(1000), rate)
	require.NoError(t, err)

	clock.Advance(365 * 24 * time.Hour)
	accrued := types.CompoundBalance(wad(1000), rate, start, clock.Now())

	_, err = l.Mint(ctx, alice, alice, wad(500), rate)
	require.NoError(t, err)

	// The new principal is the compounded balance plus the new draw.
	principal, err := l.PrincipalBalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Add(accrued, wad(500)), principal)

	lastUpdated, err := l.UserLastUpdated(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), lastUpdated)
}

func TestBurnPartial(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock(time.Unix(1_700_000_000, 0).UTC())
	l := newTestLedger(t, stabledebt.WithClock(clock.Now))

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	_, err = l.Mint(ctx, bob, bob, wad(3000), rayPct(8))
	require.NoError(t, err)

	// Bob repays 1000: supply 4000 -> 3000,
	// avg = (7%*4000 - 8%*1000) / 3000 = 20%/3.
	res, err := l.Burn(ctx, bob, wad(1000))
	require.NoError(t, err)
	assert.Equal(t, wad(3000), res.NewTotalSupply)

	wantAvg := types.RayDiv(
		new(big.Int).Sub(
			types.RayMul(rayPct(7), types.WadToRay(wad(4000))),
			types.RayMul(rayPct(8), types.WadToRay(wad(1000))),
		),
		types.WadToRay(wad(3000)),
	)
	assert.Equal(t, wantAvg, res.AvgRate)

	// Bob still owes the remainder at his original rate.
	bobPrincipal, err := l.PrincipalBalanceOf(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, wad(2000), bobPrincipal)

	bobRate, err := l.UserStableRate(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, rayPct(8), bobRate)
}

func TestBurnFullClosesPosition(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock(time.Unix(1_700_000_000, 0).UTC())
	l := newTestLedger(t, stabledebt.WithClock(clock.Now))

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)

	res, err := l.Burn(ctx, alice, wad(1000))
	require.NoError(t, err)
	assert.Zero(t, res.NewTotalSupply.Sign())
	assert.Zero(t, res.AvgRate.Sign())

	balance, err := l.BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())

	rate, err := l.UserStableRate(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, rate.Sign())

	_, err = l.Burn(ctx, alice, wad(1))
	assert.ErrorIs(t, err, stabledebt.ErrNoDebt)
}

func TestBurnValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Burn(ctx, alice, wad(1))
	assert.ErrorIs(t, err, stabledebt.ErrNoDebt)

	_, err = l.Mint(ctx, alice, alice, wad(100), rayPct(4))
	require.NoError(t, err)

	_, err = l.Burn(ctx, alice, big.NewInt(0))
	assert.ErrorIs(t, err, stabledebt.ErrInvalidAmount)

	_, err = l.Burn(ctx, alice, wad(101))
	assert.ErrorIs(t, err, stabledebt.ErrBurnExceedsDebt)
}

func TestBurnNetsToMintWhenInterestExceedsRepayment(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0).UTC()
	clock := newFixedClock(start)

	var (
		mu     sync.Mutex
		minted []*event.Event
		burned []*event.Event
	)
	rec := &recordingPlugin{
		onMint: func(evt *event.Event) {
			mu.Lock()
			minted = append(minted, evt)
			mu.Unlock()
		},
		onBurn: func(evt *event.Event) {
			mu.Lock()
			burned = append(burned, evt)
			mu.Unlock()
		},
	}

	l := newTestLedger(t,
		stabledebt.WithClock(clock.Now),
		stabledebt.WithPlugin(rec),
	)

	rate := rayPct(100)
	_, err := l.Mint(ctx, alice, alice, wad(1000), rate)
	require.NoError(t, err)

	// A year at 100% accrues far more than the 1 wad being repaid.
	clock.Advance(365 * 24 * time.Hour)
	balance := types.CompoundBalance(wad(1000), rate, start, clock.Now())
	accrued := new(big.Int).Sub(balance, wad(1000))
	require.Equal(t, 1, accrued.Cmp(wad(1)))

	_, err = l.Burn(ctx, alice, wad(1))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, minted, 2, "the repayment should journal as a net mint")
	assert.Empty(t, burned)
	netMint := minted[1]
	assert.Equal(t, event.KindMint, netMint.Kind)
	assert.Equal(t, new(big.Int).Sub(accrued, wad(1)), netMint.Amount)
	assert.Equal(t, rate, netMint.Rate)

	// The position still carries the capitalized remainder.
	principal, err := l.PrincipalBalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Sub(balance, wad(1)), principal)
}

func TestUpdateCrossChainBalance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)

	// Debt minted elsewhere raises the aggregate principal.
	err = l.UpdateCrossChainBalance(ctx, wad(500), stabledebt.SyncModeMint)
	require.NoError(t, err)

	principal, err := l.PrincipalTotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, wad(1500), principal)

	// The average rate is untouched by scaled adjustments.
	avgRate, err := l.AverageStableRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, rayPct(4), avgRate)

	// Debt burned elsewhere lowers it.
	err = l.UpdateCrossChainBalance(ctx, wad(300), stabledebt.SyncModeBurn)
	require.NoError(t, err)

	principal, err = l.PrincipalTotalSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, wad(1200), principal)
}

func TestUpdateCrossChainBalanceValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	err := l.UpdateCrossChainBalance(ctx, big.NewInt(0), stabledebt.SyncModeMint)
	assert.ErrorIs(t, err, stabledebt.ErrInvalidAmount)

	err = l.UpdateCrossChainBalance(ctx, wad(1), stabledebt.SyncMode(3))
	assert.ErrorIs(t, err, stabledebt.ErrInvalidSyncMode)

	err = l.UpdateCrossChainBalance(ctx, wad(1), stabledebt.SyncModeBurn)
	assert.ErrorIs(t, err, stabledebt.ErrSupplyUnderflow)
}

func TestUpdateCrossChainBalanceBurnToZeroResetsRate(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	err := l.UpdateCrossChainBalance(ctx, wad(700), stabledebt.SyncModeMint)
	require.NoError(t, err)
	err = l.UpdateCrossChainBalance(ctx, wad(700), stabledebt.SyncModeBurn)
	require.NoError(t, err)

	avgRate, err := l.AverageStableRate(ctx)
	require.NoError(t, err)
	assert.Zero(t, avgRate.Sign())
}

func TestSupplyDataAccessors(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0).UTC()
	clock := newFixedClock(start)
	l := newTestLedger(t, stabledebt.WithClock(clock.Now))

	// Empty ledger reads as zeros.
	total, err := l.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Zero(t, total.Sign())

	lastUpdated, err := l.TotalSupplyLastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, lastUpdated.IsZero())

	_, err = l.Mint(ctx, alice, alice, wad(1000), rayPct(10))
	require.NoError(t, err)
	clock.Advance(time.Hour)

	data, err := l.GetSupplyData(ctx)
	require.NoError(t, err)
	assert.Equal(t, wad(1000), data.Principal)
	assert.Equal(t, rayPct(10), data.AvgRate)
	assert.Equal(t, start, data.LastUpdated)
	assert.Equal(t, types.CompoundBalance(wad(1000), rayPct(10), start, clock.Now()), data.Total)

	supplyAt, avgAt, err := l.TotalSupplyAndAvgRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, data.Total, supplyAt)
	assert.Equal(t, data.AvgRate, avgAt)

	assert.Equal(t, testAsset, l.UnderlyingAsset())
}

func TestJournalDrainsOnStop(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	l := stabledebt.New(st, testAsset,
		// Large batch and interval so only Stop can flush.
		stabledebt.WithJournalConfig(1000, time.Hour),
	)
	require.NoError(t, l.Start(ctx))

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	_, err = l.Burn(ctx, alice, wad(400))
	require.NoError(t, err)
	err = l.UpdateCrossChainBalance(ctx, wad(100), stabledebt.SyncModeMint)
	require.NoError(t, err)

	require.NoError(t, l.Stop())

	events, err := st.QueryEvents(ctx, testAsset, event.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, event.KindMint, events[0].Kind)
	assert.Equal(t, event.KindBurn, events[1].Kind)
	assert.Equal(t, event.KindSync, events[2].Kind)
}

func TestEventsQueryThroughLedger(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, stabledebt.WithJournalConfig(1, time.Hour))
	require.NoError(t, l.Start(ctx))

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	_, err = l.Mint(ctx, bob, bob, wad(2000), rayPct(6))
	require.NoError(t, err)
	require.NoError(t, l.Stop())

	events, err := l.Events(ctx, event.QueryOpts{User: &bob})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, bob, events[0].OnBehalfOf)
	assert.Equal(t, wad(2000), events[0].Amount)

	positions, err := l.Positions(ctx, position.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestIncentivesControllerNotified(t *testing.T) {
	ctx := context.Background()

	type call struct {
		user        common.Address
		totalSupply *big.Int
		userBalance *big.Int
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	controller := incentives.ControllerFunc(func(_ context.Context, user common.Address, totalSupply, userBalance *big.Int) error {
		mu.Lock()
		calls = append(calls, call{user, totalSupply, userBalance})
		mu.Unlock()
		return nil
	})

	l := newTestLedger(t, stabledebt.WithIncentivesController(controller))

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	_, err = l.Burn(ctx, alice, wad(400))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)

	// Mint reports the state before the operation.
	assert.Equal(t, alice, calls[0].user)
	assert.Zero(t, calls[0].totalSupply.Sign())
	assert.Zero(t, calls[0].userBalance.Sign())

	assert.Equal(t, wad(1000), calls[1].totalSupply)
	assert.Equal(t, wad(1000), calls[1].userBalance)

	assert.NotNil(t, l.IncentivesController())
}

func TestPluginHooksFire(t *testing.T) {
	ctx := context.Background()

	var (
		mu     sync.Mutex
		mints  int
		burns  int
		closed int
		syncs  int
	)
	rec := &recordingPlugin{
		onMint: func(*event.Event) { mu.Lock(); mints++; mu.Unlock() },
		onBurn: func(*event.Event) { mu.Lock(); burns++; mu.Unlock() },
		onPositionClosed: func() {
			mu.Lock()
			closed++
			mu.Unlock()
		},
		onSync: func(*event.Event) { mu.Lock(); syncs++; mu.Unlock() },
	}

	l := newTestLedger(t, stabledebt.WithPlugin(rec))

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)
	_, err = l.Burn(ctx, alice, wad(400))
	require.NoError(t, err)
	_, err = l.Burn(ctx, alice, wad(600))
	require.NoError(t, err)
	err = l.UpdateCrossChainBalance(ctx, wad(10), stabledebt.SyncModeMint)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, mints)
	assert.Equal(t, 2, burns)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, syncs)
}

func TestCrossChainSyncTimestampNeverRegresses(t *testing.T) {
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0).UTC()
	clock := newFixedClock(start)

	var mu sync.Mutex
	var synced []*event.Event
	rec := &recordingPlugin{
		onSync: func(evt *event.Event) {
			mu.Lock()
			synced = append(synced, evt)
			mu.Unlock()
		},
	}

	l := newTestLedger(t,
		stabledebt.WithClock(clock.Now),
		stabledebt.WithPlugin(rec),
	)

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)

	// Clock runs backwards; the sync event must not be stamped before
	// the supply checkpoint.
	clock.Advance(-time.Hour)
	err = l.UpdateCrossChainBalance(ctx, wad(10), stabledebt.SyncModeMint)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, synced, 1)
	assert.Equal(t, start, synced[0].Timestamp)

	last, err := l.TotalSupplyLastUpdated(ctx)
	require.NoError(t, err)
	assert.False(t, synced[0].Timestamp.Before(last))
}

func TestStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	require.NoError(t, l.Start(ctx))

	_, err := l.Mint(ctx, alice, alice, wad(1000), rayPct(4))
	require.NoError(t, err)

	require.NoError(t, l.Stop())
	require.NoError(t, l.Stop())
}

// recordingPlugin captures lifecycle events for assertions.
type recordingPlugin struct {
	onMint           func(*event.Event)
	onBurn           func(*event.Event)
	onPositionClosed func()
	onSync           func(*event.Event)
}

func (p *recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) OnMint(_ context.Context, evt interface{}) error {
	if p.onMint != nil {
		if e, ok := evt.(*event.Event); ok {
			p.onMint(e)
		}
	}
	return nil
}

func (p *recordingPlugin) OnBurn(_ context.Context, evt interface{}) error {
	if p.onBurn != nil {
		if e, ok := evt.(*event.Event); ok {
			p.onBurn(e)
		}
	}
	return nil
}

func (p *recordingPlugin) OnPositionClosed(_ context.Context, _ interface{}) error {
	if p.onPositionClosed != nil {
		p.onPositionClosed()
	}
	return nil
}

func (p *recordingPlugin) OnCrossChainSync(_ context.Context, evt interface{}) error {
	if p.onSync != nil {
		if e, ok := evt.(*event.Event); ok {
			p.onSync(e)
		}
	}
	return nil
}
