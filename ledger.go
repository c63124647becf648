package stabledebt

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/id"
	"github.com/0xAtharva/stabledebt/incentives"
	"github.com/0xAtharva/stabledebt/plugin"
	"github.com/0xAtharva/stabledebt/position"
	"github.com/0xAtharva/stabledebt/store"
	"github.com/0xAtharva/stabledebt/supply"
	"github.com/0xAtharva/stabledebt/types"
)

// Ledger is the stable-rate debt accounting engine for one underlying asset.
// Each user owes a principal compounding at the rate fixed when they
// borrowed; the aggregate supply compounds at the principal-weighted
// average of all open rates.
type Ledger struct {
	store      store.Store
	plugins    *plugin.Registry
	logger     *slog.Logger
	asset      common.Address
	controller incentives.Controller
	now        func() time.Time

	// Serializes balance-changing operations so the aggregate stays
	// consistent with the positions.
	mu sync.Mutex

	// Background journal worker
	journalBuffer chan *event.Event
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	// Configuration
	journalBatchSize     int
	journalFlushInterval time.Duration
}

// New creates a new Ledger for the given underlying asset.
func New(s store.Store, asset common.Address, opts ...Option) *Ledger {
	l := &Ledger{
		store:                s,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		asset:                asset,
		controller:           incentives.Noop,
		now:                  func() time.Time { return time.Now().UTC() },
		journalBuffer:        make(chan *event.Event, 10000),
		stopChan:             make(chan struct{}),
		journalBatchSize:     100,
		journalFlushInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithIncentivesController sets the reward distribution hook.
func WithIncentivesController(c incentives.Controller) Option {
	return func(l *Ledger) {
		l.controller = c
	}
}

// WithClock overrides the time source. Intended for tests and for
// embedders that settle against an external block timestamp.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithJournalConfig configures event journaling parameters.
func WithJournalConfig(batchSize int, flushInterval time.Duration) Option {
	return func(l *Ledger) {
		l.journalBatchSize = batchSize
		l.journalFlushInterval = flushInterval
	}
}

// Start begins background workers.
func (l *Ledger) Start(ctx context.Context) error {
	// Migrate database
	if err := l.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	l.plugins.EmitInit(ctx, l)

	// Start journal flush worker
	l.wg.Add(1)
	go l.journalFlushWorker(ctx)

	l.logger.Info("stable debt ledger started",
		"asset", l.asset.Hex(),
		"batch_size", l.journalBatchSize,
		"flush_interval", l.journalFlushInterval,
	)

	return nil
}

// Stop shuts down the Ledger, draining the journal first. Safe to call
// more than once.
func (l *Ledger) Stop() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()

		ctx := context.Background()
		l.plugins.EmitShutdown(ctx)

		err = l.store.Close()
	})
	return err
}

// MintResult is the outcome of a Mint operation.
type MintResult struct {
	// FirstBorrow is true when onBehalfOf had no debt before the mint.
	FirstBorrow    bool
	NewTotalSupply *big.Int // wad
	AvgRate        *big.Int // ray
}

// BurnResult is the outcome of a Burn operation.
type BurnResult struct {
	NewTotalSupply *big.Int // wad
	AvgRate        *big.Int // ray
}

// SyncMode selects the direction of a cross-chain balance adjustment.
type SyncMode int

const (
	// SyncModeMint adds debt minted on another chain to the aggregate.
	SyncModeMint SyncMode = 1
	// SyncModeBurn removes debt burned on another chain from the aggregate.
	SyncModeBurn SyncMode = 2
)

// ──────────────────────────────────────────────────
// Debt operations
// ──────────────────────────────────────────────────

// Mint issues amount of debt to onBehalfOf at the given yearly rate.
// Interest accrued since the position's last checkpoint is capitalized
// into the principal, the position rate becomes the principal-weighted
// mean of the old rate and the new one, and the aggregate average rate
// grows the same way over the compounded previous supply.
func (l *Ledger) Mint(ctx context.Context, caller, onBehalfOf common.Address, amount, rate *big.Int) (*MintResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, fresh, err := l.loadPosition(ctx, onBehalfOf)
	if err != nil {
		return nil, err
	}
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return nil, err
	}

	now := l.clampClock(pos, sup)

	currentBalance := pos.BalanceAt(now)
	balanceIncrease := new(big.Int).Sub(currentBalance, pos.Principal)
	firstBorrow := currentBalance.Sign() == 0

	// Weighted position rate: (oldRate·balance + rate·amount) / (balance+amount)
	nextPrincipal := new(big.Int).Add(currentBalance, amount)
	weighted := types.RayMul(pos.Rate, types.WadToRay(currentBalance))
	weighted.Add(weighted, types.RayMul(rate, types.WadToRay(amount)))
	nextRate := types.RayDiv(weighted, types.WadToRay(nextPrincipal))

	// Weighted average rate over the compounded previous supply.
	previousSupply := sup.TotalAt(now)
	nextSupply := new(big.Int).Add(previousSupply, amount)
	weightedAvg := types.RayMul(sup.AvgRate, types.WadToRay(previousSupply))
	weightedAvg.Add(weightedAvg, types.RayMul(rate, types.WadToRay(amount)))
	nextAvgRate := types.RayDiv(weightedAvg, types.WadToRay(nextSupply))

	previousPrincipal := pos.Principal

	pos.Principal = nextPrincipal
	pos.Rate = nextRate
	pos.LastUpdated = now
	if fresh {
		pos.Entity = types.NewEntity()
	} else {
		pos.Touch()
	}
	if err := l.store.PutPosition(ctx, pos); err != nil {
		return nil, err
	}

	sup.TotalPrincipal = nextSupply
	sup.AvgRate = nextAvgRate
	sup.LastUpdated = now
	sup.Touch()
	if err := l.store.PutSupply(ctx, sup); err != nil {
		return nil, err
	}

	l.notifyIncentives(ctx, onBehalfOf, previousSupply, previousPrincipal)

	evt := &event.Event{
		ID:              id.NewMintID(),
		Asset:           l.asset,
		Kind:            event.KindMint,
		Caller:          caller,
		OnBehalfOf:      onBehalfOf,
		Amount:          new(big.Int).Set(amount),
		CurrentBalance:  currentBalance,
		BalanceIncrease: balanceIncrease,
		Rate:            nextRate,
		AvgRate:         nextAvgRate,
		NewTotalSupply:  nextSupply,
		Timestamp:       now,
	}
	l.journal(evt)
	l.plugins.EmitMint(ctx, evt)

	return &MintResult{
		FirstBorrow:    firstBorrow,
		NewTotalSupply: nextSupply,
		AvgRate:        nextAvgRate,
	}, nil
}

// Burn repays amount of user's debt. Interest accrued since the last
// checkpoint is settled first; when the accrual exceeds the amount
// repaid the operation nets out to a mint of the difference and is
// journaled as such. A full repayment deletes the position.
func (l *Ledger) Burn(ctx context.Context, user common.Address, amount *big.Int) (*BurnResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, fresh, err := l.loadPosition(ctx, user)
	if err != nil {
		return nil, err
	}
	if fresh {
		return nil, ErrNoDebt
	}
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return nil, err
	}

	now := l.clampClock(pos, sup)

	currentBalance := pos.BalanceAt(now)
	if amount.Cmp(currentBalance) > 0 {
		return nil, ErrBurnExceedsDebt
	}
	balanceIncrease := new(big.Int).Sub(currentBalance, pos.Principal)

	// The aggregate and the positions accrue separately, so rounding can
	// leave the compounded supply below the amount the last borrower
	// repays. Zero out the book in that case.
	previousSupply := sup.TotalAt(now)
	nextSupply := new(big.Int)
	nextAvgRate := new(big.Int)
	if previousSupply.Cmp(amount) > 0 {
		nextSupply.Sub(previousSupply, amount)
		firstTerm := types.RayMul(sup.AvgRate, types.WadToRay(previousSupply))
		secondTerm := types.RayMul(pos.Rate, types.WadToRay(amount))
		if secondTerm.Cmp(firstTerm) >= 0 {
			nextSupply.SetInt64(0)
		} else {
			nextAvgRate = types.RayDiv(firstTerm.Sub(firstTerm, secondTerm), types.WadToRay(nextSupply))
		}
	}

	previousPrincipal := pos.Principal
	userRate := new(big.Int).Set(pos.Rate)

	if amount.Cmp(currentBalance) == 0 {
		if err := l.store.DeletePosition(ctx, l.asset, user); err != nil {
			return nil, err
		}
		l.plugins.EmitPositionClosed(ctx, pos)
	} else {
		pos.Principal = new(big.Int).Sub(currentBalance, amount)
		pos.LastUpdated = now
		pos.Touch()
		if err := l.store.PutPosition(ctx, pos); err != nil {
			return nil, err
		}
	}

	sup.TotalPrincipal = nextSupply
	sup.AvgRate = nextAvgRate
	sup.LastUpdated = now
	sup.Touch()
	if err := l.store.PutSupply(ctx, sup); err != nil {
		return nil, err
	}

	l.notifyIncentives(ctx, user, previousSupply, previousPrincipal)

	evt := &event.Event{
		Asset:           l.asset,
		Caller:          user,
		OnBehalfOf:      user,
		CurrentBalance:  currentBalance,
		BalanceIncrease: balanceIncrease,
		AvgRate:         nextAvgRate,
		NewTotalSupply:  nextSupply,
		Timestamp:       now,
	}
	if balanceIncrease.Cmp(amount) > 0 {
		// More interest accrued than was repaid: the principal grew.
		evt.ID = id.NewMintID()
		evt.Kind = event.KindMint
		evt.Amount = new(big.Int).Sub(balanceIncrease, amount)
		evt.Rate = userRate
		l.journal(evt)
		l.plugins.EmitMint(ctx, evt)
	} else {
		evt.ID = id.NewBurnID()
		evt.Kind = event.KindBurn
		evt.Amount = new(big.Int).Sub(amount, balanceIncrease)
		l.journal(evt)
		l.plugins.EmitBurn(ctx, evt)
	}

	return &BurnResult{
		NewTotalSupply: nextSupply,
		AvgRate:        nextAvgRate,
	}, nil
}

// UpdateCrossChainBalance folds a debt change that happened on another
// chain into the aggregate supply. The adjustment is already scaled, so
// it moves the raw principal without re-stamping the accrual checkpoint.
func (l *Ledger) UpdateCrossChainBalance(ctx context.Context, amountScaled *big.Int, mode SyncMode) error {
	if amountScaled == nil || amountScaled.Sign() <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sup, err := l.loadSupply(ctx)
	if err != nil {
		return err
	}

	now := l.clampClock(nil, sup)

	switch mode {
	case SyncModeMint:
		sup.TotalPrincipal = new(big.Int).Add(sup.TotalPrincipal, amountScaled)
	case SyncModeBurn:
		if amountScaled.Cmp(sup.TotalPrincipal) > 0 {
			return ErrSupplyUnderflow
		}
		sup.TotalPrincipal = new(big.Int).Sub(sup.TotalPrincipal, amountScaled)
		if sup.TotalPrincipal.Sign() == 0 {
			sup.AvgRate = new(big.Int)
		}
	default:
		return ErrInvalidSyncMode
	}

	sup.Touch()
	if err := l.store.PutSupply(ctx, sup); err != nil {
		return err
	}

	evt := &event.Event{
		ID:             id.NewSyncID(),
		Asset:          l.asset,
		Kind:           event.KindSync,
		Amount:         new(big.Int).Set(amountScaled),
		AvgRate:        new(big.Int).Set(sup.AvgRate),
		NewTotalSupply: new(big.Int).Set(sup.TotalPrincipal),
		Timestamp:      now,
	}
	l.journal(evt)
	l.plugins.EmitCrossChainSync(ctx, evt)

	return nil
}

// ──────────────────────────────────────────────────
// Read accessors
// ──────────────────────────────────────────────────

// BalanceOf returns user's debt compounded at their own rate, in wad.
func (l *Ledger) BalanceOf(ctx context.Context, user common.Address) (*big.Int, error) {
	pos, err := l.store.GetPosition(ctx, l.asset, user)
	if IsNotFound(err) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return pos.BalanceAt(l.now()), nil
}

// PrincipalBalanceOf returns user's principal at their last checkpoint, in wad.
func (l *Ledger) PrincipalBalanceOf(ctx context.Context, user common.Address) (*big.Int, error) {
	pos, err := l.store.GetPosition(ctx, l.asset, user)
	if IsNotFound(err) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.Principal), nil
}

// UserStableRate returns the yearly ray rate fixed for user's debt, or
// zero when they have none.
func (l *Ledger) UserStableRate(ctx context.Context, user common.Address) (*big.Int, error) {
	pos, err := l.store.GetPosition(ctx, l.asset, user)
	if IsNotFound(err) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(pos.Rate), nil
}

// UserLastUpdated returns the instant user's debt last accrued, or the
// zero time when they have none.
func (l *Ledger) UserLastUpdated(ctx context.Context, user common.Address) (time.Time, error) {
	pos, err := l.store.GetPosition(ctx, l.asset, user)
	if IsNotFound(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return pos.LastUpdated, nil
}

// AverageStableRate returns the principal-weighted average of all open
// position rates, in ray.
func (l *Ledger) AverageStableRate(ctx context.Context) (*big.Int, error) {
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(sup.AvgRate), nil
}

// TotalSupply returns the aggregate debt compounded at the average rate
// since its last checkpoint, in wad.
func (l *Ledger) TotalSupply(ctx context.Context) (*big.Int, error) {
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return nil, err
	}
	return sup.TotalAt(l.now()), nil
}

// PrincipalTotalSupply returns the aggregate principal at its last
// checkpoint, in wad.
func (l *Ledger) PrincipalTotalSupply(ctx context.Context) (*big.Int, error) {
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(sup.TotalPrincipal), nil
}

// TotalSupplyAndAvgRate returns the compounded total supply and the
// average rate in one call.
func (l *Ledger) TotalSupplyAndAvgRate(ctx context.Context) (*big.Int, *big.Int, error) {
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sup.TotalAt(l.now()), new(big.Int).Set(sup.AvgRate), nil
}

// TotalSupplyLastUpdated returns the instant the aggregate supply last
// accrued, or the zero time when nothing was ever minted.
func (l *Ledger) TotalSupplyLastUpdated(ctx context.Context) (time.Time, error) {
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return sup.LastUpdated, nil
}

// SupplyData is the full aggregate snapshot.
type SupplyData struct {
	Principal   *big.Int // wad, at LastUpdated
	Total       *big.Int // wad, compounded to now
	AvgRate     *big.Int // ray
	LastUpdated time.Time
}

// GetSupplyData returns the aggregate principal, the compounded total,
// the average rate and the last accrual instant.
func (l *Ledger) GetSupplyData(ctx context.Context) (*SupplyData, error) {
	sup, err := l.loadSupply(ctx)
	if err != nil {
		return nil, err
	}
	return &SupplyData{
		Principal:   new(big.Int).Set(sup.TotalPrincipal),
		Total:       sup.TotalAt(l.now()),
		AvgRate:     new(big.Int).Set(sup.AvgRate),
		LastUpdated: sup.LastUpdated,
	}, nil
}

// UnderlyingAsset returns the asset this ledger accounts debt for.
func (l *Ledger) UnderlyingAsset() common.Address {
	return l.asset
}

// IncentivesController returns the configured reward distribution hook.
func (l *Ledger) IncentivesController() incentives.Controller {
	return l.controller
}

// Positions lists open positions for the ledger's asset.
func (l *Ledger) Positions(ctx context.Context, opts position.ListOpts) ([]*position.Position, error) {
	return l.store.ListPositions(ctx, l.asset, opts)
}

// Events queries the journaled event history for the ledger's asset.
func (l *Ledger) Events(ctx context.Context, opts event.QueryOpts) ([]*event.Event, error) {
	return l.store.QueryEvents(ctx, l.asset, opts)
}

// PurgeEvents deletes journaled events older than the given instant and
// returns how many were removed.
func (l *Ledger) PurgeEvents(ctx context.Context, before time.Time) (int64, error) {
	return l.store.PurgeEvents(ctx, before)
}

// ──────────────────────────────────────────────────
// Journal
// ──────────────────────────────────────────────────

// journal enqueues an event for background persistence. The operation
// already committed, so a full buffer drops the event with a warning
// rather than failing the caller.
func (l *Ledger) journal(evt *event.Event) {
	select {
	case l.journalBuffer <- evt:
	default:
		l.logger.Warn("journal buffer full, dropping event",
			"kind", evt.Kind,
			"id", evt.ID.String(),
		)
	}
}

// journalFlushWorker flushes journaled events to the store.
func (l *Ledger) journalFlushWorker(ctx context.Context) {
	defer l.wg.Done()

	batch := make([]*event.Event, 0, l.journalBatchSize)
	ticker := time.NewTicker(l.journalFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			// Drain whatever is buffered, then final flush
			for {
				select {
				case evt := <-l.journalBuffer:
					batch = append(batch, evt)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				l.flushJournalBatch(ctx, batch)
			}
			return

		case evt := <-l.journalBuffer:
			batch = append(batch, evt)
			if len(batch) >= l.journalBatchSize {
				l.flushJournalBatch(ctx, batch)
				batch = make([]*event.Event, 0, l.journalBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.flushJournalBatch(ctx, batch)
				batch = make([]*event.Event, 0, l.journalBatchSize)
			}
		}
	}
}

func (l *Ledger) flushJournalBatch(ctx context.Context, batch []*event.Event) {
	start := time.Now()

	if err := l.store.AppendEvents(ctx, batch); err != nil {
		l.logger.Error("failed to flush journal batch",
			"error", err,
			"batch_size", len(batch),
		)
		return
	}

	elapsed := time.Since(start)
	l.plugins.EmitEventsFlushed(ctx, len(batch), elapsed)

	l.logger.Debug("flushed journal batch",
		"batch_size", len(batch),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// loadPosition fetches user's position, or a zeroed one when none
// exists. fresh reports whether the position came from the store.
func (l *Ledger) loadPosition(ctx context.Context, user common.Address) (pos *position.Position, fresh bool, err error) {
	pos, err = l.store.GetPosition(ctx, l.asset, user)
	if err == nil {
		return pos, false, nil
	}
	if !IsNotFound(err) {
		return nil, false, err
	}
	return &position.Position{
		Asset:     l.asset,
		User:      user,
		Principal: new(big.Int),
		Rate:      new(big.Int),
	}, true, nil
}

// loadSupply fetches the aggregate record, or a zeroed one when nothing
// was ever minted.
func (l *Ledger) loadSupply(ctx context.Context) (*supply.Supply, error) {
	sup, err := l.store.GetSupply(ctx, l.asset)
	if err == nil {
		return sup, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	return &supply.Supply{
		Entity:         types.NewEntity(),
		Asset:          l.asset,
		TotalPrincipal: new(big.Int),
		AvgRate:        new(big.Int),
	}, nil
}

// clampClock returns the current instant, never earlier than the stored
// checkpoints so accrual intervals cannot go negative.
func (l *Ledger) clampClock(pos *position.Position, sup *supply.Supply) time.Time {
	now := l.now()
	if pos != nil && now.Before(pos.LastUpdated) {
		now = pos.LastUpdated
	}
	if sup != nil && now.Before(sup.LastUpdated) {
		now = sup.LastUpdated
	}
	return now
}

// notifyIncentives reports a balance change to the incentives controller.
// Failures are logged, never propagated: rewards must not block accounting.
func (l *Ledger) notifyIncentives(ctx context.Context, user common.Address, totalSupply, userBalance *big.Int) {
	if l.controller == nil {
		return
	}
	if err := l.controller.HandleAction(ctx, user, totalSupply, userBalance); err != nil {
		l.logger.Warn("incentives controller failed",
			"user", user.Hex(),
			"error", err,
		)
	}
}
