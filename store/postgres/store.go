package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/position"
	debtstore "github.com/0xAtharva/stabledebt/store"
	"github.com/0xAtharva/stabledebt/supply"
)

// compile-time interface check
var _ debtstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("stabledebt/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("stabledebt/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Position Store ====================

func (s *Store) GetPosition(ctx context.Context, asset, user common.Address) (*position.Position, error) {
	m := new(positionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", positionKey(asset, user)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stabledebt.ErrPositionNotFound
		}
		return nil, err
	}
	return fromPositionModel(m)
}

func (s *Store) PutPosition(ctx context.Context, p *position.Position) error {
	m := toPositionModel(p)
	m.UpdatedAt = now()
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("principal = EXCLUDED.principal").
		Set("rate = EXCLUDED.rate").
		Set("last_updated = EXCLUDED.last_updated").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) DeletePosition(ctx context.Context, asset, user common.Address) error {
	res, err := s.pg.NewDelete((*positionModel)(nil)).
		Where("id = $1", positionKey(asset, user)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return stabledebt.ErrPositionNotFound
	}
	return nil
}

func (s *Store) ListPositions(ctx context.Context, asset common.Address, opts position.ListOpts) ([]*position.Position, error) {
	var models []positionModel
	q := s.pg.NewSelect(&models).Where("asset = $1", asset.Hex())

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*position.Position, len(models))
	for i := range models {
		p, err := fromPositionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Supply Store ====================

func (s *Store) GetSupply(ctx context.Context, asset common.Address) (*supply.Supply, error) {
	m := new(supplyModel)
	err := s.pg.NewSelect(m).
		Where("asset = $1", asset.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stabledebt.ErrSupplyNotFound
		}
		return nil, err
	}
	return fromSupplyModel(m)
}

func (s *Store) PutSupply(ctx context.Context, sup *supply.Supply) error {
	m := toSupplyModel(sup)
	m.UpdatedAt = now()
	_, err := s.pg.NewInsert(m).
		OnConflict("(asset) DO UPDATE").
		Set("total_principal = EXCLUDED.total_principal").
		Set("avg_rate = EXCLUDED.avg_rate").
		Set("last_updated = EXCLUDED.last_updated").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Event Store ====================

func (s *Store) AppendEvents(ctx context.Context, events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}
	models := make([]eventModel, len(events))
	for i, e := range events {
		models[i] = *toEventModel(e)
	}
	_, err := s.pg.NewInsert(&models).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) QueryEvents(ctx context.Context, asset common.Address, opts event.QueryOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models).Where("asset = $1", asset.Hex())

	argIdx := 1
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.User != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("on_behalf_of = $%d", argIdx), opts.User.Hex())
	}
	if !opts.Start.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("timestamp >= $%d", argIdx), opts.Start)
	}
	if !opts.End.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("timestamp < $%d", argIdx), opts.End)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) PurgeEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*eventModel)(nil)).
		Where("timestamp < $1", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
