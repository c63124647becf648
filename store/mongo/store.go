package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	stabledebt "github.com/0xAtharva/stabledebt"
	"github.com/0xAtharva/stabledebt/event"
	"github.com/0xAtharva/stabledebt/position"
	debtstore "github.com/0xAtharva/stabledebt/store"
	"github.com/0xAtharva/stabledebt/supply"
)

// Collection name constants.
const (
	colPositions = "stabledebt_positions"
	colSupply    = "stabledebt_supply"
	colEvents    = "stabledebt_events"
)

// compile-time interface check
var _ debtstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all stable debt collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("stabledebt/mongo: migrate %s indexes: %w", col, err)
		}
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
	var m positionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": positionKey(asset, user)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stabledebt.ErrPositionNotFound
		}
		return nil, fmt.Errorf("stabledebt/mongo: get position: %w", err)
	}
	return fromPositionModel(&m)
}

func (s *Store) PutPosition(ctx context.Context, p *position.Position) error {
	m := toPositionModel(p)
	m.UpdatedAt = now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":          m.ID,
			"asset":        m.Asset,
			"user_address": m.User,
			"principal":    m.Principal,
			"rate":         m.Rate,
			"last_updated": m.LastUpdated,
			"created_at":   m.CreatedAt,
			"updated_at":   m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stabledebt/mongo: put position: %w", err)
	}
	return nil
}

func (s *Store) DeletePosition(ctx context.Context, asset, user common.Address) error {
	res, err := s.mdb.NewDelete((*positionModel)(nil)).
		Filter(bson.M{"_id": positionKey(asset, user)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stabledebt/mongo: delete position: %w", err)
	}
	if res.DeletedCount() == 0 {
		return stabledebt.ErrPositionNotFound
	}
	return nil
}

func (s *Store) ListPositions(ctx context.Context, asset common.Address, opts position.ListOpts) ([]*position.Position, error) {
	var models []positionModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"asset": asset.Hex()}).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("stabledebt/mongo: list positions: %w", err)
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
	var m supplyModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": asset.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, stabledebt.ErrSupplyNotFound
		}
		return nil, fmt.Errorf("stabledebt/mongo: get supply: %w", err)
	}
	return fromSupplyModel(&m)
}

func (s *Store) PutSupply(ctx context.Context, sup *supply.Supply) error {
	m := toSupplyModel(sup)
	m.UpdatedAt = now()

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Asset}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":             m.Asset,
			"total_principal": m.TotalPrincipal,
			"avg_rate":        m.AvgRate,
			"last_updated":    m.LastUpdated,
			"created_at":      m.CreatedAt,
			"updated_at":      m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stabledebt/mongo: put supply: %w", err)
	}
	return nil
}

// ==================== Event Store ====================

func (s *Store) AppendEvents(ctx context.Context, events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		m := toEventModel(e)
		_, err := s.mdb.NewInsert(m).Exec(ctx)
		if err != nil {
			// Skip duplicates so a replayed batch stays idempotent
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("stabledebt/mongo: append event: %w", err)
		}
	}
	return nil
}

func (s *Store) QueryEvents(ctx context.Context, asset common.Address, opts event.QueryOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{"asset": asset.Hex()}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if opts.User != nil {
		filter["on_behalf_of"] = opts.User.Hex()
	}
	if !opts.Start.IsZero() {
		if _, ok := filter["timestamp"]; !ok {
			filter["timestamp"] = bson.M{}
		}
		if ts, ok := filter["timestamp"].(bson.M); ok {
			ts["$gte"] = opts.Start
		}
	}
	if !opts.End.IsZero() {
		if _, ok := filter["timestamp"]; !ok {
			filter["timestamp"] = bson.M{}
		}
		if ts, ok := filter["timestamp"].(bson.M); ok {
			ts["$lt"] = opts.End
		}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("stabledebt/mongo: query events: %w", err)
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
	res, err := s.mdb.NewDelete((*eventModel)(nil)).
		Filter(bson.M{"timestamp": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stabledebt/mongo: purge events: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all stable debt collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPositions: {
			{Keys: bson.D{{Key: "asset", Value: 1}, {Key: "user_address", Value: 1}}},
			{Keys: bson.D{{Key: "asset", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colSupply: {},
		colEvents: {
			{Keys: bson.D{{Key: "asset", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "asset", Value: 1}, {Key: "on_behalf_of", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "asset", Value: 1}, {Key: "kind", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}
}
