package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// The trade list is the hot path: every position rebuild reads the full
// history, so it is cached as one blob and invalidated on any mutation.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Trades (cached as a single ordered blob) ---

func (s *CachedStore) InsertTrade(ctx context.Context, rec *model.TradeRecord) error {
	if err := s.primary.InsertTrade(ctx, rec); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey())
	return nil
}

func (s *CachedStore) DeleteTrade(ctx context.Context, id string) error {
	if err := s.primary.DeleteTrade(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey())
	return nil
}

func (s *CachedStore) DeleteTradeByFill(ctx context.Context, fillID string) error {
	if err := s.primary.DeleteTradeByFill(ctx, fillID); err != nil {
		return err
	}
	s.rdb.Del(ctx, tradesKey())
	return nil
}

func (s *CachedStore) ListTrades(ctx context.Context) ([]model.TradeRecord, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, tradesKey()).Bytes()
	if err == nil {
		var trades []model.TradeRecord
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	// Cache miss: read from primary.
	trades, err := s.primary.ListTrades(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(trades); err == nil {
		s.rdb.Set(ctx, tradesKey(), data, s.ttl)
	}
	return trades, nil
}

// --- Orders (passthrough, not cached) ---

func (s *CachedStore) InsertOrder(ctx context.Context, o *model.Order) error {
	return s.primary.InsertOrder(ctx, o)
}

func (s *CachedStore) UpdateOrder(ctx context.Context, o *model.Order) error {
	return s.primary.UpdateOrder(ctx, o)
}

func (s *CachedStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.primary.GetOrder(ctx, id)
}

func (s *CachedStore) DeleteOrder(ctx context.Context, id string) error {
	return s.primary.DeleteOrder(ctx, id)
}

func (s *CachedStore) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.primary.ListOrders(ctx)
}

// --- Price history (cached per item) ---

func (s *CachedStore) UpsertPricePoint(ctx context.Context, p model.PricePoint) error {
	if err := s.primary.UpsertPricePoint(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, pricesKey(p.Game, p.Item))
	return nil
}

func (s *CachedStore) ListPricePoints(ctx context.Context, game, item string) ([]model.PricePoint, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, pricesKey(game, item)).Bytes()
	if err == nil {
		var points []model.PricePoint
		if json.Unmarshal(data, &points) == nil {
			return points, nil
		}
	}

	// Cache miss.
	points, err := s.primary.ListPricePoints(ctx, game, item)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(points); err == nil {
		s.rdb.Set(ctx, pricesKey(game, item), data, s.ttl)
	}
	return points, nil
}

func (s *CachedStore) ListAllPricePoints(ctx context.Context) ([]model.PricePoint, error) {
	return s.primary.ListAllPricePoints(ctx)
}

// --- Cache keys ---

func tradesKey() string               { return "trades:all" }
func pricesKey(game, item string) string { return fmt.Sprintf("prices:%s:%s", game, item) }
