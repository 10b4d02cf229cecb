package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// MemoryStore implements Store with in-memory slices. Used for testing
// and for single-user deployments persisted through snapshot files.
type MemoryStore struct {
	mu     sync.RWMutex
	trades []model.TradeRecord
	orders []model.Order
	prices []model.PricePoint
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertTrade(_ context.Context, rec *model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *rec)
	return nil
}

func (s *MemoryStore) DeleteTrade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.trades {
		if t.ID == id {
			s.trades = append(s.trades[:i], s.trades[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteTradeByFill(_ context.Context, fillID string) error {
	if fillID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.trades {
		if t.OrderFillID == fillID {
			s.trades = append(s.trades[:i], s.trades[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.TradeRecord, len(s.trades))
	copy(out, s.trades)
	return out, nil
}

func (s *MemoryStore) InsertOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = append(s.orders, cloneOrder(*o))
	return nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.orders {
		if existing.ID == o.ID {
			s.orders[i] = cloneOrder(*o)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == id {
			out := cloneOrder(o)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.orders {
		if o.ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, cloneOrder(o))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpsertPricePoint(_ context.Context, p model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := p.Observed.UTC().Truncate(24 * time.Hour)
	kept := s.prices[:0]
	for _, existing := range s.prices {
		sameDay := existing.Observed.UTC().Truncate(24 * time.Hour).Equal(day)
		if existing.Game == p.Game && existing.Item == p.Item && sameDay {
			continue
		}
		kept = append(kept, existing)
	}
	s.prices = append(kept, p)
	return nil
}

func (s *MemoryStore) ListPricePoints(_ context.Context, game, item string) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PricePoint
	for _, p := range s.prices {
		if p.Game == game && p.Item == item {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Observed.After(out[j].Observed)
	})
	return out, nil
}

func (s *MemoryStore) ListAllPricePoints(_ context.Context) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PricePoint, len(s.prices))
	copy(out, s.prices)
	return out, nil
}

// cloneOrder copies an order with its fills to avoid external mutation.
func cloneOrder(o model.Order) model.Order {
	fills := make([]model.OrderFill, len(o.Fills))
	copy(fills, o.Fills)
	o.Fills = fills
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		o.CompletedAt = &t
	}
	return o
}
