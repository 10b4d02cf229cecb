// Package store defines the persistence interface for the tracker.
// Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing and for snapshot-file
// deployments).
//
// Inventory positions are never persisted as truth: they are a cache the
// ledger engine can always regenerate from the trade history alone.
package store

import (
	"context"
	"errors"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface.
type Store interface {
	// --- Immutable trade ledger ---

	// InsertTrade appends one trade record.
	InsertTrade(ctx context.Context, rec *model.TradeRecord) error

	// DeleteTrade removes a trade record by ID. Returns ErrNotFound if
	// no such record exists.
	DeleteTrade(ctx context.Context, id string) error

	// DeleteTradeByFill removes the trade synthesized from the given
	// order fill. Missing records are not an error: the fill may have
	// produced no trade.
	DeleteTradeByFill(ctx context.Context, fillID string) error

	// ListTrades returns the full trade history in insertion order.
	ListTrades(ctx context.Context) ([]model.TradeRecord, error)

	// --- Orders ---

	// InsertOrder persists a new order.
	InsertOrder(ctx context.Context, o *model.Order) error

	// UpdateOrder replaces an existing order (status, fills, progress).
	UpdateOrder(ctx context.Context, o *model.Order) error

	// GetOrder retrieves one order with its fills.
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// DeleteOrder removes an order and its fills.
	DeleteOrder(ctx context.Context, id string) error

	// ListOrders returns all orders, newest first.
	ListOrders(ctx context.Context) ([]model.Order, error)

	// --- Price history ---

	// UpsertPricePoint records an observed price, replacing any earlier
	// observation for the same item on the same calendar day.
	UpsertPricePoint(ctx context.Context, p model.PricePoint) error

	// ListPricePoints returns the observations for one item, newest
	// first.
	ListPricePoints(ctx context.Context, game, item string) ([]model.PricePoint, error)

	// ListAllPricePoints returns every observation (snapshot export).
	ListAllPricePoints(ctx context.Context) ([]model.PricePoint, error)
}
