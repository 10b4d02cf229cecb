// Package tracker provides the HTTP handlers and business logic for
// recording trades, reconstructing inventory, analysing profit, and
// managing orders and prices.
//
// All monetary values use shopspring/decimal — never float64 for money.
package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/ledger"
	"github.com/gavriccccc-tech/skinfolio/internal/metrics"
	"github.com/gavriccccc-tech/skinfolio/internal/model"
	"github.com/gavriccccc-tech/skinfolio/internal/prices"
	"github.com/gavriccccc-tech/skinfolio/internal/report"
	"github.com/gavriccccc-tech/skinfolio/internal/snapshot"
	"github.com/gavriccccc-tech/skinfolio/internal/store"
)

// Service handles tracker operations. A mutex serializes mutations with
// inventory reconstruction (single-instance).
type Service struct {
	store        store.Store
	prices       *prices.Service
	snapshotPath string
	mu           sync.Mutex
	wsHub        *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new tracker service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, ps *prices.Service, snapshotPath string, hub *WSHub) *Service {
	return &Service{
		store:        st,
		prices:       ps,
		snapshotPath: snapshotPath,
		wsHub:        hub,
	}
}

// --- Request/Response types ---

// AddTradeRequest is the JSON body for POST /trades.
type AddTradeRequest struct {
	Timestamp time.Time       `json:"timestamp"` // zero → now
	Game      string          `json:"game"`
	Item      string          `json:"item"`
	Op        string          `json:"op"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// AddTradeResponse returns the stored record plus the rebuilt position
// of the affected item.
type AddTradeResponse struct {
	Trade    model.TradeRecord       `json:"trade"`
	Position model.InventoryPosition `json:"position"`
}

// PricedPosition is one inventory row annotated with the current price
// and its valuation.
type PricedPosition struct {
	model.InventoryPosition
	CurrentPrice decimal.Decimal `json:"current_price"`
	PriceSource  string          `json:"price_source"`
	Valuation    model.Valuation `json:"valuation"`
}

// CreateOrderRequest is the JSON body for POST /orders.
type CreateOrderRequest struct {
	Game           string          `json:"game"`
	Item           string          `json:"item"`
	Side           string          `json:"side"` // "purchase" or "sale"
	TargetPrice    decimal.Decimal `json:"target_price"`
	TargetQuantity int64           `json:"target_quantity"`
	Notes          string          `json:"notes"`
}

// AddFillRequest is the JSON body for POST /orders/{orderID}/fills.
type AddFillRequest struct {
	FilledAt time.Time       `json:"filled_at"` // zero → now
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    string          `json:"notes"`
}

// SetPriceRequest is the JSON body for PUT /prices/manual.
type SetPriceRequest struct {
	Game  string          `json:"game"`
	Item  string          `json:"item"`
	Price decimal.Decimal `json:"price"`
}

// --- Trade handlers ---

// AddTrade handles POST /api/v1/trades
func (s *Service) AddTrade(w http.ResponseWriter, r *http.Request) {
	var req AddTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Game == "" || req.Item == "" {
		writeError(w, "game and item are required", http.StatusBadRequest)
		return
	}
	op, err := model.ParseOp(req.Op)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		writeError(w, "quantity must be non-zero", http.StatusBadRequest)
		return
	}
	if req.Price.IsNegative() {
		writeError(w, "price must not be negative", http.StatusBadRequest)
		return
	}
	quantity := req.Quantity
	switch op {
	case model.OpPurchase:
		if quantity < 0 {
			writeError(w, "purchase quantity must be positive", http.StatusBadRequest)
			return
		}
	case model.OpSale:
		// Sales carry a positive magnitude; the op is the direction.
		if quantity < 0 {
			quantity = -quantity
		}
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	rec := model.TradeRecord{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Game:      req.Game,
		Item:      req.Item,
		Op:        op,
		Quantity:  quantity,
		Price:     req.Price,
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.InsertTrade(ctx, &rec); err != nil {
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}
	metrics.TradesRecorded.WithLabelValues(string(op)).Inc()

	positions, err := s.rebuild(ctx)
	if err != nil {
		writeError(w, "failed to rebuild inventory", http.StatusInternalServerError)
		return
	}

	slog.Info("trade recorded",
		"trade_id", rec.ID,
		"game", rec.Game,
		"item", rec.Item,
		"op", string(rec.Op),
		"qty", rec.Quantity,
		"price", rec.Price.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "trade_recorded",
			Game:     rec.Game,
			Item:     rec.Item,
			Op:       string(rec.Op),
			Quantity: rec.Quantity,
			Price:    rec.Price.String(),
		})
	}

	resp := AddTradeResponse{
		Trade:    rec,
		Position: positions[model.Key{Game: rec.Game, Item: rec.Item}],
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// DeleteTrade handles DELETE /api/v1/trades/{tradeID}
func (s *Service) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	tradeID := chi.URLParam(r, "tradeID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteTrade(ctx, tradeID); err != nil {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	metrics.TradesDeleted.Inc()

	slog.Info("trade deleted", "trade_id", tradeID)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: "trade_deleted"})
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTrades handles GET /api/v1/trades
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context())
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.TradeRecord{}
	}

	writeJSON(w, trades)
}

// --- Inventory handlers ---

// GetInventory handles GET /api/v1/inventory
func (s *Service) GetInventory(w http.ResponseWriter, r *http.Request) {
	positions, err := s.rebuild(r.Context())
	if err != nil {
		writeError(w, "failed to rebuild inventory", http.StatusInternalServerError)
		return
	}

	writeJSON(w, sortedPositions(positions))
}

// GetInventoryWithPrices handles GET /api/v1/inventory/prices
// Each position is annotated with the resolved current price and the
// valuation against it. A missing price yields the "none" source with a
// zero price, never an error.
func (s *Service) GetInventoryWithPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	positions, err := s.rebuild(ctx)
	if err != nil {
		writeError(w, "failed to rebuild inventory", http.StatusInternalServerError)
		return
	}

	rows := make([]PricedPosition, 0, len(positions))
	for _, pos := range sortedPositions(positions) {
		quote := s.prices.Quote(ctx, pos.Game, pos.Item)
		rows = append(rows, PricedPosition{
			InventoryPosition: pos,
			CurrentPrice:      quote.Price,
			PriceSource:       quote.Source,
			Valuation:         ledger.Value(pos, quote.Price),
		})
	}

	writeJSON(w, rows)
}

// GetStatistics handles GET /api/v1/statistics
func (s *Service) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	trades, err := s.store.ListTrades(ctx)
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}

	positions := s.rebuildFrom(trades)
	writeJSON(w, ledger.Summarize(len(trades), positions))
}

// --- Analysis handlers ---

// GetSalesAnalysis handles GET /api/v1/analysis/sales
// One realization per sale record, most recent first.
func (s *Service) GetSalesAnalysis(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context())
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}

	realizations := ledger.Realizations(trades)
	if realizations == nil {
		realizations = []model.SaleRealization{}
	}

	writeJSON(w, realizations)
}

// GetPortfolioAnalysis handles GET /api/v1/analysis/portfolio
// One row per active lot, sorted by potential profit descending. Lots of
// items with no resolvable price are skipped.
func (s *Service) GetPortfolioAnalysis(w http.ResponseWriter, r *http.Request) {
	rows, err := s.portfolioRows(r.Context())
	if err != nil {
		writeError(w, "failed to rebuild inventory", http.StatusInternalServerError)
		return
	}

	writeJSON(w, rows)
}

// portfolioRows builds the per-lot analysis over the current inventory.
func (s *Service) portfolioRows(ctx context.Context) ([]model.LotAnalysis, error) {
	positions, err := s.rebuild(ctx)
	if err != nil {
		return nil, err
	}

	rows := []model.LotAnalysis{}
	for _, pos := range sortedPositions(positions) {
		quote := s.prices.Quote(ctx, pos.Game, pos.Item)
		if quote.None() {
			continue
		}
		yesterday := s.prices.YesterdayPrice(ctx, pos.Game, pos.Item)
		for _, lot := range pos.Lots {
			rows = append(rows, ledger.AnalyzeLot(pos.Game, pos.Item, lot, quote.Price, yesterday))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Profit.GreaterThan(rows[j].Profit)
	})
	return rows, nil
}

// --- Order handlers ---

// CreateOrder handles POST /api/v1/orders
func (s *Service) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Game == "" || req.Item == "" {
		writeError(w, "game and item are required", http.StatusBadRequest)
		return
	}
	side := model.Op(req.Side)
	if side != model.OpPurchase && side != model.OpSale {
		writeError(w, "side must be purchase or sale", http.StatusBadRequest)
		return
	}
	if req.TargetQuantity <= 0 {
		writeError(w, "target_quantity must be positive", http.StatusBadRequest)
		return
	}
	if req.TargetPrice.IsNegative() {
		writeError(w, "target_price must not be negative", http.StatusBadRequest)
		return
	}

	order := model.Order{
		ID:             uuid.New().String(),
		CreatedAt:      time.Now().UTC(),
		Game:           req.Game,
		Item:           req.Item,
		Side:           side,
		TargetPrice:    req.TargetPrice,
		TargetQuantity: req.TargetQuantity,
		Status:         model.OrderActive,
		Notes:          req.Notes,
	}

	if err := s.store.InsertOrder(r.Context(), &order); err != nil {
		writeError(w, "failed to create order", http.StatusInternalServerError)
		return
	}

	slog.Info("order created",
		"order_id", order.ID,
		"game", order.Game,
		"item", order.Item,
		"side", string(order.Side),
		"target_qty", order.TargetQuantity,
		"target_price", order.TargetPrice.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// ListOrders handles GET /api/v1/orders
func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context())
	if err != nil {
		writeError(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	writeJSON(w, orders)
}

// GetOrder handles GET /api/v1/orders/{orderID}
func (s *Service) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, "order not found", http.StatusNotFound)
		return
	}

	writeJSON(w, order)
}

// DeleteOrder handles DELETE /api/v1/orders/{orderID}
// All trades synthesized by the order's fills are removed with it, as if
// the order never existed.
func (s *Service) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, "order not found", http.StatusNotFound)
		return
	}

	// The order row goes first. A failure while removing the
	// synthesized trades then cannot leave an order pointing at trades
	// that are already gone.
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		writeError(w, "failed to delete order", http.StatusInternalServerError)
		return
	}
	for _, fill := range order.Fills {
		if err := s.store.DeleteTradeByFill(ctx, fill.ID); err != nil {
			writeError(w, "failed to remove synthesized trades", http.StatusInternalServerError)
			return
		}
	}

	slog.Info("order deleted", "order_id", orderID, "fills_removed", len(order.Fills))

	w.WriteHeader(http.StatusNoContent)
}

// CancelOrder handles POST /api/v1/orders/{orderID}/cancel
// Cancelling keeps existing fills and their trades; the order just stops
// accepting new ones.
func (s *Service) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, "order not found", http.StatusNotFound)
		return
	}
	if order.Status != model.OrderActive {
		writeError(w, "only active orders can be cancelled", http.StatusConflict)
		return
	}

	order.Status = model.OrderCancelled
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		writeError(w, "failed to cancel order", http.StatusInternalServerError)
		return
	}

	slog.Info("order cancelled", "order_id", orderID)
	writeJSON(w, order)
}

// AddFill handles POST /api/v1/orders/{orderID}/fills
// A fill synthesizes one trade record carrying the fill's ID, so the
// ledger and the order stay consistent either way.
func (s *Service) AddFill(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req AddFillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		writeError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}
	if req.Price.IsNegative() {
		writeError(w, "price must not be negative", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, "order not found", http.StatusNotFound)
		return
	}
	if !order.Active() {
		writeError(w, "order is not active", http.StatusConflict)
		return
	}
	if req.Quantity > order.RemainingQuantity() {
		writeError(w, "fill exceeds remaining quantity", http.StatusConflict)
		return
	}

	filledAt := req.FilledAt
	if filledAt.IsZero() {
		filledAt = time.Now().UTC()
	}

	fill := model.OrderFill{
		ID:       uuid.New().String(),
		FilledAt: filledAt,
		Quantity: req.Quantity,
		Price:    req.Price,
		Notes:    req.Notes,
	}

	rec := model.TradeRecord{
		ID:          uuid.New().String(),
		Timestamp:   filledAt,
		Game:        order.Game,
		Item:        order.Item,
		Op:          order.Side,
		Quantity:    req.Quantity,
		Price:       req.Price,
		OrderFillID: fill.ID,
	}
	if err := s.store.InsertTrade(ctx, &rec); err != nil {
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}
	metrics.TradesRecorded.WithLabelValues(string(rec.Op)).Inc()

	order.Fills = append(order.Fills, fill)
	order.FilledQuantity += req.Quantity
	if order.FilledQuantity >= order.TargetQuantity {
		order.Status = model.OrderCompleted
		now := time.Now().UTC()
		order.CompletedAt = &now
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		writeError(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	slog.Info("order fill added",
		"order_id", order.ID,
		"fill_id", fill.ID,
		"qty", fill.Quantity,
		"price", fill.Price.String(),
		"status", order.Status,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "order_filled",
			Game:     order.Game,
			Item:     order.Item,
			Op:       string(order.Side),
			Quantity: fill.Quantity,
			Price:    fill.Price.String(),
			OrderID:  order.ID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(order)
}

// RemoveFill handles DELETE /api/v1/orders/{orderID}/fills/{fillID}
// Removing a fill deletes its synthesized trade and may reactivate a
// completed order.
func (s *Service) RemoveFill(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	fillID := chi.URLParam(r, "fillID")
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, "order not found", http.StatusNotFound)
		return
	}

	idx := -1
	for i, f := range order.Fills {
		if f.ID == fillID {
			idx = i
			break
		}
	}
	if idx == -1 {
		writeError(w, "fill not found", http.StatusNotFound)
		return
	}

	removed := order.Fills[idx]
	if err := s.store.DeleteTradeByFill(ctx, fillID); err != nil {
		writeError(w, "failed to remove synthesized trade", http.StatusInternalServerError)
		return
	}

	order.Fills = append(order.Fills[:idx], order.Fills[idx+1:]...)
	order.FilledQuantity -= removed.Quantity
	if order.Status == model.OrderCompleted && order.FilledQuantity < order.TargetQuantity {
		order.Status = model.OrderActive
		order.CompletedAt = nil
	}
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		writeError(w, "failed to update order", http.StatusInternalServerError)
		return
	}

	slog.Info("order fill removed",
		"order_id", order.ID,
		"fill_id", fillID,
		"qty", removed.Quantity,
		"status", order.Status,
	)

	writeJSON(w, order)
}

// --- Price handlers ---

// GetQuote handles GET /api/v1/prices/quote?game=&item=
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	game, item := r.URL.Query().Get("game"), r.URL.Query().Get("item")
	if game == "" || item == "" {
		writeError(w, "game and item query parameters are required", http.StatusBadRequest)
		return
	}

	writeJSON(w, s.prices.Quote(r.Context(), game, item))
}

// SetManualPrice handles PUT /api/v1/prices/manual
func (s *Service) SetManualPrice(w http.ResponseWriter, r *http.Request) {
	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Game == "" || req.Item == "" {
		writeError(w, "game and item are required", http.StatusBadRequest)
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}

	s.prices.SetManualPrice(r.Context(), req.Game, req.Item, req.Price)

	slog.Info("manual price set", "game", req.Game, "item", req.Item, "price", req.Price.String())

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:   "price_updated",
			Game:   req.Game,
			Item:   req.Item,
			Price:  req.Price.String(),
			Source: prices.SourceManual,
		})
	}

	writeJSON(w, model.PriceQuote{Price: req.Price, Source: prices.SourceManual})
}

// RemoveManualPrice handles DELETE /api/v1/prices/manual?game=&item=
func (s *Service) RemoveManualPrice(w http.ResponseWriter, r *http.Request) {
	game, item := r.URL.Query().Get("game"), r.URL.Query().Get("item")
	if game == "" || item == "" {
		writeError(w, "game and item query parameters are required", http.StatusBadRequest)
		return
	}

	s.prices.RemoveManualPrice(game, item)
	slog.Info("manual price removed", "game", game, "item", item)

	w.WriteHeader(http.StatusNoContent)
}

// GetPriceHistory handles GET /api/v1/prices/history?game=&item=
func (s *Service) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	game, item := r.URL.Query().Get("game"), r.URL.Query().Get("item")
	if game == "" || item == "" {
		writeError(w, "game and item query parameters are required", http.StatusBadRequest)
		return
	}

	points, err := s.prices.History(r.Context(), game, item)
	if err != nil {
		writeError(w, "failed to load price history", http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []model.PricePoint{}
	}

	writeJSON(w, points)
}

// RefreshPrices handles POST /api/v1/prices/refresh
// Fetches fresh web prices for all inventory items without a manual
// override.
func (s *Service) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	positions, err := s.rebuild(ctx)
	if err != nil {
		writeError(w, "failed to rebuild inventory", http.StatusInternalServerError)
		return
	}

	updated := s.prices.RefreshAll(ctx, sortedPositions(positions))
	slog.Info("price refresh finished", "updated", updated, "positions", len(positions))

	writeJSON(w, map[string]int{"updated": updated})
}

// --- Snapshot handlers ---

// SaveSnapshot handles POST /api/v1/snapshot/save
func (s *Service) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.collectSnapshot(ctx)
	if err != nil {
		writeError(w, "failed to collect state", http.StatusInternalServerError)
		return
	}

	if err := snapshot.Save(s.snapshotPath, snap); err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		slog.Error("snapshot save failed", "path", s.snapshotPath, "err", err)
		writeError(w, "failed to save snapshot", http.StatusInternalServerError)
		return
	}
	metrics.SnapshotSaves.WithLabelValues("ok").Inc()

	slog.Info("snapshot saved", "path", s.snapshotPath, "trades", len(snap.Trades))
	writeJSON(w, map[string]any{"saved_at": snap.SavedAt, "trades": len(snap.Trades)})
}

// LoadSnapshot handles POST /api/v1/snapshot/load
// Restoring is only allowed into an empty store: the snapshot is a full
// state, not a delta.
func (s *Service) LoadSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.ListTrades(ctx)
	if err != nil {
		writeError(w, "failed to inspect store", http.StatusInternalServerError)
		return
	}
	if len(existing) > 0 {
		writeError(w, "store is not empty", http.StatusConflict)
		return
	}

	snap, err := snapshot.Load(s.snapshotPath)
	if err != nil {
		writeError(w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}

	if err := s.restore(ctx, snap); err != nil {
		writeError(w, "failed to restore snapshot", http.StatusInternalServerError)
		return
	}

	slog.Info("snapshot restored", "path", s.snapshotPath, "trades", len(snap.Trades))
	writeJSON(w, map[string]any{"saved_at": snap.SavedAt, "trades": len(snap.Trades)})
}

// Restore loads the snapshot file into the store at startup. A missing
// file is not an error.
func (s *Service) Restore(ctx context.Context) error {
	snap, err := snapshot.Load(s.snapshotPath)
	if err != nil {
		return err
	}
	return s.restore(ctx, snap)
}

func (s *Service) restore(ctx context.Context, snap *snapshot.Snapshot) error {
	for i := range snap.Trades {
		if err := s.store.InsertTrade(ctx, &snap.Trades[i]); err != nil {
			return err
		}
	}
	for i := range snap.Orders {
		if err := s.store.InsertOrder(ctx, &snap.Orders[i]); err != nil {
			return err
		}
	}
	for _, p := range snap.PriceHistory {
		if err := s.store.UpsertPricePoint(ctx, p); err != nil {
			return err
		}
	}
	if len(snap.ManualPrices) > 0 {
		s.prices.ImportManual(snap.ManualPrices)
	}
	return nil
}

// collectSnapshot gathers the full tracker state for persistence.
func (s *Service) collectSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	trades, err := s.store.ListTrades(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.store.ListAllPricePoints(ctx)
	if err != nil {
		return nil, err
	}

	return &snapshot.Snapshot{
		Trades:       trades,
		Positions:    sortedPositions(s.rebuildFrom(trades)),
		Orders:       orders,
		PriceHistory: points,
		ManualPrices: s.prices.ExportManual(),
	}, nil
}

// --- Report handlers ---

// ExportSalesReport handles GET /api/v1/reports/sales.xlsx
func (s *Service) ExportSalesReport(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context())
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}

	f, err := report.SalesWorkbook(ledger.Realizations(trades))
	if err != nil {
		writeError(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="sales_analysis.xlsx"`)
	if err := f.Write(w); err != nil {
		slog.Error("report write failed", "err", err)
	}
}

// ExportPortfolioReport handles GET /api/v1/reports/portfolio.xlsx
func (s *Service) ExportPortfolioReport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.portfolioRows(r.Context())
	if err != nil {
		writeError(w, "failed to rebuild inventory", http.StatusInternalServerError)
		return
	}

	f, err := report.PortfolioWorkbook(rows)
	if err != nil {
		writeError(w, "failed to build report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio_analysis.xlsx"`)
	if err := f.Write(w); err != nil {
		slog.Error("report write failed", "err", err)
	}
}

// --- Internal helpers ---

// rebuild reconstructs all positions from the stored trade history.
func (s *Service) rebuild(ctx context.Context) (map[model.Key]model.InventoryPosition, error) {
	trades, err := s.store.ListTrades(ctx)
	if err != nil {
		return nil, err
	}
	return s.rebuildFrom(trades), nil
}

func (s *Service) rebuildFrom(trades []model.TradeRecord) map[model.Key]model.InventoryPosition {
	start := time.Now()
	positions := ledger.Rebuild(trades)
	metrics.RebuildsTotal.Inc()
	metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	return positions
}

// sortedPositions flattens the position map, ordered by game then item.
func sortedPositions(m map[model.Key]model.InventoryPosition) []model.InventoryPosition {
	out := make([]model.InventoryPosition, 0, len(m))
	for _, pos := range m {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Game != out[j].Game {
			return out[i].Game < out[j].Game
		}
		return out[i].Item < out[j].Item
	})
	return out
}

// writeJSON writes a 200 JSON response.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
