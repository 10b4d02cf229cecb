package tracker_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
	"github.com/gavriccccc-tech/skinfolio/internal/prices"
	"github.com/gavriccccc-tech/skinfolio/internal/store"
	"github.com/gavriccccc-tech/skinfolio/internal/tracker"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*store.MemoryStore, *prices.Service, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	ps := prices.NewService(ms, 100)
	svc := tracker.NewService(ms, ps, filepath.Join(t.TempDir(), "inventory.json"), nil)

	r := chi.NewRouter()
	r.Get("/api/v1/trades", svc.ListTrades)
	r.Post("/api/v1/trades", svc.AddTrade)
	r.Delete("/api/v1/trades/{tradeID}", svc.DeleteTrade)
	r.Get("/api/v1/inventory", svc.GetInventory)
	r.Get("/api/v1/inventory/prices", svc.GetInventoryWithPrices)
	r.Get("/api/v1/statistics", svc.GetStatistics)
	r.Get("/api/v1/analysis/sales", svc.GetSalesAnalysis)
	r.Get("/api/v1/analysis/portfolio", svc.GetPortfolioAnalysis)
	r.Post("/api/v1/orders", svc.CreateOrder)
	r.Get("/api/v1/orders/{orderID}", svc.GetOrder)
	r.Delete("/api/v1/orders/{orderID}", svc.DeleteOrder)
	r.Post("/api/v1/orders/{orderID}/cancel", svc.CancelOrder)
	r.Post("/api/v1/orders/{orderID}/fills", svc.AddFill)
	r.Delete("/api/v1/orders/{orderID}/fills/{fillID}", svc.RemoveFill)
	r.Put("/api/v1/prices/manual", svc.SetManualPrice)
	r.Get("/api/v1/prices/quote", svc.GetQuote)
	r.Post("/api/v1/snapshot/save", svc.SaveSnapshot)
	r.Post("/api/v1/snapshot/load", svc.LoadSnapshot)

	return ms, ps, r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func addTrade(t *testing.T, router chi.Router, req tracker.AddTradeRequest) tracker.AddTradeResponse {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/trades", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp tracker.AddTradeResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func day(n int) time.Time {
	return time.Date(2025, 8, n, 12, 0, 0, 0, time.UTC)
}

// --- Trade tests ---

func TestAddTrade_PurchaseCreatesPosition(t *testing.T) {
	_, _, router := newTestEnv(t)

	resp := addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "AK-47 | Redline",
		Op: "purchase", Quantity: 10, Price: d(50),
	})

	if resp.Trade.ID == "" {
		t.Error("expected non-empty trade id")
	}
	if resp.Position.Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", resp.Position.Quantity)
	}
	if !resp.Position.TotalPurchase.Equal(d(500)) {
		t.Errorf("expected total purchase 500, got %s", resp.Position.TotalPurchase)
	}
	if len(resp.Position.Lots) != 1 {
		t.Errorf("expected 1 lot, got %d", len(resp.Position.Lots))
	}
}

func TestAddTrade_SaleNormalizesNegativeQuantity(t *testing.T) {
	_, _, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "x", Op: "purchase", Quantity: 10, Price: d(50),
	})
	resp := addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(2), Game: "CS2", Item: "x", Op: "sale", Quantity: -4, Price: d(80),
	})

	if resp.Trade.Quantity != 4 {
		t.Errorf("expected stored magnitude 4, got %d", resp.Trade.Quantity)
	}
	if resp.Position.Quantity != 6 {
		t.Errorf("expected remaining 6, got %d", resp.Position.Quantity)
	}
	if !resp.Position.TotalSale.Equal(d(320)) {
		t.Errorf("expected total sale 320, got %s", resp.Position.TotalSale)
	}
}

func TestAddTrade_Validation(t *testing.T) {
	_, _, router := newTestEnv(t)

	cases := []struct {
		name string
		req  tracker.AddTradeRequest
	}{
		{"unknown op", tracker.AddTradeRequest{Game: "CS2", Item: "x", Op: "borrow", Quantity: 1, Price: d(1)}},
		{"zero quantity", tracker.AddTradeRequest{Game: "CS2", Item: "x", Op: "purchase", Quantity: 0, Price: d(1)}},
		{"negative purchase", tracker.AddTradeRequest{Game: "CS2", Item: "x", Op: "purchase", Quantity: -1, Price: d(1)}},
		{"negative price", tracker.AddTradeRequest{Game: "CS2", Item: "x", Op: "purchase", Quantity: 1, Price: d(-1)}},
		{"missing item", tracker.AddTradeRequest{Game: "CS2", Op: "purchase", Quantity: 1, Price: d(1)}},
	}
	for _, tc := range cases {
		w := doJSON(t, router, "POST", "/api/v1/trades", tc.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestDeleteTrade_RebuildLeavesNoResidue(t *testing.T) {
	_, _, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "x", Op: "purchase", Quantity: 5, Price: d(10),
	})
	sale := addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(2), Game: "CS2", Item: "x", Op: "sale", Quantity: 5, Price: d(20),
	})

	w := doJSON(t, router, "DELETE", "/api/v1/trades/"+sale.Trade.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/inventory", nil)
	var positions []model.InventoryPosition
	json.Unmarshal(w.Body.Bytes(), &positions)
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	if positions[0].Quantity != 5 || !positions[0].TotalSale.IsZero() {
		t.Errorf("expected sale fully undone, got %+v", positions[0])
	}

	w = doJSON(t, router, "DELETE", "/api/v1/trades/absent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown trade, got %d", w.Code)
	}
}

// --- Inventory and analysis tests ---

func TestGetInventoryWithPrices(t *testing.T) {
	_, _, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "x", Op: "purchase", Quantity: 2, Price: d(100),
	})

	w := doJSON(t, router, "PUT", "/api/v1/prices/manual", tracker.SetPriceRequest{
		Game: "CS2", Item: "x", Price: d(200),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set price: expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/inventory/prices", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rows []tracker.PricedPosition
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].PriceSource != prices.SourceManual || !rows[0].CurrentPrice.Equal(d(200)) {
		t.Errorf("unexpected price annotation: %+v", rows[0])
	}
	// Net 200×0.87 = 174, avg 100, profit (174−100)×2 = 148.
	if !rows[0].Valuation.PotentialProfit.Equal(d(148)) {
		t.Errorf("expected potential profit 148, got %s", rows[0].Valuation.PotentialProfit)
	}
}

func TestGetInventoryWithPrices_MissingPriceSentinel(t *testing.T) {
	_, _, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "unpriced", Op: "purchase", Quantity: 1, Price: d(10),
	})

	w := doJSON(t, router, "GET", "/api/v1/inventory/prices", nil)
	var rows []tracker.PricedPosition
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].PriceSource != model.PriceSourceNone || !rows[0].CurrentPrice.IsZero() {
		t.Errorf("expected missing-price sentinel, got %+v", rows[0])
	}
}

func TestSalesAnalysis_CommissionMath(t *testing.T) {
	_, _, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "x", Op: "purchase", Quantity: 10, Price: d(50),
	})
	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(2), Game: "CS2", Item: "x", Op: "sale", Quantity: 4, Price: d(100),
	})

	w := doJSON(t, router, "GET", "/api/v1/analysis/sales", nil)
	var realizations []model.SaleRealization
	json.Unmarshal(w.Body.Bytes(), &realizations)
	if len(realizations) != 1 {
		t.Fatalf("expected 1 realization, got %d", len(realizations))
	}
	r := realizations[0]
	if !r.Gross.Equal(d(400)) || !r.Commission.Equal(d(52)) || !r.Net.Equal(d(348)) {
		t.Errorf("commission math wrong: gross %s commission %s net %s", r.Gross, r.Commission, r.Net)
	}
	if !r.PurchaseCost.Equal(d(200)) || !r.Profit.Equal(d(148)) {
		t.Errorf("profit wrong: cost %s profit %s", r.PurchaseCost, r.Profit)
	}
}

func TestPortfolioAnalysis_SkipsUnpricedSortsByProfit(t *testing.T) {
	_, _, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "winner", Op: "purchase", Quantity: 1, Price: d(10),
	})
	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "loser", Op: "purchase", Quantity: 1, Price: d(100),
	})
	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "unpriced", Op: "purchase", Quantity: 1, Price: d(5),
	})

	doJSON(t, router, "PUT", "/api/v1/prices/manual", tracker.SetPriceRequest{Game: "CS2", Item: "winner", Price: d(100)})
	doJSON(t, router, "PUT", "/api/v1/prices/manual", tracker.SetPriceRequest{Game: "CS2", Item: "loser", Price: d(50)})

	w := doJSON(t, router, "GET", "/api/v1/analysis/portfolio", nil)
	var rows []model.LotAnalysis
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (unpriced skipped), got %d", len(rows))
	}
	if rows[0].Item != "winner" || rows[1].Item != "loser" {
		t.Errorf("expected profit-descending order, got %s then %s", rows[0].Item, rows[1].Item)
	}
	// winner: net 87, profit 77. loser: net 43.5, profit −56.5.
	if !rows[0].Profit.Equal(d(77)) {
		t.Errorf("expected winner profit 77, got %s", rows[0].Profit)
	}
	if !rows[1].Profit.Equal(d(-56.5)) {
		t.Errorf("expected loser profit -56.5, got %s", rows[1].Profit)
	}
}

func TestStatistics(t *testing.T) {
	_, _, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "x", Op: "purchase", Quantity: 2, Price: d(100),
	})
	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(2), Game: "CS2", Item: "x", Op: "sale", Quantity: 1, Price: d(230),
	})

	w := doJSON(t, router, "GET", "/api/v1/statistics", nil)
	var stats model.Statistics
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.TotalTrades != 2 || stats.ItemsInStock != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if !stats.TotalPurchase.Equal(d(200)) || !stats.TotalProfit.Equal(d(30)) {
		t.Errorf("unexpected aggregates: purchase %s profit %s", stats.TotalPurchase, stats.TotalProfit)
	}
	if !stats.ROIPercent.Equal(d(15)) {
		t.Errorf("expected ROI 15, got %s", stats.ROIPercent)
	}
}

// --- Order tests ---

func createOrder(t *testing.T, router chi.Router, req tracker.CreateOrderRequest) model.Order {
	t.Helper()
	w := doJSON(t, router, "POST", "/api/v1/orders", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var order model.Order
	json.Unmarshal(w.Body.Bytes(), &order)
	return order
}

func TestOrderFill_SynthesizesTradeAndCompletes(t *testing.T) {
	_, _, router := newTestEnv(t)

	order := createOrder(t, router, tracker.CreateOrderRequest{
		Game: "CS2", Item: "x", Side: "purchase", TargetPrice: d(50), TargetQuantity: 5,
	})

	w := doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/fills", tracker.AddFillRequest{
		FilledAt: day(1), Quantity: 3, Price: d(48),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var updated model.Order
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Status != model.OrderActive || updated.FilledQuantity != 3 {
		t.Errorf("expected active with 3 filled, got %+v", updated)
	}

	w = doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/fills", tracker.AddFillRequest{
		FilledAt: day(2), Quantity: 2, Price: d(52),
	})
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Status != model.OrderCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("expected completed_at set")
	}

	// Fills landed in the ledger as purchase records.
	w = doJSON(t, router, "GET", "/api/v1/inventory", nil)
	var positions []model.InventoryPosition
	json.Unmarshal(w.Body.Bytes(), &positions)
	if len(positions) != 1 || positions[0].Quantity != 5 {
		t.Fatalf("expected position with quantity 5, got %+v", positions)
	}
	// 3×48 + 2×52 = 248.
	if !positions[0].TotalPurchase.Equal(d(248)) {
		t.Errorf("expected total purchase 248, got %s", positions[0].TotalPurchase)
	}
}

func TestOrderFill_OverfillRejected(t *testing.T) {
	_, _, router := newTestEnv(t)

	order := createOrder(t, router, tracker.CreateOrderRequest{
		Game: "CS2", Item: "x", Side: "purchase", TargetPrice: d(50), TargetQuantity: 2,
	})

	w := doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/fills", tracker.AddFillRequest{
		Quantity: 3, Price: d(48),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for overfill, got %d", w.Code)
	}
}

func TestRemoveFill_ReactivatesOrderAndUndoesTrade(t *testing.T) {
	_, _, router := newTestEnv(t)

	order := createOrder(t, router, tracker.CreateOrderRequest{
		Game: "CS2", Item: "x", Side: "purchase", TargetPrice: d(50), TargetQuantity: 1,
	})
	w := doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/fills", tracker.AddFillRequest{
		FilledAt: day(1), Quantity: 1, Price: d(50),
	})
	var filled model.Order
	json.Unmarshal(w.Body.Bytes(), &filled)
	if filled.Status != model.OrderCompleted {
		t.Fatalf("expected completed, got %s", filled.Status)
	}

	w = doJSON(t, router, "DELETE", "/api/v1/orders/"+order.ID+"/fills/"+filled.Fills[0].ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var reverted model.Order
	json.Unmarshal(w.Body.Bytes(), &reverted)
	if reverted.Status != model.OrderActive || reverted.FilledQuantity != 0 {
		t.Errorf("expected reactivated empty order, got %+v", reverted)
	}
	if reverted.CompletedAt != nil {
		t.Error("expected completed_at cleared")
	}

	// History is as if the fill never happened.
	w = doJSON(t, router, "GET", "/api/v1/trades", nil)
	var trades []model.TradeRecord
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 0 {
		t.Errorf("expected no trades after fill removal, got %d", len(trades))
	}
}

func TestDeleteOrder_RemovesSynthesizedTrades(t *testing.T) {
	_, _, router := newTestEnv(t)

	order := createOrder(t, router, tracker.CreateOrderRequest{
		Game: "CS2", Item: "x", Side: "sale", TargetPrice: d(80), TargetQuantity: 2,
	})
	doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/fills", tracker.AddFillRequest{
		FilledAt: day(1), Quantity: 2, Price: d(80),
	})

	w := doJSON(t, router, "DELETE", "/api/v1/orders/"+order.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = doJSON(t, router, "GET", "/api/v1/trades", nil)
	var trades []model.TradeRecord
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades) != 0 {
		t.Errorf("expected synthesized trades removed, got %d", len(trades))
	}
	w = doJSON(t, router, "GET", "/api/v1/orders/"+order.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
}

func TestCancelOrder_RejectsFurtherFills(t *testing.T) {
	_, _, router := newTestEnv(t)

	order := createOrder(t, router, tracker.CreateOrderRequest{
		Game: "CS2", Item: "x", Side: "purchase", TargetPrice: d(50), TargetQuantity: 5,
	})

	w := doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/fills", tracker.AddFillRequest{
		Quantity: 1, Price: d(50),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for fill on cancelled order, got %d", w.Code)
	}

	w = doJSON(t, router, "POST", "/api/v1/orders/"+order.ID+"/cancel", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for double cancel, got %d", w.Code)
	}
}

// --- Snapshot tests ---

func TestSnapshotSaveLoadRoundTrip(t *testing.T) {
	ms, ps, router := newTestEnv(t)

	addTrade(t, router, tracker.AddTradeRequest{
		Timestamp: day(1), Game: "CS2", Item: "x", Op: "purchase", Quantity: 3, Price: d(10),
	})
	ps.SetManualPrice(context.Background(), "CS2", "x", d(25))

	w := doJSON(t, router, "POST", "/api/v1/snapshot/save", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Loading into a non-empty store is refused.
	w = doJSON(t, router, "POST", "/api/v1/snapshot/load", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 loading into non-empty store, got %d", w.Code)
	}

	// Simulate a restart: empty store, same snapshot path.
	trades, _ := ms.ListTrades(context.Background())
	for _, tr := range trades {
		ms.DeleteTrade(context.Background(), tr.ID)
	}
	w = doJSON(t, router, "POST", "/api/v1/snapshot/load", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("load: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, "GET", "/api/v1/inventory", nil)
	var positions []model.InventoryPosition
	json.Unmarshal(w.Body.Bytes(), &positions)
	if len(positions) != 1 || positions[0].Quantity != 3 {
		t.Fatalf("expected restored position, got %+v", positions)
	}
}
