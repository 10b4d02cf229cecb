package prices_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
	"github.com/gavriccccc-tech/skinfolio/internal/prices"
	"github.com/gavriccccc-tech/skinfolio/internal/store"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestParsePriceText(t *testing.T) {
	cases := []struct {
		in   string
		want decimal.Decimal
	}{
		{"123,45 руб.", d(123.45)},
		{"1.200,67 руб.", d(1200.67)},
		{"5 руб.", d(5)},
		{"$12.34", d(12.34)},
		{"€7,50", d(7.5)},
		{"12,34 RUB", d(12.34)},
		{"", decimal.Zero},
		{"garbage", decimal.Zero},
	}
	for _, tc := range cases {
		got := prices.ParsePriceText(tc.in)
		if !got.Equal(tc.want) {
			t.Errorf("ParsePriceText(%q) = %s, expected %s", tc.in, got, tc.want)
		}
	}
}

func TestQuoteMissingPriceSentinel(t *testing.T) {
	svc := prices.NewService(store.NewMemoryStore(), 10)

	q := svc.Quote(context.Background(), "CS2", "AK-47 | Redline")
	if !q.None() {
		t.Fatalf("expected missing-price sentinel, got %+v", q)
	}
	if !q.Price.IsZero() {
		t.Errorf("sentinel price must be zero, got %s", q.Price)
	}
}

func TestManualPriceBeatsWebPrice(t *testing.T) {
	srv := marketServer(t, `{"success":true,"lowest_price":"100,00 руб."}`)
	defer srv.Close()

	st := store.NewMemoryStore()
	svc := prices.NewService(st, 100)
	svc.MarketURL = srv.URL
	ctx := context.Background()

	if _, err := svc.FetchWeb(ctx, "CS2", "AK-47 | Redline"); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	q := svc.Quote(ctx, "CS2", "AK-47 | Redline")
	if q.Source != prices.SourceWeb || !q.Price.Equal(d(100)) {
		t.Fatalf("expected web price 100, got %+v", q)
	}

	svc.SetManualPrice(ctx, "CS2", "AK-47 | Redline", d(150))
	q = svc.Quote(ctx, "CS2", "AK-47 | Redline")
	if q.Source != prices.SourceManual || !q.Price.Equal(d(150)) {
		t.Fatalf("expected manual price 150, got %+v", q)
	}

	// Removing the override re-exposes the cached web price.
	svc.RemoveManualPrice("CS2", "AK-47 | Redline")
	q = svc.Quote(ctx, "CS2", "AK-47 | Redline")
	if q.Source != prices.SourceWeb || !q.Price.Equal(d(100)) {
		t.Fatalf("expected web price after override removal, got %+v", q)
	}
}

func TestQuoteLeavesHistoryUntouched(t *testing.T) {
	st := store.NewMemoryStore()
	svc := prices.NewService(st, 100)
	ctx := context.Background()

	svc.SetManualPrice(ctx, "CS2", "x", d(10))

	for i := 0; i < 3; i++ {
		if q := svc.Quote(ctx, "CS2", "x"); !q.Price.Equal(d(10)) {
			t.Fatalf("expected manual price 10, got %+v", q)
		}
	}

	// Only the SetManualPrice call writes a history point. Lookups are
	// pure reads.
	points, err := st.ListPricePoints(ctx, "CS2", "x")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("expected 1 history point, got %d", len(points))
	}
}

func TestFetchWebRecordsHistory(t *testing.T) {
	srv := marketServer(t, `{"success":true,"lowest_price":"1.250,50 руб."}`)
	defer srv.Close()

	st := store.NewMemoryStore()
	svc := prices.NewService(st, 100)
	svc.MarketURL = srv.URL

	price, err := svc.FetchWeb(context.Background(), "Dota 2", "Dragonclaw Hook")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !price.Equal(d(1250.5)) {
		t.Fatalf("expected 1250.5, got %s", price)
	}

	points, _ := st.ListPricePoints(context.Background(), "Dota 2", "Dragonclaw Hook")
	if len(points) != 1 {
		t.Fatalf("expected 1 history point, got %d", len(points))
	}
	if points[0].Source != prices.SourceWeb || !points[0].Price.Equal(d(1250.5)) {
		t.Errorf("unexpected history point: %+v", points[0])
	}
}

func TestFetchWebUnsupportedGame(t *testing.T) {
	svc := prices.NewService(store.NewMemoryStore(), 100)
	svc.MarketURL = "http://127.0.0.1:0" // must never be contacted

	price, err := svc.FetchWeb(context.Background(), "Escape from Tarkov", "Labs Keycard")
	if err != nil {
		t.Fatalf("unsupported game should not error: %v", err)
	}
	if !price.IsZero() {
		t.Errorf("expected zero price, got %s", price)
	}
}

func TestFetchWebUnsuccessfulResponse(t *testing.T) {
	srv := marketServer(t, `{"success":false}`)
	defer srv.Close()

	svc := prices.NewService(store.NewMemoryStore(), 100)
	svc.MarketURL = srv.URL

	price, err := svc.FetchWeb(context.Background(), "CS2", "AK-47 | Redline")
	if err != nil {
		t.Fatalf("unsuccessful lookup should not error: %v", err)
	}
	if !price.IsZero() {
		t.Errorf("expected zero price, got %s", price)
	}
}

func TestRefreshAllSkipsManuallyPriced(t *testing.T) {
	var fetched []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = append(fetched, r.URL.Query().Get("market_hash_name"))
		w.Write([]byte(`{"success":true,"lowest_price":"10,00 руб."}`))
	}))
	defer srv.Close()

	svc := prices.NewService(store.NewMemoryStore(), 100)
	svc.MarketURL = srv.URL
	ctx := context.Background()

	svc.SetManualPrice(ctx, "CS2", "manual-item", d(99))

	positions := []model.InventoryPosition{
		{Game: "CS2", Item: "manual-item"},
		{Game: "CS2", Item: "web-item"},
		{Game: "Escape from Tarkov", Item: "no-market-item"},
	}
	updated := svc.RefreshAll(ctx, positions)
	if updated != 1 {
		t.Fatalf("expected 1 updated item, got %d", updated)
	}
	if len(fetched) != 1 || fetched[0] != "web-item" {
		t.Errorf("expected only web-item fetched, got %v", fetched)
	}
}

func TestYesterdayPrice(t *testing.T) {
	st := store.NewMemoryStore()
	svc := prices.NewService(st, 100)
	ctx := context.Background()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	st.UpsertPricePoint(ctx, model.PricePoint{
		Game: "CS2", Item: "x", Price: d(42), Source: prices.SourceManual, Observed: yesterday,
	})
	st.UpsertPricePoint(ctx, model.PricePoint{
		Game: "CS2", Item: "x", Price: d(50), Source: prices.SourceManual, Observed: time.Now().UTC(),
	})

	got := svc.YesterdayPrice(ctx, "CS2", "x")
	if !got.Equal(d(42)) {
		t.Errorf("expected yesterday price 42, got %s", got)
	}

	if p := svc.YesterdayPrice(ctx, "CS2", "never-priced"); !p.IsZero() {
		t.Errorf("expected zero for unknown item, got %s", p)
	}
}

func TestManualExportImport(t *testing.T) {
	svc := prices.NewService(store.NewMemoryStore(), 100)
	ctx := context.Background()

	svc.SetManualPrice(ctx, "CS2", "a", d(10))
	svc.SetManualPrice(ctx, "Dota 2", "b", d(20))

	exported := svc.ExportManual()
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported overrides, got %d", len(exported))
	}

	restored := prices.NewService(store.NewMemoryStore(), 100)
	restored.ImportManual(exported)
	if p, ok := restored.ManualPrice("CS2", "a"); !ok || !p.Equal(d(10)) {
		t.Errorf("override not restored: %s %v", p, ok)
	}
}

func marketServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/priceoverview/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(body))
	}))
}
