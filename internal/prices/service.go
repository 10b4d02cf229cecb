// Package prices resolves current and historical item prices. Resolution
// order is fixed: a manual override always wins, then a cached Steam
// Community Market web price no older than 24 hours, then the missing
// price sentinel. A missing price is never an error.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/gavriccccc-tech/skinfolio/internal/metrics"
	"github.com/gavriccccc-tech/skinfolio/internal/model"
	"github.com/gavriccccc-tech/skinfolio/internal/store"
)

// Price sources recorded into the history.
const (
	SourceManual = "manual"
	SourceWeb    = "steam_web"
)

// DefaultMarketURL is the Steam Community Market host.
const DefaultMarketURL = "https://steamcommunity.com"

const webPriceTTL = 24 * time.Hour

// appIDs maps supported game names to their Steam app IDs. Games not
// listed have no Steam market and are skipped by the web fetcher.
var appIDs = map[string]string{
	"Counter-Strike 2":    "730",
	"CS2":                 "730",
	"Dota 2":              "570",
	"PUBG: BATTLEGROUNDS": "578080",
	"Rust":                "252490",
	"Team Fortress 2":     "440",
	"Apex Legends":        "1172470",
}

// Service answers price lookups against manual overrides, a TTL cache of
// web prices, and the persisted price history.
type Service struct {
	// MarketURL is the base URL for priceoverview requests. Tests point
	// it at a local server.
	MarketURL string

	store   store.Store
	client  *resty.Client
	limiter *rate.Limiter

	web *gocache.Cache

	mu     sync.RWMutex
	manual map[string]decimal.Decimal
}

// NewService creates a price service. fetchRPS bounds the rate of
// outbound Steam requests.
func NewService(st store.Store, fetchRPS float64) *Service {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	if fetchRPS <= 0 {
		fetchRPS = 1
	}

	return &Service{
		MarketURL: DefaultMarketURL,
		store:     st,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(fetchRPS), 1),
		web:       gocache.New(webPriceTTL, 2*webPriceTTL),
		manual:    make(map[string]decimal.Decimal),
	}
}

func priceKey(game, item string) string { return game + "|" + item }

// Quote resolves the current price for an item. It is a pure read:
// history entries are written when a price is set or fetched, never on
// lookup.
func (s *Service) Quote(ctx context.Context, game, item string) model.PriceQuote {
	key := priceKey(game, item)

	s.mu.RLock()
	manual, ok := s.manual[key]
	s.mu.RUnlock()
	if ok {
		return model.PriceQuote{Price: manual, Source: SourceManual}
	}

	if v, ok := s.web.Get(key); ok {
		return model.PriceQuote{Price: v.(decimal.Decimal), Source: SourceWeb}
	}

	return model.PriceQuote{Source: model.PriceSourceNone}
}

// SetManualPrice installs a manual override for an item. Overrides beat
// every other source until removed.
func (s *Service) SetManualPrice(ctx context.Context, game, item string, price decimal.Decimal) {
	s.mu.Lock()
	s.manual[priceKey(game, item)] = price
	s.mu.Unlock()

	s.record(ctx, game, item, price, SourceManual)
}

// ManualPrice returns the manual override for an item, if any.
func (s *Service) ManualPrice(game, item string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.manual[priceKey(game, item)]
	return p, ok
}

// RemoveManualPrice deletes a manual override. The cached web price, if
// still fresh, becomes visible again.
func (s *Service) RemoveManualPrice(game, item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.manual, priceKey(game, item))
}

// ExportManual returns a copy of all manual overrides, keyed game|item.
func (s *Service) ExportManual() map[string]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(s.manual))
	for k, v := range s.manual {
		out[k] = v
	}
	return out
}

// ImportManual replaces all manual overrides, used when restoring a
// snapshot.
func (s *Service) ImportManual(m map[string]decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manual = make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		s.manual[k] = v
	}
}

// priceOverview is the Steam priceoverview response shape.
type priceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
}

// FetchWeb requests the current lowest market price from Steam, caches
// it and records it into the history. Games without a Steam market and
// lookups that yield no price return the zero decimal with a nil error.
func (s *Service) FetchWeb(ctx context.Context, game, item string) (decimal.Decimal, error) {
	appID, ok := appIDs[game]
	if !ok {
		return decimal.Zero, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"appid":            appID,
			"currency":         "5",
			"market_hash_name": item,
		}).
		Get(s.MarketURL + "/market/priceoverview/")
	if err != nil {
		metrics.PriceFetches.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("fetch price for %s: %w", item, err)
	}
	if resp.IsError() {
		metrics.PriceFetches.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("fetch price for %s: status %d", item, resp.StatusCode())
	}

	var overview priceOverview
	if err := json.Unmarshal(resp.Body(), &overview); err != nil {
		metrics.PriceFetches.WithLabelValues("error").Inc()
		return decimal.Zero, fmt.Errorf("parse price response for %s: %w", item, err)
	}
	if !overview.Success || overview.LowestPrice == "" {
		metrics.PriceFetches.WithLabelValues("miss").Inc()
		return decimal.Zero, nil
	}

	price := ParsePriceText(overview.LowestPrice)
	if !price.IsPositive() {
		metrics.PriceFetches.WithLabelValues("miss").Inc()
		return decimal.Zero, nil
	}
	metrics.PriceFetches.WithLabelValues("ok").Inc()

	s.web.Set(priceKey(game, item), price, gocache.DefaultExpiration)
	s.record(ctx, game, item, price, SourceWeb)
	return price, nil
}

// RefreshAll fetches web prices for every position that has no manual
// override. Individual fetch failures are logged and skipped; the count
// of updated items is returned.
func (s *Service) RefreshAll(ctx context.Context, positions []model.InventoryPosition) int {
	updated := 0
	for _, pos := range positions {
		if _, ok := s.ManualPrice(pos.Game, pos.Item); ok {
			continue
		}
		price, err := s.FetchWeb(ctx, pos.Game, pos.Item)
		if err != nil {
			slog.Warn("price refresh failed", "game", pos.Game, "item", pos.Item, "error", err)
			continue
		}
		if price.IsPositive() {
			updated++
		}
	}
	return updated
}

// YesterdayPrice returns the recorded price for the previous calendar
// day (UTC), zero when none was recorded.
func (s *Service) YesterdayPrice(ctx context.Context, game, item string) decimal.Decimal {
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
	return s.PriceForDate(ctx, game, item, yesterday)
}

// PriceForDate returns the recorded price for a calendar day (UTC),
// zero when none was recorded.
func (s *Service) PriceForDate(ctx context.Context, game, item string, date time.Time) decimal.Decimal {
	points, err := s.store.ListPricePoints(ctx, game, item)
	if err != nil {
		slog.Warn("price history lookup failed", "game", game, "item", item, "error", err)
		return decimal.Zero
	}

	day := date.UTC().Truncate(24 * time.Hour)
	for _, p := range points {
		if p.Observed.UTC().Truncate(24 * time.Hour).Equal(day) {
			return p.Price
		}
	}
	return decimal.Zero
}

// History returns the recorded price points for an item, newest first.
func (s *Service) History(ctx context.Context, game, item string) ([]model.PricePoint, error) {
	return s.store.ListPricePoints(ctx, game, item)
}

// record upserts the day's history entry for a resolved price.
func (s *Service) record(ctx context.Context, game, item string, price decimal.Decimal, source string) {
	if !price.IsPositive() {
		return
	}
	err := s.store.UpsertPricePoint(ctx, model.PricePoint{
		Game:     game,
		Item:     item,
		Price:    price,
		Source:   source,
		Observed: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("price history write failed", "game", game, "item", item, "error", err)
	}
}

// ParsePriceText extracts a decimal amount from a Steam price string
// such as "123,45 руб.", "1.200,67 руб." or "$12.34". When a comma is
// present it is the decimal separator and dots are thousands separators;
// otherwise a dot is the decimal separator.
func ParsePriceText(text string) decimal.Decimal {
	clean := text
	for _, junk := range []string{" руб.", " pуб.", " RUB", "$", "€", " ", " "} {
		clean = strings.ReplaceAll(clean, junk, "")
	}
	if clean == "" {
		return decimal.Zero
	}

	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	}

	price, err := decimal.NewFromString(clean)
	if err != nil || price.IsNegative() {
		return decimal.Zero
	}
	return price
}
