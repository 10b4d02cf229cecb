package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/ledger"
	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

func position(lots ...model.Lot) model.InventoryPosition {
	pos := model.InventoryPosition{
		Game:          "Counter-Strike 2",
		Item:          "AK-47 | Redline",
		TotalPurchase: decimal.Zero,
		TotalSale:     decimal.Zero,
		Lots:          lots,
	}
	for _, l := range lots {
		pos.Quantity += l.Remaining
		if l.Price.IsPositive() {
			pos.TotalPurchase = pos.TotalPurchase.Add(l.Total())
		}
	}
	return pos
}

func TestValue_AverageCostExcludesGiftLots(t *testing.T) {
	pos := position(
		model.Lot{ID: "a", AcquiredAt: day(1), Remaining: 2, Price: d(100)},
		model.Lot{ID: "g", AcquiredAt: day(2), Remaining: 2, Price: decimal.Zero},
	)

	v := ledger.Value(pos, d(200))

	// Average over priced lots only: 200/2 = 100 — the gift's quantity
	// is excluded from the average but still counts in position size.
	if !v.AverageCost.Equal(d(100)) {
		t.Errorf("expected average cost 100, got %s", v.AverageCost)
	}
	if !v.NetPrice.Equal(d(174)) {
		t.Errorf("expected net price 200×0.87 = 174, got %s", v.NetPrice)
	}
	// (174 − 100) × 4 = 296: the gifted units count their full net price.
	if !v.PotentialProfit.Equal(d(296)) {
		t.Errorf("expected potential profit 296, got %s", v.PotentialProfit)
	}
}

func TestValue_EmptyPositionHasZeroProfit(t *testing.T) {
	v := ledger.Value(position(), d(500))
	if !v.PotentialProfit.IsZero() {
		t.Errorf("empty position must value to zero, got %s", v.PotentialProfit)
	}
}

func TestValue_GiftOnlyPosition(t *testing.T) {
	pos := position(model.Lot{ID: "g", AcquiredAt: day(1), Remaining: 1, Price: decimal.Zero})

	v := ledger.Value(pos, d(100))
	if !v.AverageCost.IsZero() {
		t.Errorf("gift-only position has zero average cost, got %s", v.AverageCost)
	}
	if !v.PotentialProfit.Equal(d(87)) {
		t.Errorf("full net price counts as profit for gifted stock, got %s", v.PotentialProfit)
	}
}

func TestRecommend_AbsoluteBuckets(t *testing.T) {
	cases := []struct {
		profit float64
		want   string
	}{
		{150, ledger.RecommendHighProfit},
		{100, ledger.RecommendProfit},
		{0.5, ledger.RecommendProfit},
		{0, ledger.RecommendNeutral},
		{-50, ledger.RecommendNeutral},
		{-51, ledger.RecommendLoss},
	}
	for _, c := range cases {
		if got := ledger.Recommend(d(c.profit)); got != c.want {
			t.Errorf("Recommend(%v) = %q, want %q", c.profit, got, c.want)
		}
	}
}

func TestRecommendPercent_Buckets(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{60, ledger.RecommendHighProfit},
		{30, ledger.RecommendGoodProfit},
		{10, ledger.RecommendProfit},
		{0, ledger.RecommendNeutral},
		{-10, ledger.RecommendSmallLoss},
		{-30, ledger.RecommendLargeLoss},
	}
	for _, c := range cases {
		if got := ledger.RecommendPercent(d(c.pct)); got != c.want {
			t.Errorf("RecommendPercent(%v) = %q, want %q", c.pct, got, c.want)
		}
	}
}

func TestDelta_DayOverDay(t *testing.T) {
	delta := ledger.Delta(d(110), d(100))
	if !delta.Change.Equal(d(10)) || !delta.ChangePercent.Equal(d(10)) {
		t.Errorf("expected +10 / +10%%, got %s / %s", delta.Change, delta.ChangePercent)
	}

	delta = ledger.Delta(d(110), decimal.Zero)
	if !delta.Change.Equal(d(110)) || !delta.ChangePercent.IsZero() {
		t.Errorf("missing yesterday price must zero the percent, got %s", delta.ChangePercent)
	}
}

func TestAnalyzeLot_CommissionMath(t *testing.T) {
	lot := model.Lot{ID: "a", AcquiredAt: day(1), Remaining: 5, Price: d(50)}

	a := ledger.AnalyzeLot("Counter-Strike 2", "AK-47 | Redline", lot, d(80), d(75))

	if !a.GrossSale.Equal(d(400)) || !a.Commission.Equal(d(52)) || !a.NetSale.Equal(d(348)) {
		t.Errorf("unexpected sale math: gross %s commission %s net %s",
			a.GrossSale, a.Commission, a.NetSale)
	}
	if !a.Profit.Equal(d(98)) {
		t.Errorf("expected profit 98, got %s", a.Profit)
	}
	if !a.ProfitPercent.Equal(d(39.2)) {
		t.Errorf("expected 39.2%%, got %s", a.ProfitPercent)
	}
	if a.Recommendation != ledger.RecommendGoodProfit {
		t.Errorf("39.2%% should bucket as good profit, got %q", a.Recommendation)
	}
	if !a.PriceChange.Equal(d(5)) {
		t.Errorf("expected price change +5, got %s", a.PriceChange)
	}
}

func TestSummarize(t *testing.T) {
	positions := map[model.Key]model.InventoryPosition{
		{Game: "g", Item: "a"}: {
			Quantity:      3,
			TotalPurchase: d(100),
			TotalSale:     d(150),
		},
		{Game: "g", Item: "b"}: {
			Quantity:      0,
			TotalPurchase: d(100),
			TotalSale:     d(80),
		},
	}

	stats := ledger.Summarize(7, positions)
	if stats.TotalTrades != 7 {
		t.Errorf("expected 7 trades, got %d", stats.TotalTrades)
	}
	if stats.ItemsInStock != 1 {
		t.Errorf("only positions with stock count, got %d", stats.ItemsInStock)
	}
	if !stats.TotalProfit.Equal(d(30)) {
		t.Errorf("expected total profit 50-20 = 30, got %s", stats.TotalProfit)
	}
	if !stats.ROIPercent.Equal(d(15)) {
		t.Errorf("expected ROI 30/200 = 15%%, got %s", stats.ROIPercent)
	}
}
