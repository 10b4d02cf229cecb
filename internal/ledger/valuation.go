package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// Absolute-currency recommendation buckets for position valuation.
const (
	RecommendHighProfit = "high profit"
	RecommendProfit     = "profit"
	RecommendLoss       = "loss"
	RecommendNeutral    = "neutral"
)

// Percentage-based recommendation buckets for per-lot analysis.
const (
	RecommendGoodProfit = "good profit"
	RecommendSmallLoss  = "small loss"
	RecommendLargeLoss  = "large loss"
)

// Value computes the unrealized-profit view of a position against a
// current market price.
//
// The average acquisition price covers priced lots only: gifted stock
// contributes zero cost but its quantity still counts toward the
// position size, so gifted items look "free" in profit math. That skew
// is intentional.
func Value(pos model.InventoryPosition, currentPrice decimal.Decimal) model.Valuation {
	pricedValue := decimal.Zero
	var pricedQty int64
	for _, lot := range pos.Lots {
		if lot.Price.IsPositive() {
			pricedValue = pricedValue.Add(lot.Total())
			pricedQty += lot.Remaining
		}
	}

	avg := decimal.Zero
	if pricedQty > 0 {
		avg = pricedValue.Div(decimal.NewFromInt(pricedQty))
	}

	net := currentPrice.Mul(decimal.NewFromInt(1).Sub(CommissionRate))

	profit := decimal.Zero
	if pos.Quantity > 0 {
		profit = net.Sub(avg).Mul(decimal.NewFromInt(pos.Quantity))
	}

	return model.Valuation{
		AverageCost:     avg,
		NetPrice:        net,
		PotentialProfit: profit,
		Recommendation:  Recommend(profit),
	}
}

// Recommend buckets a potential profit by absolute currency thresholds.
func Recommend(profit decimal.Decimal) string {
	switch {
	case profit.GreaterThan(decimal.NewFromInt(100)):
		return RecommendHighProfit
	case profit.IsPositive():
		return RecommendProfit
	case profit.LessThan(decimal.NewFromInt(-50)):
		return RecommendLoss
	default:
		return RecommendNeutral
	}
}

// RecommendPercent buckets a profit percentage for per-lot analysis.
func RecommendPercent(pct decimal.Decimal) string {
	switch {
	case pct.GreaterThan(decimal.NewFromInt(50)):
		return RecommendHighProfit
	case pct.GreaterThan(decimal.NewFromInt(20)):
		return RecommendGoodProfit
	case pct.GreaterThan(decimal.NewFromInt(5)):
		return RecommendProfit
	case pct.GreaterThan(decimal.NewFromInt(-5)):
		return RecommendNeutral
	case pct.GreaterThan(decimal.NewFromInt(-20)):
		return RecommendSmallLoss
	default:
		return RecommendLargeLoss
	}
}

// Delta computes the day-over-day price movement. The percent change is
// zero when no yesterday price exists.
func Delta(current, yesterday decimal.Decimal) model.PriceDelta {
	change := current.Sub(yesterday)
	pct := decimal.Zero
	if yesterday.IsPositive() {
		pct = change.Div(yesterday).Mul(decimal.NewFromInt(100))
	}
	return model.PriceDelta{Change: change, ChangePercent: pct}
}

// AnalyzeLot marks one active lot against the current and yesterday
// prices: potential gross/net sale after commission, profit against the
// lot's purchase total, and a percentage-bucketed recommendation.
func AnalyzeLot(game, item string, lot model.Lot, current, yesterday decimal.Decimal) model.LotAnalysis {
	delta := Delta(current, yesterday)

	gross := current.Mul(decimal.NewFromInt(lot.Remaining))
	commission := gross.Mul(CommissionRate)
	net := gross.Sub(commission)
	totalPurchase := lot.Total()
	profit := net.Sub(totalPurchase)

	pct := decimal.Zero
	if totalPurchase.IsPositive() {
		pct = profit.Div(totalPurchase).Mul(decimal.NewFromInt(100))
	}

	return model.LotAnalysis{
		Game:           game,
		Item:           item,
		LotID:          lot.ID,
		AcquiredAt:     lot.AcquiredAt,
		Quantity:       lot.Remaining,
		PurchasePrice:  lot.Price,
		CurrentPrice:   current,
		PreviousPrice:  yesterday,
		PriceChange:    delta.Change,
		PriceChangePct: delta.ChangePercent,
		TotalPurchase:  totalPurchase,
		GrossSale:      gross,
		Commission:     commission,
		NetSale:        net,
		Profit:         profit,
		ProfitPercent:  pct,
		Recommendation: RecommendPercent(pct),
	}
}

// Summarize computes dashboard statistics over the whole inventory.
func Summarize(totalTrades int, positions map[model.Key]model.InventoryPosition) model.Statistics {
	stats := model.Statistics{
		TotalTrades:   totalTrades,
		TotalPurchase: decimal.Zero,
		TotalProfit:   decimal.Zero,
	}
	for _, pos := range positions {
		if pos.Quantity > 0 {
			stats.ItemsInStock++
		}
		stats.TotalPurchase = stats.TotalPurchase.Add(pos.TotalPurchase)
		stats.TotalProfit = stats.TotalProfit.Add(pos.Profit())
	}
	stats.ROIPercent = decimal.Zero
	if stats.TotalPurchase.IsPositive() {
		stats.ROIPercent = stats.TotalProfit.Div(stats.TotalPurchase).Mul(decimal.NewFromInt(100))
	}
	return stats
}
