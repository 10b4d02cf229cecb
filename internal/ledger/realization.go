package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// RealizeSale computes the realized profit of one sale record by
// replaying history up to that point. Replay is required because lots
// mutate over time: the sale must consume the lot state as it was at
// the moment of that sale, not the final state.
//
// The synthetic lot set starts from all purchases of the same
// (game, item) with timestamp ≤ the sale's; every earlier sale
// (timestamp strictly before) is applied FIFO first; then the target
// sale consumes what remains, recording its attribution trail.
//
// A sale with no available lots still yields a realization with
// purchase cost zero, so its full net proceeds count as profit — the
// same permissive policy the lot ledger applies to over-consumption.
func RealizeSale(history []model.TradeRecord, sale model.TradeRecord) model.SaleRealization {
	recs := sortedByTime(history)

	// The full purchase lot set is built before any prior sale is
	// replayed. An earlier over-sell therefore drains purchases made
	// after its own timestamp too, not just the lots that existed at
	// its moment.
	ll := NewLotLedger()
	for _, rec := range recs {
		if rec.Game != sale.Game || rec.Item != sale.Item {
			continue
		}
		if rec.Op == model.OpPurchase && !rec.Timestamp.After(sale.Timestamp) {
			ll.ApplyPurchase(rec.ID, rec.Timestamp, rec.Quantity, rec.Price)
		}
	}
	for _, rec := range recs {
		if rec.Game != sale.Game || rec.Item != sale.Item {
			continue
		}
		if rec.Op == model.OpSale && rec.Timestamp.Before(sale.Timestamp) {
			ll.consume(abs(rec.Quantity), nil)
		}
	}

	quantity := abs(sale.Quantity)
	cost, trail := ll.ApplySale(quantity, decimal.Zero)

	gross := sale.Price.Mul(decimal.NewFromInt(quantity))
	commission := gross.Mul(CommissionRate)
	net := gross.Sub(commission)
	profit := net.Sub(cost)

	roi := decimal.Zero
	if cost.IsPositive() {
		roi = profit.Div(cost).Mul(decimal.NewFromInt(100))
	}

	return model.SaleRealization{
		TradeID:      sale.ID,
		Game:         sale.Game,
		Item:         sale.Item,
		SoldAt:       sale.Timestamp,
		Quantity:     quantity,
		UnitPrice:    sale.Price,
		Gross:        gross,
		Commission:   commission,
		Net:          net,
		PurchaseCost: cost,
		Profit:       profit,
		ROIPercent:   roi,
		LotTrail:     trail,
	}
}

// Realizations computes realized profit for every sale in the history,
// most recent sale first.
func Realizations(history []model.TradeRecord) []model.SaleRealization {
	var out []model.SaleRealization
	for _, rec := range sortedByTime(history) {
		if rec.Op == model.OpSale {
			out = append(out, RealizeSale(history, rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SoldAt.After(out[j].SoldAt)
	})
	return out
}

// sortedByTime returns a timestamp-ascending copy of the history with
// ties keeping history order.
func sortedByTime(history []model.TradeRecord) []model.TradeRecord {
	recs := make([]model.TradeRecord, len(history))
	copy(recs, history)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})
	return recs
}
