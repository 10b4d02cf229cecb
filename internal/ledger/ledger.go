// Package ledger implements the inventory reconstruction and
// profit-valuation engine: FIFO lot bookkeeping per (game, item),
// full rebuilds from trade history, per-sale realized profit with
// point-in-time replay, and valuation against external market prices.
//
// Everything here is a pure, synchronous computation over in-memory
// collections. The engine never fails hard on imperfect history —
// malformed records are skipped and over-consumption stops silently,
// so a best-effort reconstruction is always produced.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// CommissionRate is the flat marketplace cut deducted from gross sale
// proceeds before profit is computed.
var CommissionRate = decimal.NewFromFloat(0.13)

// LotLedger holds the ordered lots of a single (game, item) bucket and
// applies FIFO consumption and ingestion for one trade record at a time.
//
// Consumption order is acquisition timestamp ascending; lots sharing a
// timestamp keep their insertion order. Consuming more than the lots
// hold stops silently once they are exhausted — remaining quantities
// never go negative and no error is raised.
type LotLedger struct {
	lots          []model.Lot
	quantity      int64
	totalPurchase decimal.Decimal
	totalSale     decimal.Decimal
}

// NewLotLedger creates an empty lot ledger.
func NewLotLedger() *LotLedger {
	return &LotLedger{
		totalPurchase: decimal.Zero,
		totalSale:     decimal.Zero,
	}
}

// Quantity is the total remaining quantity across active lots.
func (l *LotLedger) Quantity() int64 { return l.quantity }

// Lots returns the active lots in FIFO order.
func (l *LotLedger) Lots() []model.Lot {
	l.sortLots()
	out := make([]model.Lot, len(l.lots))
	copy(out, l.lots)
	return out
}

// ApplyPurchase appends a new lot at the given acquisition price and
// adds quantity×price to the cumulative purchase cost.
func (l *LotLedger) ApplyPurchase(lotID string, at time.Time, quantity int64, price decimal.Decimal) {
	if quantity <= 0 {
		return
	}
	l.lots = append(l.lots, model.Lot{
		ID:         lotID,
		AcquiredAt: at,
		Remaining:  quantity,
		Price:      price,
	})
	l.quantity += quantity
	l.totalPurchase = l.totalPurchase.Add(price.Mul(decimal.NewFromInt(quantity)))
}

// ApplyGiftGain appends a zero-cost lot. Gifts are not "spend": the
// cumulative purchase cost is untouched.
func (l *LotLedger) ApplyGiftGain(lotID string, at time.Time, quantity int64) {
	if quantity <= 0 {
		return
	}
	l.lots = append(l.lots, model.Lot{
		ID:         lotID,
		AcquiredAt: at,
		Remaining:  quantity,
		Price:      decimal.Zero,
	})
	l.quantity += quantity
}

// ApplyGiftLoss consumes quantity units FIFO without any cost tracking.
// This is the give-away path (gift/trade/craft with negative quantity).
func (l *LotLedger) ApplyGiftLoss(quantity int64) {
	l.consume(quantity, nil)
}

// ApplySale consumes quantity units FIFO, accumulating the consumed
// cost as the sale's purchase-cost attribution, and adds the gross sale
// amount to cumulative sale proceeds. The returned trail lists each
// consumed lot's contribution.
func (l *LotLedger) ApplySale(quantity int64, gross decimal.Decimal) (cost decimal.Decimal, trail []model.LotShare) {
	cost = decimal.Zero
	l.consume(quantity, func(lot model.Lot, taken int64) {
		cost = cost.Add(lot.Price.Mul(decimal.NewFromInt(taken)))
		trail = append(trail, model.LotShare{
			LotID:    lot.ID,
			Quantity: taken,
			Price:    lot.Price,
		})
	})
	l.totalSale = l.totalSale.Add(gross)
	return cost, trail
}

// consume takes quantity units from the oldest lots first, invoking
// taken (if non-nil) per lot before decrementing. Exhausted lots are
// dropped from the active set.
func (l *LotLedger) consume(quantity int64, taken func(lot model.Lot, n int64)) {
	if quantity <= 0 {
		return
	}
	l.sortLots()

	remaining := quantity
	for i := range l.lots {
		if remaining <= 0 {
			break
		}
		lot := &l.lots[i]
		n := lot.Remaining
		if n > remaining {
			n = remaining
		}
		if n <= 0 {
			continue
		}
		if taken != nil {
			taken(*lot, n)
		}
		lot.Remaining -= n
		remaining -= n
		l.quantity -= n
	}

	// Drop exhausted lots.
	active := l.lots[:0]
	for _, lot := range l.lots {
		if lot.Remaining > 0 {
			active = append(active, lot)
		}
	}
	l.lots = active
}

// sortLots restores FIFO order. Stable so equal timestamps keep the
// insertion order from history processing — required for deterministic
// replay.
func (l *LotLedger) sortLots() {
	sort.SliceStable(l.lots, func(i, j int) bool {
		return l.lots[i].AcquiredAt.Before(l.lots[j].AcquiredAt)
	})
}

// Position snapshots the ledger into an InventoryPosition.
func (l *LotLedger) Position(game, item string) model.InventoryPosition {
	return model.InventoryPosition{
		Game:          game,
		Item:          item,
		Quantity:      l.quantity,
		TotalPurchase: l.totalPurchase,
		TotalSale:     l.totalSale,
		Lots:          l.Lots(),
	}
}
