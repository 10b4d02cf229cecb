// Package model defines the core domain types shared across the tracker.
// All monetary values use shopspring/decimal — never float64 for money.
// Quantities are int64: game items are discrete units.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Op is the kind of a trade operation. The set is closed: anything a
// ParseOp call does not recognise never reaches the ledger.
type Op string

const (
	OpPurchase Op = "purchase"
	OpSale     Op = "sale"
	OpGift     Op = "gift"
	OpTrade    Op = "trade"
	OpCraft    Op = "craft"
)

// ParseOp validates an operation kind string.
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpPurchase, OpSale, OpGift, OpTrade, OpCraft:
		return Op(s), nil
	}
	return "", fmt.Errorf("model: unknown operation kind %q", s)
}

// GiftLike reports whether the op moves items without a purchase/sale
// money flow. Gift-like gains create zero-cost lots; gift-like losses
// consume lots without touching cost aggregates.
func (o Op) GiftLike() bool {
	return o == OpGift || o == OpTrade || o == OpCraft
}

// TradeRecord is an immutable record of one trade event. Once created it
// is never modified; removing one triggers a full inventory rebuild.
//
// Sign convention: Sale quantity is always stored as a positive
// magnitude — the op kind alone carries direction. Gift/trade/craft
// quantity is signed: positive gains items, negative gives them away.
type TradeRecord struct {
	ID        string          `json:"id" db:"id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	Game      string          `json:"game" db:"game"`
	Item      string          `json:"item" db:"item"`
	Op        Op              `json:"op" db:"op"`
	Quantity  int64           `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	// OrderFillID links a trade synthesized from an order fill back to
	// that fill, so removing the fill removes exactly this record.
	OrderFillID string `json:"order_fill_id,omitempty" db:"order_fill_id"`
}

// Total is the gross amount of the record (price × |quantity|).
func (t TradeRecord) Total() decimal.Decimal {
	q := t.Quantity
	if q < 0 {
		q = -q
	}
	return t.Price.Mul(decimal.NewFromInt(q))
}

// Key identifies one (game, item) inventory bucket.
type Key struct {
	Game string `json:"game"`
	Item string `json:"item"`
}

func (k Key) String() string { return k.Game + "/" + k.Item }

// Lot is a quantity of an item acquired at one point in time at one unit
// price. Lot ID equals the originating trade ID. Gift-acquired lots carry
// price zero.
type Lot struct {
	ID         string          `json:"id"`
	AcquiredAt time.Time       `json:"acquired_at"`
	Remaining  int64           `json:"remaining"`
	Price      decimal.Decimal `json:"price"`
}

// Total is the current value of the lot at its acquisition price.
func (l Lot) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(l.Remaining))
}

// InventoryPosition is the reconstructed state of one (game, item)
// bucket: active lots in FIFO order plus running dashboard aggregates.
//
// TotalPurchase counts every purchase lot's original total, independent
// of how much of it remains — it is a reporting aggregate, not the cost
// basis used for realized profit.
type InventoryPosition struct {
	Game          string          `json:"game"`
	Item          string          `json:"item"`
	Quantity      int64           `json:"quantity"`
	TotalPurchase decimal.Decimal `json:"total_purchase"`
	TotalSale     decimal.Decimal `json:"total_sale"`
	Lots          []Lot           `json:"lots"`
}

// Profit is the naive gross profit: sale proceeds minus all purchases.
func (p InventoryPosition) Profit() decimal.Decimal {
	return p.TotalSale.Sub(p.TotalPurchase)
}

// ROI is Profit relative to TotalPurchase, in percent. Zero when nothing
// was ever purchased.
func (p InventoryPosition) ROI() decimal.Decimal {
	if !p.TotalPurchase.IsPositive() {
		return decimal.Zero
	}
	return p.Profit().Div(p.TotalPurchase).Mul(decimal.NewFromInt(100))
}

// GiftQuantity is the remaining quantity held in zero-cost lots.
func (p InventoryPosition) GiftQuantity() int64 {
	var n int64
	for _, l := range p.Lots {
		if l.Price.IsZero() {
			n += l.Remaining
		}
	}
	return n
}

// LotShare is one fragment of a sale's FIFO attribution trail:
// Quantity units taken from lot LotID at unit price Price.
type LotShare struct {
	LotID    string          `json:"lot_id"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// SaleRealization is the derived outcome of one sale record: which lots
// it consumed and the profit after commission. Never persisted.
type SaleRealization struct {
	TradeID      string          `json:"trade_id"`
	Game         string          `json:"game"`
	Item         string          `json:"item"`
	SoldAt       time.Time       `json:"sold_at"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Gross        decimal.Decimal `json:"gross"`
	Commission   decimal.Decimal `json:"commission"`
	Net          decimal.Decimal `json:"net"`
	PurchaseCost decimal.Decimal `json:"purchase_cost"`
	Profit       decimal.Decimal `json:"profit"`
	ROIPercent   decimal.Decimal `json:"roi_percent"`
	LotTrail     []LotShare      `json:"lot_trail"`
}

// Valuation is the unrealized-profit view of one position against an
// externally supplied current price.
type Valuation struct {
	AverageCost     decimal.Decimal `json:"average_cost"`
	NetPrice        decimal.Decimal `json:"net_price"`
	PotentialProfit decimal.Decimal `json:"potential_profit"`
	Recommendation  string          `json:"recommendation"`
}

// PriceDelta is a day-over-day price movement.
type PriceDelta struct {
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// LotAnalysis is one row of the per-lot portfolio report: an active lot
// marked against the current price, with commission and day-over-day
// movement folded in.
type LotAnalysis struct {
	Game           string          `json:"game"`
	Item           string          `json:"item"`
	LotID          string          `json:"lot_id"`
	AcquiredAt     time.Time       `json:"acquired_at"`
	Quantity       int64           `json:"quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PreviousPrice  decimal.Decimal `json:"previous_price"`
	PriceChange    decimal.Decimal `json:"price_change"`
	PriceChangePct decimal.Decimal `json:"price_change_percent"`
	TotalPurchase  decimal.Decimal `json:"total_purchase"`
	GrossSale      decimal.Decimal `json:"gross_sale"`
	Commission     decimal.Decimal `json:"commission"`
	NetSale        decimal.Decimal `json:"net_sale"`
	Profit         decimal.Decimal `json:"profit"`
	ProfitPercent  decimal.Decimal `json:"profit_percent"`
	Recommendation string          `json:"recommendation"`
}

// PricePoint is one observed price for an item. The price history keeps
// at most one point per item per calendar day: a newer same-day
// observation replaces the older one.
type PricePoint struct {
	Game     string          `json:"game" db:"game"`
	Item     string          `json:"item" db:"item"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Source   string          `json:"source" db:"source"`
	Observed time.Time       `json:"observed" db:"observed"`
}

// PriceSourceNone marks the "no price available" sentinel quote.
const PriceSourceNone = "none"

// PriceQuote is the answer to a price lookup. A missing price is the
// sentinel {Price: 0, Source: "none"}, never an error.
type PriceQuote struct {
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
}

// None reports whether the quote is the missing-price sentinel.
func (q PriceQuote) None() bool { return q.Source == PriceSourceNone }

// Order statuses.
const (
	OrderActive    = "active"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// Order is a standing intent to buy or sell at a target price, satisfied
// over time by discrete fills. Each fill synthesizes one TradeRecord.
type Order struct {
	ID             string          `json:"id" db:"id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	Game           string          `json:"game" db:"game"`
	Item           string          `json:"item" db:"item"`
	Side           Op              `json:"side" db:"side"` // OpPurchase or OpSale
	TargetPrice    decimal.Decimal `json:"target_price" db:"target_price"`
	TargetQuantity int64           `json:"target_quantity" db:"target_quantity"`
	FilledQuantity int64           `json:"filled_quantity" db:"filled_quantity"`
	Status         string          `json:"status" db:"status"`
	Notes          string          `json:"notes,omitempty" db:"notes"`
	Fills          []OrderFill     `json:"fills"`
}

// RemainingQuantity is the unfilled remainder of the order.
func (o Order) RemainingQuantity() int64 { return o.TargetQuantity - o.FilledQuantity }

// Active reports whether the order still accepts fills.
func (o Order) Active() bool { return o.Status == OrderActive }

// TotalValue is the order's full value at the target price.
func (o Order) TotalValue() decimal.Decimal {
	return o.TargetPrice.Mul(decimal.NewFromInt(o.TargetQuantity))
}

// FilledValue is the filled portion valued at the target price.
func (o Order) FilledValue() decimal.Decimal {
	return o.TargetPrice.Mul(decimal.NewFromInt(o.FilledQuantity))
}

// ProgressPercent is filled/target in percent, zero for empty orders.
func (o Order) ProgressPercent() decimal.Decimal {
	if o.TargetQuantity <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(o.FilledQuantity).
		Div(decimal.NewFromInt(o.TargetQuantity)).
		Mul(decimal.NewFromInt(100))
}

// OrderFill is one partial execution of an order.
type OrderFill struct {
	ID       string          `json:"id" db:"id"`
	FilledAt time.Time       `json:"filled_at" db:"filled_at"`
	Quantity int64           `json:"quantity" db:"quantity"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Notes    string          `json:"notes,omitempty" db:"notes"`
}

// Total is the gross amount of the fill.
func (f OrderFill) Total() decimal.Decimal {
	return f.Price.Mul(decimal.NewFromInt(f.Quantity))
}

// Statistics is the dashboard summary over the whole ledger.
type Statistics struct {
	TotalTrades   int             `json:"total_trades"`
	ItemsInStock  int             `json:"items_in_stock"`
	TotalPurchase decimal.Decimal `json:"total_purchase"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	ROIPercent    decimal.Decimal `json:"roi_percent"`
}
