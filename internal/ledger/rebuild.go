package ledger

import (
	"sort"

	"github.com/gavriccccc-tech/skinfolio/internal/model"
)

// Rebuild reconstructs the full inventory from an ordered trade
// history. It is a pure function: the same history always yields the
// same positions, and positions are recomputed from scratch rather
// than patched incrementally — trading performance for correctness at
// personal-trade-history scale.
//
// Records are grouped by (game, item) and replayed in timestamp order
// (ties keep history order). Records with an operation kind outside
// the closed set are skipped with no ledger effect. A position is
// included only if it still holds items or ever recorded a sale.
func Rebuild(history []model.TradeRecord) map[model.Key]model.InventoryPosition {
	groups := make(map[model.Key][]model.TradeRecord)
	var keys []model.Key
	for _, rec := range history {
		k := model.Key{Game: rec.Game, Item: rec.Item}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], rec)
	}

	positions := make(map[model.Key]model.InventoryPosition, len(groups))
	for _, k := range keys {
		recs := groups[k]
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		})

		ll := NewLotLedger()
		for _, rec := range recs {
			apply(ll, rec)
		}

		pos := ll.Position(k.Game, k.Item)
		if pos.Quantity > 0 || pos.TotalSale.IsPositive() {
			positions[k] = pos
		}
	}
	return positions
}

// apply dispatches one record onto a lot ledger.
func apply(ll *LotLedger, rec model.TradeRecord) {
	switch rec.Op {
	case model.OpPurchase:
		ll.ApplyPurchase(rec.ID, rec.Timestamp, rec.Quantity, rec.Price)
	case model.OpSale:
		ll.ApplySale(abs(rec.Quantity), rec.Total())
	case model.OpGift, model.OpTrade, model.OpCraft:
		if rec.Quantity > 0 {
			ll.ApplyGiftGain(rec.ID, rec.Timestamp, rec.Quantity)
		} else if rec.Quantity < 0 {
			ll.ApplyGiftLoss(-rec.Quantity)
		}
	default:
		// Unknown kind: no inventory change, no error.
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
