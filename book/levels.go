package book

import (
	"driftbook/models"
)

// On-chain values are fixed-point integers. Prices carry six decimals and
// base sizes nine; conversion to float happens once per emitted level so
// repeated merges cannot accumulate rounding drift.
const (
	PricePrecision = 1_000_000
	BasePrecision  = 1_000_000_000
)

// Context carries the slot and oracle price captured once per refresh cycle.
// Both book sides of one snapshot resolve against the same Context.
type Context struct {
	Slot        uint64
	OraclePrice int64
	HasOracle   bool
}

// OrderEntry is one resting order as delivered by the order-state provider.
type OrderEntry interface {
	// RemainingBase returns the unfilled base amount in raw units.
	RemainingBase() int64
	// ResolvePrice returns the execution price in raw units under ctx.
	// ok is false when the order cannot be priced, e.g. an oracle-relative
	// order with no oracle data.
	ResolvePrice(ctx Context) (price int64, ok bool)
}

// Aggregate turns a priority-ordered order sequence into at most depth
// price levels. Entries with no remaining size or an unresolvable price are
// skipped. Consecutive entries resting at the identical raw price collapse
// into one level whose size is the sum of their raw remaining sizes.
//
// Entries must already be sorted best-to-worst for their side; Aggregate
// never re-sorts, so an unsorted input produces wrong coalescing and wrong
// depth truncation.
func Aggregate(entries []OrderEntry, ctx Context, depth int) []models.PriceLevel {
	if depth <= 0 {
		return []models.PriceLevel{}
	}

	levels := make([]models.PriceLevel, 0, depth)
	var lastRawPrice, lastRawSize int64

	for _, entry := range entries {
		remaining := entry.RemainingBase()
		if remaining <= 0 {
			continue
		}

		rawPrice, ok := entry.ResolvePrice(ctx)
		if !ok {
			continue
		}

		if len(levels) > 0 && rawPrice == lastRawPrice {
			lastRawSize += remaining
			level := &levels[len(levels)-1]
			level.Size = float64(lastRawSize) / BasePrecision
			level.Notional = level.Price * level.Size
			continue
		}

		// Depth truncation happens on the level boundary so entries still
		// coalescing into the last level are not cut off.
		if len(levels) >= depth {
			break
		}

		price := float64(rawPrice) / PricePrecision
		size := float64(remaining) / BasePrecision
		levels = append(levels, models.PriceLevel{
			Price:    price,
			Size:     size,
			Notional: price * size,
		})
		lastRawPrice = rawPrice
		lastRawSize = remaining
	}

	return levels
}
