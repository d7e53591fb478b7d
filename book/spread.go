package book

import (
	"driftbook/models"
)

// MidSpread computes the mid price and spread from the best levels of each
// side. When either side is empty both values are zero: the "no market"
// sentinel, not an error. A crossed book yields a negative spread which is
// surfaced unchanged as a diagnostic for the caller.
func MidSpread(bids, asks []models.PriceLevel) (mid, spread float64) {
	if len(bids) == 0 || len(asks) == 0 {
		return 0, 0
	}
	bestBid := bids[0].Price
	bestAsk := asks[0].Price
	return (bestBid + bestAsk) / 2, bestAsk - bestBid
}
