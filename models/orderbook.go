package models

// Side identifies one half of the order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// SnapshotStatus describes the lifecycle state of the published snapshot.
type SnapshotStatus string

const (
	StatusStarting SnapshotStatus = "starting"
	StatusOK       SnapshotStatus = "ok"
	StatusError    SnapshotStatus = "error"
)

// MarketRef identifies one perp market. It is resolved once at startup and
// immutable for the life of the process.
type MarketRef struct {
	Symbol      string `json:"symbol"`
	MarketIndex int    `json:"marketIndex"`
}

// PriceLevel is a single aggregated price level of the L2 book.
// Notional is always Price * Size.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	Notional float64 `json:"notional"`
}

// BookSnapshot is the complete aggregated book state published after one
// refresh cycle. Instances are never mutated once published; a new cycle
// replaces the whole snapshot. Bids and asks are ordered best first.
type BookSnapshot struct {
	Market MarketRef      `json:"market"`
	Bids   []PriceLevel   `json:"bids"`
	Asks   []PriceLevel   `json:"asks"`
	Mid    float64        `json:"mid"`
	Spread float64        `json:"spread"`
	TS     int64          `json:"ts"` // unix milliseconds
	Status SnapshotStatus `json:"status"`
}

// Health is the serving-boundary view of refresh-loop health.
// LastOkAt is unix milliseconds, zero when no cycle has succeeded yet.
type Health struct {
	Status    SnapshotStatus `json:"status"`
	LastOkAt  int64          `json:"lastOkAt"`
	LastError string         `json:"lastError,omitempty"`
}
