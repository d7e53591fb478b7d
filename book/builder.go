package book

import (
	"context"
	"time"

	"github.com/google/uuid"

	appconfig "driftbook/config"
	"driftbook/logger"
	"driftbook/models"
)

// Provider is the narrow surface of the on-chain order-state layer the
// builder needs. Implementations are not safe for concurrent use; the
// builder is their only caller.
type Provider interface {
	// Init performs one-time setup (market resolution, subscriptions).
	// Idempotent: safe to call every cycle, a no-op after the first success.
	Init(ctx context.Context) error
	// Market returns the resolved market. Valid after Init succeeds.
	Market() models.MarketRef
	// RefreshParticipants re-fetches the universe of potential order owners.
	RefreshParticipants(ctx context.Context) error
	// Context captures the slot and oracle price for one cycle.
	Context(ctx context.Context) (Context, error)
	// Orders returns the resting orders for one side, already sorted
	// best-to-worst by matching priority.
	Orders(ctx context.Context, side models.Side, bctx Context) ([]OrderEntry, error)
}

// Builder performs one refresh cycle: pull the current book state from the
// provider, aggregate both sides, compute mid/spread and publish a fresh
// snapshot to the store.
type Builder struct {
	provider Provider
	store    *Store
	depth    int
	userSync time.Duration
	log      *logger.Log

	lastUserSync time.Time

	cyclesOK     int64
	cyclesFailed int64
}

func NewBuilder(cfg *appconfig.Config, provider Provider, store *Store) *Builder {
	return &Builder{
		provider: provider,
		store:    store,
		depth:    cfg.Book.Depth,
		userSync: cfg.Book.UserSyncInterval(),
		log:      logger.GetLogger(),
	}
}

// Refresh runs exactly one cycle. On error nothing is published and the
// caller decides how to record the failure; the previously published
// snapshot stays untouched. There is no retry here, the next scheduled tick
// is the retry mechanism.
func (b *Builder) Refresh(ctx context.Context) error {
	cycleID := uuid.New().String()
	log := b.log.WithComponent("snapshot_builder").WithFields(logger.Fields{
		"cycle_id":  cycleID,
		"operation": "refresh",
	})

	start := time.Now()

	if err := b.provider.Init(ctx); err != nil {
		b.cyclesFailed++
		return err
	}

	if b.lastUserSync.IsZero() || time.Since(b.lastUserSync) > b.userSync {
		if err := b.provider.RefreshParticipants(ctx); err != nil {
			b.cyclesFailed++
			return err
		}
		b.lastUserSync = time.Now()
	}

	bctx, err := b.provider.Context(ctx)
	if err != nil {
		b.cyclesFailed++
		return err
	}

	rawBids, err := b.provider.Orders(ctx, models.SideBid, bctx)
	if err != nil {
		b.cyclesFailed++
		return err
	}
	rawAsks, err := b.provider.Orders(ctx, models.SideAsk, bctx)
	if err != nil {
		b.cyclesFailed++
		return err
	}

	bids := Aggregate(rawBids, bctx, b.depth)
	asks := Aggregate(rawAsks, bctx, b.depth)
	mid, spread := MidSpread(bids, asks)

	if spread < 0 {
		log.WithFields(logger.Fields{
			"best_bid": bids[0].Price,
			"best_ask": asks[0].Price,
			"spread":   spread,
		}).Warn("book is crossed")
	}

	snapshot := &models.BookSnapshot{
		Market: b.provider.Market(),
		Bids:   bids,
		Asks:   asks,
		Mid:    mid,
		Spread: spread,
		TS:     time.Now().UnixMilli(),
		Status: models.StatusOK,
	}
	b.store.Publish(snapshot)
	b.cyclesOK++

	logger.LogPerformanceEntry(log, "snapshot_builder", "refresh_cycle", time.Since(start), logger.Fields{
		"slot":       bctx.Slot,
		"bid_levels": len(bids),
		"ask_levels": len(asks),
		"mid":        mid,
		"spread":     spread,
	})
	logger.IncrementCycleSuccess()

	return nil
}

// ReportMetrics emits builder counters through the metric pipeline.
func (b *Builder) ReportMetrics() {
	b.log.LogMetric("snapshot_builder", "cycles_ok", b.cyclesOK, "counter", logger.Fields{})
	b.log.LogMetric("snapshot_builder", "cycles_failed", b.cyclesFailed, "counter", logger.Fields{})
}
