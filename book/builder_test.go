package book

import (
	"context"
	"errors"
	"testing"

	appconfig "driftbook/config"
	"driftbook/models"
)

// fakeProvider records calls and serves canned order state.
type fakeProvider struct {
	initErr    error
	initCalls  int
	refreshErr error
	refreshes  int
	ctxErr     error
	bctx       Context
	ordersErr  error
	bids       []OrderEntry
	asks       []OrderEntry
	market     models.MarketRef
}

func (p *fakeProvider) Init(ctx context.Context) error {
	p.initCalls++
	return p.initErr
}

func (p *fakeProvider) Market() models.MarketRef { return p.market }

func (p *fakeProvider) RefreshParticipants(ctx context.Context) error {
	p.refreshes++
	return p.refreshErr
}

func (p *fakeProvider) Context(ctx context.Context) (Context, error) {
	return p.bctx, p.ctxErr
}

func (p *fakeProvider) Orders(ctx context.Context, side models.Side, bctx Context) ([]OrderEntry, error) {
	if p.ordersErr != nil {
		return nil, p.ordersErr
	}
	if side == models.SideBid {
		return p.bids, nil
	}
	return p.asks, nil
}

func testBuilderConfig() *appconfig.Config {
	return &appconfig.Config{
		Book: appconfig.BookConfig{
			Depth:      20,
			RefreshMs:  1000,
			UserSyncMs: 30000,
		},
	}
}

func TestBuilderRefreshPublishesSnapshot(t *testing.T) {
	provider := &fakeProvider{
		market: models.MarketRef{Symbol: "SOL-PERP", MarketIndex: 0},
		bctx:   Context{Slot: 123},
		bids: []OrderEntry{
			limit(100*PricePrecision, 5*BasePrecision),
			limit(100*PricePrecision, 3*BasePrecision),
			limit(99*PricePrecision, 2*BasePrecision),
		},
		asks: []OrderEntry{
			limit(101*PricePrecision, 4*BasePrecision),
		},
	}
	store := NewStore()
	builder := NewBuilder(testBuilderConfig(), provider, store)

	if err := builder.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	snap := store.Snapshot()
	if snap.Status != models.StatusOK {
		t.Errorf("expected ok status, got %q", snap.Status)
	}
	if snap.Market.Symbol != "SOL-PERP" {
		t.Errorf("expected resolved market, got %q", snap.Market.Symbol)
	}
	checkLevels(t, snap.Bids, []models.PriceLevel{
		{Price: 100, Size: 8, Notional: 800},
		{Price: 99, Size: 2, Notional: 198},
	})
	checkLevels(t, snap.Asks, []models.PriceLevel{
		{Price: 101, Size: 4, Notional: 404},
	})
	if !approxEqual(snap.Mid, 100.5) {
		t.Errorf("expected mid 100.5, got %v", snap.Mid)
	}
	if !approxEqual(snap.Spread, 1) {
		t.Errorf("expected spread 1, got %v", snap.Spread)
	}
	if snap.TS == 0 {
		t.Error("expected snapshot timestamp to be set")
	}
}

func TestBuilderRefreshFailureLeavesStoreUntouched(t *testing.T) {
	provider := &fakeProvider{
		market: models.MarketRef{Symbol: "SOL-PERP"},
		bids:   []OrderEntry{limit(100*PricePrecision, 1*BasePrecision)},
		asks:   []OrderEntry{limit(101*PricePrecision, 1*BasePrecision)},
	}
	store := NewStore()
	builder := NewBuilder(testBuilderConfig(), provider, store)

	if err := builder.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	published := store.Snapshot()

	provider.ordersErr = errors.New("rpc unavailable")
	if err := builder.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	snap := store.Snapshot()
	if snap.TS != published.TS {
		t.Errorf("expected previous snapshot retained, ts changed from %d to %d", published.TS, snap.TS)
	}
	if snap.Status != models.StatusOK {
		t.Errorf("builder must not flip status on its own, got %q", snap.Status)
	}
}

func TestBuilderParticipantSyncGating(t *testing.T) {
	provider := &fakeProvider{market: models.MarketRef{Symbol: "SOL-PERP"}}
	store := NewStore()
	builder := NewBuilder(testBuilderConfig(), provider, store)

	if err := builder.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if provider.refreshes != 1 {
		t.Fatalf("expected participant refresh on first cycle, got %d calls", provider.refreshes)
	}

	// Within the sync window later cycles skip the bulk refresh.
	if err := builder.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if provider.refreshes != 1 {
		t.Errorf("expected participant refresh skipped inside sync window, got %d calls", provider.refreshes)
	}
}

func TestBuilderParticipantSyncFailureDoesNotAdvanceWindow(t *testing.T) {
	provider := &fakeProvider{
		market:     models.MarketRef{Symbol: "SOL-PERP"},
		refreshErr: errors.New("getProgramAccounts failed"),
	}
	store := NewStore()
	builder := NewBuilder(testBuilderConfig(), provider, store)

	if err := builder.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	provider.refreshErr = nil
	if err := builder.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if provider.refreshes != 2 {
		t.Errorf("expected retry of participant refresh after failure, got %d calls", provider.refreshes)
	}
}

func TestBuilderInitCalledEveryCycle(t *testing.T) {
	provider := &fakeProvider{market: models.MarketRef{Symbol: "SOL-PERP"}}
	store := NewStore()
	builder := NewBuilder(testBuilderConfig(), provider, store)

	for i := 0; i < 3; i++ {
		if err := builder.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
	}
	if provider.initCalls != 3 {
		t.Errorf("expected init attempted each cycle, got %d calls", provider.initCalls)
	}
}

func TestBuilderInitErrorAbortsCycle(t *testing.T) {
	provider := &fakeProvider{initErr: errors.New("market universe unavailable")}
	store := NewStore()
	builder := NewBuilder(testBuilderConfig(), provider, store)

	if err := builder.Refresh(context.Background()); err == nil {
		t.Fatal("expected init error to abort the cycle")
	}
	if provider.refreshes != 0 {
		t.Errorf("expected no participant refresh after init failure, got %d calls", provider.refreshes)
	}
	if store.Snapshot().Status != models.StatusStarting {
		t.Errorf("expected starting snapshot untouched, got %q", store.Snapshot().Status)
	}
}
