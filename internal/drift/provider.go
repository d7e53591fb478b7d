package drift

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mr-tron/base58"

	"driftbook/book"
	appconfig "driftbook/config"
	"driftbook/logger"
	"driftbook/models"
)

// Provider implements book.Provider over the ledger RPC layer. It owns the
// market resolution, the user universe and the optional slot feed. A single
// refresh cycle is its only caller, so none of its state is locked.
type Provider struct {
	cfg      *appconfig.Config
	client   *Client
	universe *Universe
	slots    *SlotFeed
	log      *logger.Log

	// runCtx bounds the slot feed's lifetime. Init is called with per-cycle
	// contexts, which must not tear down the subscription when they expire.
	runCtx context.Context

	initialized bool
	market      models.MarketRef
	oracleAddr  string
}

func NewProvider(ctx context.Context, cfg *appconfig.Config, client *Client) *Provider {
	return &Provider{
		cfg:      cfg,
		client:   client,
		universe: NewUniverse(client, cfg.RPC.ProgramID),
		slots:    NewSlotFeed(cfg.RPC.WSURL),
		log:      logger.GetLogger(),
		runCtx:   ctx,
	}
}

// Init resolves the configured market and starts the slot feed. Idempotent:
// a no-op once the first call has succeeded, so the builder can safely call
// it every cycle.
func (p *Provider) Init(ctx context.Context) error {
	if p.initialized {
		return nil
	}

	ref, acct, err := ResolveMarket(ctx, p.client, p.cfg.RPC.ProgramID, p.cfg.Market.Symbol, p.cfg.Market.Index)
	if err != nil {
		return err
	}

	p.market = ref
	p.oracleAddr = base58.Encode(acct.Oracle[:])

	if p.slots != nil {
		p.slots.Start(p.runCtx)
	}

	p.initialized = true
	p.log.WithComponent("order_provider").WithFields(logger.Fields{
		"symbol":       ref.Symbol,
		"market_index": ref.MarketIndex,
		"oracle":       p.oracleAddr,
	}).Info("order provider initialized")
	return nil
}

// Market returns the resolved market reference. Valid after Init succeeds.
func (p *Provider) Market() models.MarketRef {
	return p.market
}

// RefreshParticipants re-fetches the user account universe.
func (p *Provider) RefreshParticipants(ctx context.Context) error {
	return p.universe.Refresh(ctx)
}

// Context captures the slot and oracle price one cycle resolves against.
// A missing oracle account degrades to a context without oracle data, so
// fixed-price orders still aggregate while oracle-relative ones are skipped.
// Any other oracle failure aborts the cycle.
func (p *Provider) Context(ctx context.Context) (book.Context, error) {
	slot, live := uint64(0), false
	if p.slots != nil {
		slot, live = p.slots.Current()
	}
	if !live {
		var err error
		slot, err = p.client.GetSlot(ctx)
		if err != nil {
			return book.Context{}, fmt.Errorf("fetch slot: %w", err)
		}
	}

	bctx := book.Context{Slot: slot}

	data, _, err := p.client.GetAccountInfo(ctx, p.oracleAddr)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			p.log.WithComponent("order_provider").WithFields(logger.Fields{
				"oracle": p.oracleAddr,
			}).Warn("oracle account missing, oracle-relative orders will be skipped")
			return bctx, nil
		}
		return book.Context{}, fmt.Errorf("fetch oracle: %w", err)
	}

	oracle, err := decodeOracle(data)
	if err != nil {
		return book.Context{}, fmt.Errorf("decode oracle: %w", err)
	}

	bctx.OraclePrice = oracle.Price
	bctx.HasOracle = true
	return bctx, nil
}

// Orders collects the resting orders of one side for the resolved market
// from the user universe and returns them sorted best-to-worst by matching
// priority: price first (bids descending, asks ascending), then earliest
// placement slot. Orders whose price cannot be resolved under bctx sort to
// the back; the aggregator drops them entry-locally.
func (p *Provider) Orders(ctx context.Context, side models.Side, bctx book.Context) ([]book.OrderEntry, error) {
	if !p.initialized {
		return nil, fmt.Errorf("order provider not initialized")
	}

	wantSide := orderSideBid
	if side == models.SideAsk {
		wantSide = orderSideAsk
	}

	var nodes []*orderNode
	for i := range p.universe.Users() {
		user := &p.universe.Users()[i]
		for _, ord := range user.Orders {
			if ord.Status != orderStatusOpen || ord.Side != wantSide {
				continue
			}
			if int(ord.MarketIndex) != p.market.MarketIndex {
				continue
			}
			nodes = append(nodes, &orderNode{ord: ord})
		}
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		pi, oki := nodes[i].ResolvePrice(bctx)
		pj, okj := nodes[j].ResolvePrice(bctx)
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		if pi != pj {
			if side == models.SideBid {
				return pi > pj
			}
			return pi < pj
		}
		return nodes[i].ord.Slot < nodes[j].ord.Slot
	})

	entries := make([]book.OrderEntry, len(nodes))
	for i, n := range nodes {
		entries[i] = n
	}
	return entries, nil
}

// orderNode adapts one on-chain order slot to the aggregator's entry
// contract.
type orderNode struct {
	ord Order
}

func (n *orderNode) RemainingBase() int64 {
	return n.ord.BaseAmount - n.ord.BaseFilled
}

func (n *orderNode) ResolvePrice(ctx book.Context) (int64, bool) {
	switch n.ord.OrderType {
	case orderTypeLimit:
		if n.ord.Price <= 0 {
			return 0, false
		}
		return n.ord.Price, true
	case orderTypeOracle:
		if !ctx.HasOracle {
			return 0, false
		}
		price := ctx.OraclePrice + n.ord.OracleOffset
		if price <= 0 {
			return 0, false
		}
		return price, true
	default:
		return 0, false
	}
}
