package drift

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"driftbook/logger"
)

const (
	slotFeedStaleAfter  = 10 * time.Second
	slotFeedRedialDelay = 2 * time.Second
)

// SlotFeed keeps the current slot fresh through a websocket subscription,
// sparing the refresh cycle one RPC round trip per tick. When the feed is
// not configured or its value has gone stale the provider falls back to
// polling getSlot.
type SlotFeed struct {
	url string
	log *logger.Log

	slot    atomic.Uint64
	seenAt  atomic.Int64 // unix nanos of the last notification
	started bool
	wg      sync.WaitGroup
}

// NewSlotFeed returns nil when no websocket endpoint is configured.
func NewSlotFeed(url string) *SlotFeed {
	if url == "" {
		return nil
	}
	return &SlotFeed{url: url, log: logger.GetLogger()}
}

// Start launches the subscription loop. Idempotent; the loop reconnects
// with a fixed delay until the context is cancelled.
func (f *SlotFeed) Start(ctx context.Context) {
	if f == nil || f.started {
		return
	}
	f.started = true

	f.wg.Add(1)
	go f.run(ctx)
}

// Current returns the most recent slot and whether it is fresh enough to
// use instead of a polled value.
func (f *SlotFeed) Current() (uint64, bool) {
	if f == nil {
		return 0, false
	}
	seen := f.seenAt.Load()
	if seen == 0 || time.Since(time.Unix(0, seen)) > slotFeedStaleAfter {
		return 0, false
	}
	return f.slot.Load(), true
}

// Wait blocks until the subscription loop has exited.
func (f *SlotFeed) Wait() {
	if f == nil {
		return
	}
	f.wg.Wait()
}

func (f *SlotFeed) run(ctx context.Context) {
	defer f.wg.Done()

	log := f.log.WithComponent("slot_feed").WithFields(logger.Fields{"url": f.url})

	for {
		if ctx.Err() != nil {
			log.Info("slot feed stopped due to context cancellation")
			return
		}

		if err := f.subscribe(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("slot subscription dropped, reconnecting")
		}

		select {
		case <-ctx.Done():
			log.Info("slot feed stopped due to context cancellation")
			return
		case <-time.After(slotFeedRedialDelay):
		}
	}
}

type slotNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Slot uint64 `json:"slot"`
		} `json:"result"`
	} `json:"params"`
}

func (f *SlotFeed) subscribe(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the socket when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "slotSubscribe",
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	f.log.WithComponent("slot_feed").Info("slot subscription established")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var note slotNotification
		if err := json.Unmarshal(payload, &note); err != nil {
			continue
		}
		if note.Method != "slotNotification" {
			continue
		}
		f.slot.Store(note.Params.Result.Slot)
		f.seenAt.Store(time.Now().UnixNano())
		logger.RecordFlow("slot_notification", len(payload))
	}
}
