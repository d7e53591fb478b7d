package book

import (
	"sync"
	"sync/atomic"

	"driftbook/models"
)

// Store holds the latest published BookSnapshot plus health metadata. The
// refresh scheduler is the only writer; the HTTP boundary reads concurrently.
// The snapshot is replaced by a single atomic pointer swap so readers always
// observe one fully-formed snapshot, never a torn mix of two cycles.
type Store struct {
	snap atomic.Pointer[models.BookSnapshot]

	mu        sync.Mutex
	lastOkAt  int64
	lastError string
}

// NewStore seeds the store with an empty "starting" snapshot so the serving
// boundary has something well-formed to return before the first cycle lands.
func NewStore() *Store {
	s := &Store{}
	s.snap.Store(&models.BookSnapshot{
		Market: models.MarketRef{Symbol: "--"},
		Bids:   []models.PriceLevel{},
		Asks:   []models.PriceLevel{},
		Status: models.StatusStarting,
	})
	return s
}

// Publish installs the snapshot of a successful cycle and clears any prior
// error. The snapshot must not be mutated after publishing.
func (s *Store) Publish(snap *models.BookSnapshot) {
	s.snap.Store(snap)

	s.mu.Lock()
	s.lastOkAt = snap.TS
	s.lastError = ""
	s.mu.Unlock()
}

// Fail records a cycle failure. The previous snapshot's price data stays
// visible; only the status flips to error, keeping stale-but-available
// semantics for readers.
func (s *Store) Fail(err error) {
	cur := s.snap.Load()
	next := *cur
	next.Status = models.StatusError
	s.snap.Store(&next)

	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// Snapshot returns the latest snapshot. It never blocks on network.
func (s *Store) Snapshot() models.BookSnapshot {
	return *s.snap.Load()
}

// Health reports the refresh-loop status alongside the last error message
// and the timestamp of the last successful cycle.
func (s *Store) Health() models.Health {
	status := s.snap.Load().Status

	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Health{
		Status:    status,
		LastOkAt:  s.lastOkAt,
		LastError: s.lastError,
	}
}
