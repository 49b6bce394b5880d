// Package coordinator translates parameter-change events into a minimal,
// correct set of statistics fetches, with debouncing, cancellation of
// superseded requests, and generation-gated cache commits.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/depthlab/noisecache/pkg/params"
	"github.com/depthlab/noisecache/pkg/statsapi"
	"github.com/depthlab/noisecache/pkg/store"
)

// Slot identifies one independently coordinated query category. Slots do
// not share debounce timers or generation counters: a gene-list change
// must not cancel an in-flight enrichment call.
type Slot string

const (
	SlotGeneNoise  Slot = "gene-noise"
	SlotEnrichment Slot = "enrichment"
)

// Status is the consumer-visible state of a slot.
type Status string

const (
	// StatusIdle means no request has been issued yet.
	StatusIdle Status = "idle"

	// StatusLoading covers both the debounce window and the in-flight
	// network call.
	StatusLoading Status = "loading"

	// StatusReady means Entry holds the result of the latest settled
	// fetch or cache hit.
	StatusReady Status = "ready"

	// StatusError means the latest fetch failed terminally.
	StatusError Status = "error"
)

// Snapshot is what consumers observe for a slot. While a superseding fetch
// is loading, Entry keeps the last ready result so the UI can keep
// rendering stale-but-valid data instead of flickering.
type Snapshot struct {
	Status     Status
	Entry      *store.Entry
	Err        error
	Generation uint64
}

// Fetcher is the network boundary the coordinator calls on a cache miss.
// *statsapi.Client implements it.
type Fetcher interface {
	FetchGeneNoise(ctx context.Context, q params.Query) (*statsapi.GeneNoiseResult, error)
	FetchEnrichment(ctx context.Context, q params.Query) (*statsapi.EnrichmentResult, error)
}

// Config holds coordinator configuration.
type Config struct {
	// Fetcher performs the actual statistics calls (required).
	Fetcher Fetcher

	// Store receives settled payloads (required).
	Store *store.Store

	// DebounceDelay is how long a slot waits after the last parameter
	// change before issuing a network call.
	DebounceDelay time.Duration

	// RequestTimeout bounds one in-flight call so a hung request cannot
	// tie up a slot indefinitely.
	RequestTimeout time.Duration

	// Clock supplies debounce timers. Nil means the real clock.
	Clock clockwork.Clock
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(fetcher Fetcher, st *store.Store) Config {
	return Config{
		Fetcher:        fetcher,
		Store:          st,
		DebounceDelay:  400 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
	}
}

// slotState is the per-slot state machine. All fields are guarded by the
// coordinator mutex.
type slotState struct {
	gen       uint64
	status    Status
	query     params.Query
	key       string
	hasQuery  bool
	timer     clockwork.Timer
	cancel    context.CancelFunc
	lastReady *store.Entry
	lastErr   error
	subs      map[uint64]chan Snapshot
	nextSubID uint64
}

// Coordinator owns one pending request per slot and writes settled results
// into the store. It is safe for concurrent use.
type Coordinator struct {
	config Config
	clock  clockwork.Clock
	store  *store.Store
	logger zerolog.Logger

	mu     sync.Mutex
	slots  map[Slot]*slotState
	closed bool
}

// New creates a coordinator for the gene-noise and enrichment slots.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 400 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &Coordinator{
		config: cfg,
		clock:  clock,
		store:  cfg.Store,
		logger: log.With().Str("component", "fetch-coordinator").Logger(),
		slots:  make(map[Slot]*slotState),
	}
	for _, slot := range []Slot{SlotGeneNoise, SlotEnrichment} {
		c.slots[slot] = &slotState{
			status: StatusIdle,
			subs:   make(map[uint64]chan Snapshot),
		}
	}
	return c, nil
}

// Request records a parameter change for a slot. A cache hit is delivered
// synchronously; a miss arms (or rearms) the debounce timer and supersedes
// any in-flight call for the slot. Later changes win: only the newest
// parameters ever reach the network.
//
// A validation failure is returned to the caller and published to
// subscribers; no network call is made.
func (c *Coordinator) Request(slot Slot, q params.Query) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.slotLocked(slot)
	if err != nil {
		return err
	}

	q.Mode = modeFor(slot)

	if verr := q.Validate(); verr != nil {
		qerr := &statsapi.QueryError{
			Kind:    statsapi.ErrorKindValidation,
			Message: "query rejected",
			Err:     verr,
		}
		c.supersedeLocked(s)
		s.status = StatusError
		s.lastErr = qerr
		c.publishLocked(s)
		return qerr
	}

	key, kerr := params.Encode(q)
	if kerr != nil {
		qerr := &statsapi.QueryError{
			Kind:    statsapi.ErrorKindValidation,
			Message: "encode cache key",
			Err:     kerr,
		}
		c.supersedeLocked(s)
		s.status = StatusError
		s.lastErr = qerr
		c.publishLocked(s)
		return qerr
	}

	s.query = q
	s.key = key
	s.hasQuery = true

	// Cache hit: supersede any pending work and deliver synchronously.
	if entry, ok := c.store.Get(key); ok {
		c.supersedeLocked(s)
		s.status = StatusReady
		s.lastReady = entry
		s.lastErr = nil
		c.logger.Debug().
			Str("slot", string(slot)).
			Str("key", key).
			Msg("Cache hit")
		c.publishLocked(s)
		return nil
	}

	// Cache miss: supersede and debounce.
	c.supersedeLocked(s)
	s.status = StatusLoading
	s.lastErr = nil

	gen := s.gen
	s.timer = c.clock.AfterFunc(c.config.DebounceDelay, func() {
		c.fire(slot, gen)
	})

	c.logger.Debug().
		Str("slot", string(slot)).
		Str("key", key).
		Uint64("generation", gen).
		Msg("Debouncing fetch")
	c.publishLocked(s)
	return nil
}

// Refetch bypasses both the cache and the debounce window and reissues the
// slot's last requested parameters immediately. It is a no-op for a slot
// that has never seen a request.
func (c *Coordinator) Refetch(slot Slot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.slotLocked(slot)
	if err != nil {
		return err
	}
	if !s.hasQuery {
		return nil
	}

	c.supersedeLocked(s)
	s.status = StatusLoading
	s.lastErr = nil
	c.publishLocked(s)

	c.startFetchLocked(slot, s)
	return nil
}

// Subscribe registers a consumer for a slot. The returned channel carries
// the latest snapshot (older undelivered snapshots are dropped) and
// receives the current state immediately. The returned func unsubscribes
// and closes the channel.
func (c *Coordinator) Subscribe(slot Slot) (<-chan Snapshot, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.slotLocked(slot)
	if err != nil {
		return nil, nil, err
	}

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch
	ch <- c.snapshotLocked(s)

	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe, nil
}

// Current returns the slot's current snapshot.
func (c *Coordinator) Current(slot Slot) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.slotLocked(slot)
	if err != nil {
		return Snapshot{}, err
	}
	return c.snapshotLocked(s), nil
}

// Close cancels all slots and stops their timers. After Close no late
// callback can write to the store or reach a subscriber, so an abandoned
// analysis leaves no phantom cache writes behind.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for slot, s := range c.slots {
		c.supersedeLocked(s)
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		c.logger.Debug().
			Str("slot", string(slot)).
			Msg("Slot closed")
	}
}

// fire runs when a slot's debounce timer expires.
func (c *Coordinator) fire(slot Slot, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slots[slot]
	if c.closed || gen != s.gen {
		// Superseded while the timer callback was pending.
		return
	}
	c.startFetchLocked(slot, s)
}

// startFetchLocked issues the network call for the slot's current
// parameters and generation. Caller holds c.mu.
func (c *Coordinator) startFetchLocked(slot Slot, s *slotState) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.RequestTimeout)
	s.cancel = cancel

	gen := s.gen
	q := s.query
	key := s.key

	c.logger.Debug().
		Str("slot", string(slot)).
		Str("key", key).
		Uint64("generation", gen).
		Msg("Issuing fetch")

	go c.fetch(ctx, slot, gen, q, key)
}

// fetch performs the network call and commits the result if, and only if,
// the slot's generation still matches.
func (c *Coordinator) fetch(ctx context.Context, slot Slot, gen uint64, q params.Query, key string) {
	var payload any
	var err error

	switch slot {
	case SlotGeneNoise:
		payload, err = c.config.Fetcher.FetchGeneNoise(ctx, q)
	case SlotEnrichment:
		payload, err = c.config.Fetcher.FetchEnrichment(ctx, q)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.slots[slot]
	if c.closed || gen != s.gen {
		// A newer generation superseded this call while it was in
		// flight. Its result must not reach the store or consumers.
		c.logger.Debug().
			Str("slot", string(slot)).
			Uint64("generation", gen).
			Uint64("current", s.gen).
			Msg("Discarding stale fetch result")
		return
	}
	s.cancel = nil

	if err != nil {
		s.status = StatusError
		s.lastErr = wrapFetchError(err)
		c.logger.Error().
			Err(err).
			Str("slot", string(slot)).
			Str("key", key).
			Msg("Fetch failed")
		c.publishLocked(s)
		return
	}

	entry := c.store.Set(key, payload)
	s.status = StatusReady
	s.lastReady = entry
	s.lastErr = nil
	c.logger.Debug().
		Str("slot", string(slot)).
		Str("key", key).
		Uint64("generation", gen).
		Msg("Fetch settled")
	c.publishLocked(s)
}

// supersedeLocked invalidates the slot's pending work: the generation is
// bumped so any armed timer or in-flight call becomes stale, the timer is
// stopped, and the in-flight transport call (if any) is aborted.
func (c *Coordinator) supersedeLocked(s *slotState) {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (c *Coordinator) snapshotLocked(s *slotState) Snapshot {
	return Snapshot{
		Status:     s.status,
		Entry:      s.lastReady,
		Err:        s.lastErr,
		Generation: s.gen,
	}
}

// publishLocked delivers the current snapshot to every subscriber.
// Channels are buffered latest-wins: an undelivered older snapshot is
// replaced rather than blocking the coordinator.
func (c *Coordinator) publishLocked(s *slotState) {
	snap := c.snapshotLocked(s)
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (c *Coordinator) slotLocked(slot Slot) (*slotState, error) {
	if c.closed {
		return nil, fmt.Errorf("coordinator is closed")
	}
	s, ok := c.slots[slot]
	if !ok {
		return nil, fmt.Errorf("unknown slot %q", string(slot))
	}
	return s, nil
}

// wrapFetchError ensures consumers always observe a classified error.
func wrapFetchError(err error) error {
	if statsapi.KindOf(err) != "" {
		return err
	}
	return &statsapi.QueryError{
		Kind:    statsapi.ErrorKindNetwork,
		Message: "fetch failed",
		Err:     err,
	}
}

func modeFor(slot Slot) params.Mode {
	if slot == SlotEnrichment {
		return params.ModeEnrichment
	}
	return params.ModeGeneNoise
}
