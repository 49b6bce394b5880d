package store

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCapacity bounds the number of cached result payloads. Payloads for
// this dashboard are small aggregates, so the bound is a count, not bytes.
const DefaultCapacity = 128

// Entry is one cached result payload. Entries are immutable once stored;
// a new fetch for the same key replaces the whole entry.
type Entry struct {
	// Key is the canonical cache key the entry was stored under.
	Key string

	// Payload is the decoded response for one logical query
	// (*statsapi.GeneNoiseResult or *statsapi.EnrichmentResult).
	Payload any

	// StoredAt is when the entry was written.
	StoredAt time.Time
}

// Config holds store configuration.
type Config struct {
	// Capacity is the maximum number of entries before LRU eviction.
	Capacity int

	// Clock supplies entry timestamps. Nil means the real clock.
	Clock clockwork.Clock
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
	}
}

// Store is a bounded, process-lifetime LRU cache of result payloads.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.Mutex
	lru      *lru.Cache[string, *Entry]
	clock    clockwork.Clock
	logger   zerolog.Logger
	clearing bool
}

// New creates a store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("store capacity must be positive (got %d)", cfg.Capacity)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := log.With().Str("component", "result-store").Logger()

	s := &Store{
		clock:  clock,
		logger: logger,
	}

	cache, err := lru.NewWithEvict(cfg.Capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	s.lru = cache

	return s, nil
}

// Get returns the entry stored under key, updating its recency.
// The second return value reports whether the key was present.
func (s *Store) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	entry, ok := s.lru.Get(key)
	s.mu.Unlock()

	if !ok {
		cacheMisses.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return entry, true
}

// Set stores payload under key, replacing any previous entry atomically
// and evicting the least-recently-used entries if the store exceeds its
// capacity. The created entry is returned.
func (s *Store) Set(key string, payload any) *Entry {
	entry := &Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: s.clock.Now(),
	}

	s.mu.Lock()
	s.lru.Add(key, entry)
	cacheEntries.Set(float64(s.lru.Len()))
	s.mu.Unlock()

	s.logger.Debug().
		Str("key", key).
		Msg("Cached result payload")

	return entry
}

// Has reports whether key is present without updating its recency.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Contains(key)
}

// Clear drops all entries. Used on hard resets, e.g., starting a fresh
// analysis.
func (s *Store) Clear() {
	s.mu.Lock()
	s.clearing = true
	s.lru.Purge()
	s.clearing = false
	cacheEntries.Set(0)
	s.mu.Unlock()

	s.logger.Debug().Msg("Cleared result store")
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// onEvict runs inside the LRU while s.mu is held; it must not call back
// into the store. Purge during Clear also lands here and is not counted
// as a capacity eviction.
func (s *Store) onEvict(key string, _ *Entry) {
	if s.clearing {
		return
	}
	cacheEvictions.Inc()
	s.logger.Debug().
		Str("key", key).
		Msg("Evicted least-recently-used entry")
}
