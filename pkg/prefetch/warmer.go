// Package prefetch warms the result store with a batch of parameter sets
// in parallel, e.g. adjacent normalization methods at analysis start.
package prefetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/depthlab/noisecache/pkg/params"
	"github.com/depthlab/noisecache/pkg/store"
)

// FetchFunc performs one statistics fetch. The warmer does not care which
// slot a query belongs to; callers typically dispatch on q.Mode.
type FetchFunc func(ctx context.Context, q params.Query) (any, error)

// Config holds warmer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches.
	MaxConcurrency int

	// Timeout bounds each individual fetch.
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Warmer fills a result store with a worker pool of fetches.
type Warmer struct {
	store  *store.Store
	fetch  FetchFunc
	config Config
	logger zerolog.Logger
}

// NewWarmer creates a warmer writing into st.
func NewWarmer(st *store.Store, fetch FetchFunc, config Config) (*Warmer, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if fetch == nil {
		return nil, fmt.Errorf("fetch func is required")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Warmer{
		store:  st,
		fetch:  fetch,
		config: config,
		logger: log.With().Str("component", "prefetch").Logger(),
	}, nil
}

// Warm fetches every query not already cached and stores the results.
// Individual failures are logged and skipped; the warm is best-effort and
// returns the number of entries added plus the first worker error, if any.
func (w *Warmer) Warm(ctx context.Context, queries []params.Query) (int, error) {
	start := time.Now()

	type job struct {
		query params.Query
		key   string
	}

	jobs := make([]job, 0, len(queries))
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			w.logger.Warn().Err(err).Msg("Skipping invalid prefetch query")
			continue
		}
		key, err := params.Encode(q)
		if err != nil {
			w.logger.Warn().Err(err).Msg("Skipping unencodable prefetch query")
			continue
		}
		if w.store.Has(key) {
			continue
		}
		jobs = append(jobs, job{query: q, key: key})
	}

	if len(jobs) == 0 {
		return 0, nil
	}

	w.logger.Info().
		Int("queries", len(jobs)).
		Int("workers", w.config.MaxConcurrency).
		Msg("Starting cache warm")

	queue := make(chan job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	errs := make(chan error, w.config.MaxConcurrency)

	var mu sync.Mutex
	warmed := 0

	var wg sync.WaitGroup
	for i := 0; i < w.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				select {
				case <-ctx.Done():
					return
				default:
				}

				fetchCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
				payload, err := w.fetch(fetchCtx, j.query)
				cancel()

				if err != nil {
					w.logger.Warn().
						Err(err).
						Str("key", j.key).
						Msg("Prefetch failed")
					select {
					case errs <- err:
					default:
					}
					continue
				}

				w.store.Set(j.key, payload)
				mu.Lock()
				warmed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)

	var firstErr error
	select {
	case firstErr = <-errs:
	default:
	}

	w.logger.Info().
		Int("warmed", warmed).
		Int("queries", len(jobs)).
		Dur("duration", time.Since(start)).
		Msg("Cache warm complete")

	if firstErr != nil {
		return warmed, fmt.Errorf("warm incomplete (%d/%d entries): %w", warmed, len(jobs), firstErr)
	}
	return warmed, nil
}
