// Package store provides the in-memory result store for decoded
// statistics payloads.
//
// The store maps canonical cache keys (see pkg/params) to immutable
// entries with the following properties:
//
// - Bounded capacity with least-recently-used eviction
// - Recency updated on both Get and Set; Has does not touch recency
// - Atomic entry replacement: readers never observe a partial write
// - Process lifetime only, no persistence and no TTL
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	st, err := store.New(store.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	key := params.MustEncode(query)
//
//	if entry, ok := st.Get(key); ok {
//		// Cache hit - serve entry.Payload without a network call
//	}
//
//	// After a successful fetch
//	st.Set(key, payload)
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - noise_cache_hits_total - Cache hits
//   - noise_cache_misses_total - Cache misses
//   - noise_cache_evictions_total - Entries evicted at capacity
//   - noise_cache_entries - Current number of entries
//
// # Lifetime
//
// A store is created once per analysis session and dropped with it.
// Entries persist until evicted by capacity pressure or removed by
// Clear; there is deliberately no TTL because the underlying dataset
// is immutable for the duration of a session.
package store
