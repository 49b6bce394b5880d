package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestStore(t *testing.T, capacity int) *Store {
	t.Helper()

	s, err := New(Config{Capacity: capacity})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := New(Config{Capacity: capacity}); err == nil {
			t.Errorf("New with capacity %d should return error", capacity)
		}
	}
}

func TestStore_SetAndGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := New(Config{Capacity: 4, Clock: clock})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	payload := map[string]float64{"TP53": 1.5}
	entry := s.Set("noise:gene-noise:tpm:raw:abc", payload)

	if entry.Key != "noise:gene-noise:tpm:raw:abc" {
		t.Errorf("entry key = %q", entry.Key)
	}
	if !entry.StoredAt.Equal(clock.Now()) {
		t.Errorf("StoredAt = %v, want %v", entry.StoredAt, clock.Now())
	}

	got, ok := s.Get("noise:gene-noise:tpm:raw:abc")
	if !ok {
		t.Fatal("Get after Set reported a miss")
	}
	if got != entry {
		t.Error("Get returned a different entry than Set created")
	}
}

func TestStore_Get_Miss(t *testing.T) {
	s := newTestStore(t, 4)

	if _, ok := s.Get("absent"); ok {
		t.Error("Get on empty store reported a hit")
	}
}

func TestStore_Set_ReplacesAtomically(t *testing.T) {
	s := newTestStore(t, 4)

	first := s.Set("k", "v1")
	second := s.Set("k", "v2")

	if first == second {
		t.Error("replacement reused the old entry instead of creating a new one")
	}

	got, ok := s.Get("k")
	if !ok {
		t.Fatal("Get after replace reported a miss")
	}
	if got.Payload != "v2" {
		t.Errorf("Payload = %v, want v2", got.Payload)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	// Entries are immutable: the replaced entry still holds its payload.
	if first.Payload != "v1" {
		t.Errorf("replaced entry was mutated: %v", first.Payload)
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := newTestStore(t, 3)

	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("c", 3)

	// Touch "a" so "b" becomes the least recently used.
	if _, ok := s.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}

	s.Set("d", 4)

	if s.Has("b") {
		t.Error("least-recently-used key b survived eviction")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !s.Has(key) {
			t.Errorf("key %s missing after eviction", key)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
}

func TestStore_CapacityPlusOne(t *testing.T) {
	const capacity = 8
	s := newTestStore(t, capacity)

	for i := 0; i <= capacity; i++ {
		s.Set(fmt.Sprintf("key-%d", i), i)
	}

	if s.Has("key-0") {
		t.Error("oldest key present after inserting capacity+1 entries")
	}
	for i := 1; i <= capacity; i++ {
		if !s.Has(fmt.Sprintf("key-%d", i)) {
			t.Errorf("key-%d missing", i)
		}
	}
}

func TestStore_HasDoesNotUpdateRecency(t *testing.T) {
	s := newTestStore(t, 2)

	s.Set("a", 1)
	s.Set("b", 2)

	// Has must not promote "a"; the next insert should evict it.
	if !s.Has("a") {
		t.Fatal("expected a present")
	}
	s.Set("c", 3)

	if s.Has("a") {
		t.Error("Has promoted key a; expected it evicted")
	}
	if !s.Has("b") || !s.Has("c") {
		t.Error("expected b and c present")
	}
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t, 4)

	s.Set("a", 1)
	s.Set("b", 2)
	s.Clear()

	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
	if s.Has("a") || s.Has("b") {
		t.Error("entries survived Clear")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t, 32)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d", i%16)
				s.Set(key, time.Now())
				if entry, ok := s.Get(key); ok && entry.Key != key {
					t.Errorf("torn read: entry key %q under %q", entry.Key, key)
				}
				s.Has(key)
			}
		}(g)
	}
	wg.Wait()
}
