package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cachesim/cachesim/pkg/store"
)

// newTestStore connects to the server named by CACHESIM_REDIS_ADDR and
// isolates the test under its own prefix. Tests that need a live server
// are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("CACHESIM_REDIS_ADDR")
	if addr == "" {
		t.Skip("CACHESIM_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	s := New(client, "cachesim_test:"+strings.ToLower(t.Name()))
	t.Cleanup(func() {
		_ = s.Clear(context.Background())
		_ = s.Close()
	})
	return s
}

// newDownStore points at a port nothing listens on.
func newDownStore(t *testing.T) *Store {
	t.Helper()
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := New(client, "cachesim_test:down")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUnavailableBackend(t *testing.T) {
	s := newDownStore(t)
	ctx := context.Background()

	if s.Available(ctx) {
		t.Error("expected unavailable backend")
	}

	_, err := s.Get(ctx, "k1")
	if !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}

	if err := s.Put(ctx, "k1", []byte("v1"), 0); !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}

	if _, err := s.Snapshot(ctx); !errors.Is(err, store.ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v1" {
		t.Errorf("expected v1, got %s", got)
	}

	_, err = s.Get(ctx, "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	n, _ := s.Len(ctx)
	if n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
}

func TestExpiredEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "k1", []byte("v1"), -time.Second); err != nil {
		t.Fatal(err)
	}

	// Expired entries stay visible to snapshots until observed by a Get.
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 || !snap[0].Expired(time.Now()) {
		t.Fatalf("expected one expired snapshot entry, got %+v", snap)
	}

	if _, err := s.Get(ctx, "k1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	n, _ := s.Len(ctx)
	if n != 0 {
		t.Errorf("expected 0 entries after lazy removal, got %d", n)
	}
}

func TestMalformedEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Write garbage under the prefix directly.
	if err := s.rdb.Set(ctx, s.key("bad"), "not msgpack", 0).Err(); err != nil {
		t.Fatal(err)
	}
	s.count++

	_, err := s.Get(ctx, "bad")
	if !errors.Is(err, store.ErrMalformedEntry) {
		t.Errorf("expected ErrMalformedEntry, got %v", err)
	}
	n, _ := s.Len(ctx)
	if n != 0 {
		t.Errorf("expected malformed entry dropped, got %d entries", n)
	}
}

func TestTouchAndSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, "a", []byte("1"), time.Minute)
	_ = s.Put(ctx, "b", []byte("2"), time.Minute)

	if err := s.Touch(ctx, "a", time.Hour); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	byKey := make(map[string]store.EntryInfo, len(snap))
	for _, e := range snap {
		byKey[e.Key] = e
	}
	if len(byKey) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(byKey))
	}
	if !byKey["a"].LastAccess.After(byKey["b"].LastAccess) {
		t.Error("expected touched entry to carry the newer last-access time")
	}
	if !byKey["a"].ExpiresAt.After(byKey["b"].ExpiresAt) {
		t.Error("expected Touch with ttl to slide the deadline forward")
	}
}

func TestClearIsolatesPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	other := New(goredis.NewClient(&goredis.Options{Addr: os.Getenv("CACHESIM_REDIS_ADDR")}), s.prefix[:len(s.prefix)-1]+"_other")
	t.Cleanup(func() {
		_ = other.Clear(context.Background())
		_ = other.Close()
	})

	for i := range 3 {
		_ = s.Put(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0)
	}
	_ = other.Put(ctx, "k0", []byte("v"), 0)

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	n, _ := s.Len(ctx)
	if n != 0 {
		t.Errorf("expected 0 entries after clear, got %d", n)
	}
	if _, err := other.Get(ctx, "k0"); err != nil {
		t.Errorf("expected other prefix untouched, got %v", err)
	}
}
