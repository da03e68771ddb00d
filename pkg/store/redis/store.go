// Package redis backs the entry store with a Redis server. Values travel
// as msgpack envelopes carrying their own expiry and recency metadata, so
// policy decisions are identical to the in-memory store's. A lost
// connection degrades every operation to ErrBackendUnavailable instead of
// failing the run.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cachesim/cachesim/pkg/store"
)

type envelope struct {
	Value      []byte    `msgpack:"value"`
	CreatedAt  time.Time `msgpack:"created_at"`
	ExpiresAt  time.Time `msgpack:"expires_at"`
	LastAccess time.Time `msgpack:"last_access"`
	Seq        uint64    `msgpack:"seq"`
}

// Store keeps entries in Redis under a common key prefix. Like the
// in-memory store it is owned by a single engine instance; Len counts the
// entries written through this instance, so Clear the prefix before reuse.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
	seq    uint64
	count  int
}

// New wraps an existing client. The prefix isolates one configuration's
// keys from another's when several runs share a server.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "cachesim"
	}
	return &Store{rdb: client, prefix: prefix + ":"}
}

func (s *Store) key(k string) string { return s.prefix + k }

// Get returns the value for key, or ErrNotFound if the key is absent or
// expired. Expired entries are removed on observation.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		s.drop(ctx, key)
		return nil, fmt.Errorf("%w: %v", store.ErrMalformedEntry, err)
	}
	if !env.ExpiresAt.IsZero() && !time.Now().Before(env.ExpiresAt) {
		s.drop(ctx, key)
		return nil, store.ErrNotFound
	}
	return env.Value, nil
}

// Put inserts or replaces the entry for key. A zero ttl means the entry
// never expires.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	existed, err := s.Has(ctx, key)
	if err != nil {
		return err
	}

	now := time.Now()
	var expiresAt time.Time
	if ttl != 0 {
		expiresAt = now.Add(ttl)
	}
	s.seq++
	data, err := msgpack.Marshal(envelope{
		Value:      value,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		LastAccess: now,
		Seq:        s.seq,
	})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	if err := s.rdb.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}
	if !existed {
		s.count++
	}
	return nil
}

// Has reports whether key occupies a slot, expired or not.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

// Remove deletes the entry for key and reports whether it was present.
func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}
	if n > 0 && s.count > 0 {
		s.count--
	}
	return n > 0, nil
}

// Touch bumps the entry's last-access time. A positive ttl also slides the
// expiry deadline forward.
func (s *Store) Touch(ctx context.Context, key string, ttl time.Duration) error {
	data, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}

	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		s.drop(ctx, key)
		return fmt.Errorf("%w: %v", store.ErrMalformedEntry, err)
	}
	now := time.Now()
	env.LastAccess = now
	if ttl > 0 {
		env.ExpiresAt = now.Add(ttl)
	}

	updated, err := msgpack.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(key), updated, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}
	return nil
}

// Len returns the number of entries written through this instance.
func (s *Store) Len(_ context.Context) (int, error) {
	return s.count, nil
}

// Snapshot scans the prefix and returns metadata for every held entry,
// expired ones included. Undecodable entries are dropped.
func (s *Store) Snapshot(ctx context.Context) ([]store.EntryInfo, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}

	infos := make([]store.EntryInfo, 0, len(keys))
	for i, val := range vals {
		raw, ok := val.(string)
		if !ok {
			continue // deleted between scan and fetch
		}
		var env envelope
		if err := msgpack.Unmarshal([]byte(raw), &env); err != nil {
			s.drop(ctx, keys[i][len(s.prefix):])
			continue
		}
		infos = append(infos, store.EntryInfo{
			Key:        keys[i][len(s.prefix):],
			Seq:        env.Seq,
			LastAccess: env.LastAccess,
			ExpiresAt:  env.ExpiresAt,
		})
	}
	return infos, nil
}

// Clear deletes every key under the prefix.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
		}
	}
	s.count = 0
	return nil
}

// Available reports whether the server answers a ping.
func (s *Store) Available(ctx context.Context) bool {
	return s.rdb.Ping(ctx).Err() == nil
}

// Close releases the client connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrBackendUnavailable, err)
	}
	return keys, nil
}

// drop removes a key observed expired or undecodable, keeping the local
// count in step.
func (s *Store) drop(ctx context.Context, key string) {
	if n, err := s.rdb.Del(ctx, s.key(key)).Result(); err == nil && n > 0 && s.count > 0 {
		s.count--
	}
}
