package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/shop-assistant/internal/storage"
)

// BucketName is the key-value bucket holding session state.
const BucketName = "SHOPCHAT_SESSIONS"

// KVStore is a storage.Store backed by a JetStream key-value bucket. Bucket
// revisions are stream sequences, so they grow across all keys.
type KVStore struct {
	kv jetstream.KeyValue
}

// EnsureKVStore opens the session bucket, creating it on first use. A zero
// ttl keeps entries forever.
func EnsureKVStore(ctx context.Context, client *Client, ttl time.Duration) (*KVStore, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, BucketName)
	if err == nil {
		return &KVStore{kv: kv}, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketName,
		Description: "Shopping assistant session state",
		History:     1,
		TTL:         ttl,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &KVStore{kv: kv}, nil
}

// Name implements storage.Store.
func (s *KVStore) Name() string { return "nats" }

// Get implements storage.Store.
func (s *KVStore) Get(ctx context.Context, key string) (*storage.Entry, error) {
	if !storage.ValidKey(key) {
		return nil, fmt.Errorf("invalid key %q", key)
	}
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return &storage.Entry{Value: entry.Value(), Revision: entry.Revision()}, nil
}

// Put implements storage.Store.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if !storage.ValidKey(key) {
		return 0, fmt.Errorf("invalid key %q", key)
	}
	rev, err := s.kv.Put(ctx, key, value)
	if err != nil {
		return 0, fmt.Errorf("failed to write %q: %w", key, err)
	}
	return rev, nil
}

// Update implements storage.Store.
func (s *KVStore) Update(ctx context.Context, key string, value []byte, expected uint64) (uint64, error) {
	if !storage.ValidKey(key) {
		return 0, fmt.Errorf("invalid key %q", key)
	}

	var (
		rev uint64
		err error
	)
	if expected == 0 {
		rev, err = s.kv.Create(ctx, key, value)
	} else {
		rev, err = s.kv.Update(ctx, key, value, expected)
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return 0, storage.ErrRevisionMismatch
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update %q: %w", key, err)
	}
	return rev, nil
}

// Delete implements storage.Store.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if !storage.ValidKey(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}
