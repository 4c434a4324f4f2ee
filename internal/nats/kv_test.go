package nats

import (
	"context"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/shop-assistant/internal/storage"
)

// memoryBucket mimics the revision rules of a JetStream key-value bucket:
// revisions are bucket-wide sequences, Create fails on a live key, and
// Update fails unless the revision is the key's latest.
type memoryBucket struct {
	jetstream.KeyValue

	mu      sync.Mutex
	seq     uint64
	entries map[string]memoryEntry
}

type memoryEntry struct {
	jetstream.KeyValueEntry

	value    []byte
	revision uint64
}

func (e memoryEntry) Value() []byte    { return e.value }
func (e memoryEntry) Revision() uint64 { return e.revision }

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{entries: make(map[string]memoryEntry)}
}

func (b *memoryBucket) write(key string, value []byte) uint64 {
	b.seq++
	b.entries[key] = memoryEntry{value: value, revision: b.seq}
	return b.seq
}

func (b *memoryBucket) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	return e, nil
}

func (b *memoryBucket) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write(key, value), nil
}

func (b *memoryBucket) Create(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return b.write(key, value), nil
}

func (b *memoryBucket) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; !ok || e.revision != revision {
		return 0, jetstream.ErrKeyExists
	}
	return b.write(key, value), nil
}

func (b *memoryBucket) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(b.entries, key)
	return nil
}

func TestKVStoreGetMissing(t *testing.T) {
	store := &KVStore{kv: newMemoryBucket()}

	_, err := store.Get(context.Background(), "s1.cartId")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKVStoreRevisions(t *testing.T) {
	ctx := context.Background()
	store := &KVStore{kv: newMemoryBucket()}

	rev, err := store.Update(ctx, "s1.cartId", []byte("cart-1"), 0)
	require.NoError(t, err)

	_, err = store.Update(ctx, "s1.cartId", []byte("cart-2"), 0)
	assert.ErrorIs(t, err, storage.ErrRevisionMismatch, "creating a live key conflicts")

	next, err := store.Update(ctx, "s1.cartId", []byte("cart-2"), rev)
	require.NoError(t, err)
	assert.Greater(t, next, rev)

	_, err = store.Update(ctx, "s1.cartId", []byte("cart-3"), rev)
	assert.ErrorIs(t, err, storage.ErrRevisionMismatch, "a stale revision conflicts")

	entry, err := store.Get(ctx, "s1.cartId")
	require.NoError(t, err)
	assert.Equal(t, "cart-2", string(entry.Value))
	assert.Equal(t, next, entry.Revision)
}

func TestKVStorePutAndDelete(t *testing.T) {
	ctx := context.Background()
	store := &KVStore{kv: newMemoryBucket()}

	_, err := store.Put(ctx, "s1.auth_token", []byte("tok"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "s1.auth_token"))
	require.NoError(t, store.Delete(ctx, "s1.auth_token"), "deleting a missing key is not an error")

	_, err = store.Get(ctx, "s1.auth_token")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKVStoreRejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	store := &KVStore{kv: newMemoryBucket()}

	_, err := store.Get(ctx, "bad key")
	assert.Error(t, err)
	_, err = store.Put(ctx, "bad key", nil)
	assert.Error(t, err)
	_, err = store.Update(ctx, "bad key", nil, 0)
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "bad key"))
}
