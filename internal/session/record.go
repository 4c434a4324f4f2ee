// Package session holds the per-shopper state the assistant keeps between
// turns: cart id, wishlist, chat history, and sign-in. Every store persists
// through a storage.Store under session-scoped keys.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
	"github.com/capitalize-ai/shop-assistant/pkg/metrics"
)

// Storage key names within a session.
const (
	KeyCartID        = "cartId"
	KeyWishlist      = "mm_wishlist_items"
	KeyChatHistory   = "mm_chat_history"
	KeyCurrentChatID = "mm_current_chat_id"
	KeyAuthToken     = "auth_token"
	KeyUserEmail     = "user_email"
)

// record is one storage key plus the revision this process last saw. Callers
// serialize access to a record.
type record struct {
	store    storage.Store
	key      string
	revision uint64
	logger   *logger.Logger
}

func newRecord(store storage.Store, sessionID, name string, log *logger.Logger) *record {
	return &record{
		store:  store,
		key:    storage.Key(sessionID, name),
		logger: log,
	}
}

// load returns the stored bytes, or nil when the key is missing.
func (r *record) load(ctx context.Context) ([]byte, error) {
	entry, err := r.store.Get(ctx, r.key)
	if errors.Is(err, storage.ErrNotFound) {
		r.revision = 0
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.revision = entry.Revision
	return entry.Value, nil
}

// save writes value expecting the last seen revision. If another writer got
// there first the conflict is logged and counted, then overwritten.
func (r *record) save(ctx context.Context, value []byte) error {
	rev, err := r.store.Update(ctx, r.key, value, r.revision)
	if errors.Is(err, storage.ErrRevisionMismatch) {
		r.logger.Warn("concurrent write detected, overwriting",
			zap.String("key", r.key),
			zap.Uint64("expected_revision", r.revision),
			zap.String("store", r.store.Name()),
		)
		metrics.StorageConflicts.WithLabelValues(r.store.Name()).Inc()
		rev, err = r.store.Put(ctx, r.key, value)
	}
	if err != nil {
		return err
	}
	r.revision = rev
	return nil
}

func (r *record) remove(ctx context.Context) error {
	if err := r.store.Delete(ctx, r.key); err != nil {
		return err
	}
	r.revision = 0
	return nil
}

func (r *record) loadString(ctx context.Context) (string, error) {
	data, err := r.load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", r.key, err)
	}
	return string(data), nil
}

func (r *record) saveString(ctx context.Context, value string) error {
	if value == "" {
		return r.remove(ctx)
	}
	if err := r.save(ctx, []byte(value)); err != nil {
		return fmt.Errorf("failed to save %s: %w", r.key, err)
	}
	return nil
}

// loadJSON decodes the stored value into dst. A missing or corrupt value
// leaves dst untouched; corrupt values are logged and treated as empty.
func (r *record) loadJSON(ctx context.Context, dst any) error {
	data, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", r.key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		r.logger.Warn("discarding unreadable stored value", zap.String("key", r.key), zap.Error(err))
	}
	return nil
}

func (r *record) saveJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", r.key, err)
	}
	if err := r.save(ctx, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", r.key, err)
	}
	return nil
}
