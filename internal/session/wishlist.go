package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// DefaultCurrency is used when a product carries no price currency.
const DefaultCurrency = "VND"

// ErrNotSignedIn is returned by operations that need a customer token.
var ErrNotSignedIn = errors.New("not signed in")

// WishlistSyncer uploads a wishlist and returns the account's merged list.
type WishlistSyncer interface {
	SyncWishlist(ctx context.Context, items []model.WishlistItem, token string) ([]model.WishlistItem, error)
}

// TokenSource yields the current customer token, or "" when signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// WishlistStore is the shopper's set of favorite products, keyed by sku.
type WishlistStore struct {
	mu     sync.Mutex
	rec    *record
	syncer WishlistSyncer
	tokens TokenSource
	logger *logger.Logger
	now    func() time.Time
}

// NewWishlistStore creates a wishlist store. syncer and tokens may be nil, in
// which case mutations never sync.
func NewWishlistStore(store storage.Store, sessionID string, syncer WishlistSyncer, tokens TokenSource, log *logger.Logger) *WishlistStore {
	return &WishlistStore{
		rec:    newRecord(store, sessionID, KeyWishlist, log),
		syncer: syncer,
		tokens: tokens,
		logger: log,
		now:    time.Now,
	}
}

// ItemFromProduct snapshots the fields of p the wishlist keeps.
func ItemFromProduct(p commerce.Product, now time.Time) model.WishlistItem {
	item := model.WishlistItem{
		ID:        string(p.ID),
		SKU:       p.SKU,
		Name:      p.Name,
		Currency:  DefaultCurrency,
		Image:     p.ImageURL(),
		Timestamp: now.UTC(),
	}
	if item.ID == "" {
		item.ID = strconv.FormatInt(now.UnixMilli(), 10)
	}
	if price, ok := p.Price(); ok {
		item.Price = price.Value
		if price.Currency != "" {
			item.Currency = price.Currency
		}
	}
	return item
}

// GetAll returns a copy of the wishlist in insertion order.
func (s *WishlistStore) GetAll(ctx context.Context) ([]model.WishlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Count returns the number of wishlist items.
func (s *WishlistStore) Count(ctx context.Context) (int, error) {
	items, err := s.GetAll(ctx)
	return len(items), err
}

// IsIn reports whether sku is in the wishlist.
func (s *WishlistStore) IsIn(ctx context.Context, sku string) (bool, error) {
	items, err := s.GetAll(ctx)
	if err != nil {
		return false, err
	}
	return indexOf(items, sku) >= 0, nil
}

// Add snapshots p into the wishlist. It returns false without error when p
// has no sku or is already present.
func (s *WishlistStore) Add(ctx context.Context, p commerce.Product) (bool, error) {
	if p.SKU == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if indexOf(items, p.SKU) >= 0 {
		return false, nil
	}
	return true, s.commit(ctx, append(items, ItemFromProduct(p, s.now())))
}

// Remove deletes sku from the wishlist. It returns false when sku was absent.
func (s *WishlistStore) Remove(ctx context.Context, sku string) (bool, error) {
	if sku == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	i := indexOf(items, sku)
	if i < 0 {
		return false, nil
	}
	return true, s.commit(ctx, append(items[:i], items[i+1:]...))
}

// Toggle adds p if absent and removes it otherwise. added reports which.
func (s *WishlistStore) Toggle(ctx context.Context, p commerce.Product) (added bool, err error) {
	if p.SKU == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if i := indexOf(items, p.SKU); i >= 0 {
		return false, s.commit(ctx, append(items[:i], items[i+1:]...))
	}
	return true, s.commit(ctx, append(items, ItemFromProduct(p, s.now())))
}

// Clear empties the wishlist.
func (s *WishlistStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rec.load(ctx); err != nil {
		return err
	}
	return s.commit(ctx, []model.WishlistItem{})
}

// Sync uploads the whole wishlist and replaces it with the account's list
// when the backend returns one.
func (s *WishlistStore) Sync(ctx context.Context, token string) error {
	if token == "" {
		return ErrNotSignedIn
	}
	if s.syncer == nil {
		return errors.New("wishlist sync not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	return s.sync(ctx, items, token)
}

func (s *WishlistStore) sync(ctx context.Context, items []model.WishlistItem, token string) error {
	merged, err := s.syncer.SyncWishlist(ctx, items, token)
	if err != nil {
		return err
	}
	if merged == nil {
		return nil
	}
	return s.rec.saveJSON(ctx, merged)
}

// commit persists items, then syncs them when signed in.
func (s *WishlistStore) commit(ctx context.Context, items []model.WishlistItem) error {
	if err := s.rec.saveJSON(ctx, items); err != nil {
		return err
	}
	s.syncAfterMutation(ctx, items)
	return nil
}

// syncAfterMutation pushes the list to the account when signed in. Failures
// are logged; the local change stands.
func (s *WishlistStore) syncAfterMutation(ctx context.Context, items []model.WishlistItem) {
	if s.syncer == nil || s.tokens == nil {
		return
	}
	token, err := s.tokens.Token(ctx)
	if err != nil || token == "" {
		return
	}
	if err := s.sync(ctx, items, token); err != nil {
		s.logger.Warn("wishlist sync failed", zap.Error(err))
	}
}

func (s *WishlistStore) load(ctx context.Context) ([]model.WishlistItem, error) {
	items := []model.WishlistItem{}
	if err := s.rec.loadJSON(ctx, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.WishlistItem{}
	}
	return items, nil
}

func indexOf(items []model.WishlistItem, sku string) int {
	for i, item := range items {
		if item.SKU == sku {
			return i
		}
	}
	return -1
}
