package session

import (
	"context"
	"sync"

	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// CartStore remembers the backend cart id for a session.
type CartStore struct {
	mu  sync.Mutex
	rec *record
}

// NewCartStore creates a cart-id store.
func NewCartStore(store storage.Store, sessionID string, log *logger.Logger) *CartStore {
	return &CartStore{rec: newRecord(store, sessionID, KeyCartID, log)}
}

// Get returns the cart id, or "" when none is stored.
func (s *CartStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.loadString(ctx)
}

// Set stores the cart id.
func (s *CartStore) Set(ctx context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.rec.load(ctx); err != nil {
		return err
	}
	return s.rec.saveString(ctx, cartID)
}

// Clear forgets the cart id.
func (s *CartStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.remove(ctx)
}
