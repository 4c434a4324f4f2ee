package session

import (
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// Backend is the slice of the commerce client the session stores call.
type Backend interface {
	Authenticator
	WishlistSyncer
}

// Session bundles the stores of one shopper.
type Session struct {
	ID       string
	Cart     *CartStore
	Wishlist *WishlistStore
	History  *HistoryStore
	Auth     *AuthStore
}

// New wires the stores of sessionID onto store. backend may be nil; login
// and wishlist sync are then unavailable.
func New(store storage.Store, sessionID string, backend Backend, log *logger.Logger) *Session {
	log = log.WithSession(sessionID)

	var (
		auth   Authenticator
		syncer WishlistSyncer
	)
	if backend != nil {
		auth, syncer = backend, backend
	}

	cart := NewCartStore(store, sessionID, log)
	authStore := NewAuthStore(store, sessionID, auth, cart, log)
	return &Session{
		ID:       sessionID,
		Cart:     cart,
		Wishlist: NewWishlistStore(store, sessionID, syncer, authStore, log),
		History:  NewHistoryStore(store, sessionID, log),
		Auth:     authStore,
	}
}
