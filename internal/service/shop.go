package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/session"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

var (
	// ErrBackendUnavailable is returned when no commerce backend is wired.
	ErrBackendUnavailable = errors.New("commerce backend not configured")

	// ErrLoginFailed wraps every rejected sign-in.
	ErrLoginFailed = errors.New("login failed")
)

// ShopService handles the wishlist, cart, and sign-in operations that sit
// beside the chat.
type ShopService struct {
	registry *Registry
	logger   *logger.Logger
}

// NewShopService creates a new shop service.
func NewShopService(registry *Registry, log *logger.Logger) *ShopService {
	return &ShopService{
		registry: registry,
		logger:   log,
	}
}

func (s *ShopService) session(sessionID string) *session.Session {
	return s.registry.Assistant(sessionID).Session()
}

// Wishlist returns the session's wishlist.
func (s *ShopService) Wishlist(ctx context.Context, sessionID string) (*model.WishlistResponse, error) {
	return wishlistResponse(ctx, s.session(sessionID).Wishlist, nil)
}

// ToggleWishlist adds sku when absent and removes it when present. Adding
// snapshots the product from the catalog.
func (s *ShopService) ToggleWishlist(ctx context.Context, sessionID, sku string) (*model.WishlistResponse, error) {
	wishlist := s.session(sessionID).Wishlist

	present, err := wishlist.IsIn(ctx, sku)
	if err != nil {
		return nil, err
	}

	added := false
	if present {
		if _, err := wishlist.Remove(ctx, sku); err != nil {
			return nil, err
		}
	} else {
		product, err := s.lookup(ctx, sku)
		if err != nil {
			return nil, err
		}
		if added, err = wishlist.Add(ctx, product); err != nil {
			return nil, err
		}
	}
	return wishlistResponse(ctx, wishlist, &added)
}

// RemoveFromWishlist removes sku.
func (s *ShopService) RemoveFromWishlist(ctx context.Context, sessionID, sku string) (*model.WishlistResponse, error) {
	wishlist := s.session(sessionID).Wishlist

	removed, err := wishlist.Remove(ctx, sku)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, ErrNotFound
	}
	return wishlistResponse(ctx, wishlist, nil)
}

// SyncWishlist merges the local wishlist with the signed-in account's.
func (s *ShopService) SyncWishlist(ctx context.Context, sessionID string) (*model.WishlistResponse, error) {
	sess := s.session(sessionID)

	token, err := sess.Auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Wishlist.Sync(ctx, token); err != nil {
		return nil, err
	}
	return wishlistResponse(ctx, sess.Wishlist, nil)
}

func (s *ShopService) lookup(ctx context.Context, sku string) (commerce.Product, error) {
	backend := s.registry.Backend()
	if backend == nil {
		return commerce.Product{}, ErrBackendUnavailable
	}

	resp, err := backend.GetProduct(ctx, sku)
	if errors.Is(err, commerce.ErrNotFound) {
		return commerce.Product{}, ErrNotFound
	}
	if err != nil {
		return commerce.Product{}, err
	}
	items := resp.Items()
	if len(items) == 0 {
		return commerce.Product{}, ErrNotFound
	}
	return items[0], nil
}

func wishlistResponse(ctx context.Context, wishlist *session.WishlistStore, added *bool) (*model.WishlistResponse, error) {
	items, err := wishlist.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &model.WishlistResponse{Items: items, Count: len(items), Added: added}, nil
}

// Cart returns the session's cart, or nil when it has none. A cart the
// backend no longer knows is forgotten.
func (s *ShopService) Cart(ctx context.Context, sessionID string) (*commerce.Cart, error) {
	sess := s.session(sessionID)

	cartID, token, err := s.cartContext(ctx, sess)
	if err != nil || cartID == "" {
		return nil, err
	}

	resp, err := s.registry.Backend().GetCart(ctx, cartID, token)
	if err != nil {
		return nil, s.cartError(ctx, sess, err)
	}
	return resp.Cart(), nil
}

// UpdateCartItem sets the quantity of one cart line.
func (s *ShopService) UpdateCartItem(ctx context.Context, sessionID, itemUID string, quantity int) (*commerce.Cart, error) {
	if quantity <= 0 {
		return s.RemoveCartItem(ctx, sessionID, itemUID)
	}

	sess := s.session(sessionID)
	cartID, token, err := s.cartContext(ctx, sess)
	if err != nil {
		return nil, err
	}
	if cartID == "" {
		return nil, ErrNotFound
	}

	resp, err := s.registry.Backend().UpdateCartItem(ctx, cartID, itemUID, quantity, token)
	if err != nil {
		return nil, s.cartError(ctx, sess, err)
	}
	return resp.Cart(), nil
}

// RemoveCartItem deletes one cart line.
func (s *ShopService) RemoveCartItem(ctx context.Context, sessionID, itemUID string) (*commerce.Cart, error) {
	sess := s.session(sessionID)
	cartID, token, err := s.cartContext(ctx, sess)
	if err != nil {
		return nil, err
	}
	if cartID == "" {
		return nil, ErrNotFound
	}

	resp, err := s.registry.Backend().RemoveCartItem(ctx, cartID, itemUID, token)
	if err != nil {
		return nil, s.cartError(ctx, sess, err)
	}
	return resp.Cart(), nil
}

func (s *ShopService) cartContext(ctx context.Context, sess *session.Session) (cartID, token string, err error) {
	if s.registry.Backend() == nil {
		return "", "", ErrBackendUnavailable
	}
	if cartID, err = sess.Cart.Get(ctx); err != nil {
		return "", "", err
	}
	if token, err = sess.Auth.Token(ctx); err != nil {
		return "", "", err
	}
	return cartID, token, nil
}

func (s *ShopService) cartError(ctx context.Context, sess *session.Session, err error) error {
	if !errors.Is(err, commerce.ErrNotFound) {
		return err
	}
	if clearErr := sess.Cart.Clear(ctx); clearErr != nil {
		s.logger.Warn("failed to forget expired cart", zap.String("session_id", sess.ID), zap.Error(clearErr))
	}
	return ErrNotFound
}

// Login signs the customer in, then merges the wishlist with the account's.
func (s *ShopService) Login(ctx context.Context, sessionID string, req *model.LoginRequest) (*model.Profile, error) {
	sess := s.session(sessionID)

	token, err := sess.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := sess.Wishlist.Sync(ctx, token); err != nil {
		s.logger.Warn("wishlist sync after login failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	s.logger.Info("customer signed in", zap.String("session_id", sessionID))
	return s.Profile(ctx, sessionID)
}

// Logout signs the customer out.
func (s *ShopService) Logout(ctx context.Context, sessionID string) error {
	return s.session(sessionID).Auth.Logout(ctx)
}

// Profile returns who is signed in.
func (s *ShopService) Profile(ctx context.Context, sessionID string) (*model.Profile, error) {
	profile, err := s.session(sessionID).Auth.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
