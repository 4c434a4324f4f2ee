package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// Authenticator exchanges customer credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// AuthStore keeps the signed-in customer's token and email.
type AuthStore struct {
	mu    sync.Mutex
	token *record
	email *record
	auth  Authenticator
	cart  *CartStore
}

// NewAuthStore creates an auth store. Signing in clears cart so the next
// add-to-cart creates a customer cart.
func NewAuthStore(store storage.Store, sessionID string, auth Authenticator, cart *CartStore, log *logger.Logger) *AuthStore {
	return &AuthStore{
		token: newRecord(store, sessionID, KeyAuthToken, log),
		email: newRecord(store, sessionID, KeyUserEmail, log),
		auth:  auth,
		cart:  cart,
	}
}

// Token implements TokenSource.
func (s *AuthStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token.loadString(ctx)
}

// Profile returns who is signed in.
func (s *AuthStore) Profile(ctx context.Context) (model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.token.loadString(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	if token == "" {
		return model.Profile{}, nil
	}
	email, err := s.email.loadString(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{Email: email, Authenticated: true}, nil
}

// Login signs the customer in and returns the issued token.
func (s *AuthStore) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", errors.New("email and password are required")
	}
	if s.auth == nil {
		return "", errors.New("login not configured")
	}

	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.put(ctx, s.token, token); err != nil {
		return "", err
	}
	if err := s.put(ctx, s.email, email); err != nil {
		return "", err
	}
	if s.cart != nil {
		if err := s.cart.Clear(ctx); err != nil {
			return "", err
		}
	}
	return token, nil
}

// Logout forgets the token and email.
func (s *AuthStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.token.remove(ctx); err != nil {
		return err
	}
	return s.email.remove(ctx)
}

func (s *AuthStore) put(ctx context.Context, rec *record, value string) error {
	if _, err := rec.load(ctx); err != nil {
		return err
	}
	return rec.saveString(ctx, value)
}
