package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/shop-assistant/internal/assistant"
	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

type stubCompletion struct{}

func (stubCompletion) ClassifyIntent(context.Context, string) model.Intent {
	return model.GeneralQuestion()
}

func (stubCompletion) GenerateReply(context.Context, []model.Message, string) (string, error) {
	return "Chào bạn!", nil
}

func (stubCompletion) TestConnection(context.Context) error { return nil }

type stubBackend struct{}

func (stubBackend) Search(context.Context, string) (*commerce.ProductsResponse, error) {
	return &commerce.ProductsResponse{}, nil
}

func (stubBackend) GetProduct(_ context.Context, sku string) (*commerce.ProductsResponse, error) {
	resp := &commerce.ProductsResponse{}
	if sku == "SP001" {
		resp.Data.Products.Items = []commerce.Product{{ID: "1", SKU: "SP001", Name: "Áo thun"}}
	}
	return resp, nil
}

func (stubBackend) CreateCart(context.Context, string) (string, error) { return "cart-1", nil }

func (stubBackend) AddToCart(context.Context, string, string, int, string) (*commerce.AddToCartResponse, error) {
	return &commerce.AddToCartResponse{}, nil
}

func (stubBackend) GetCart(context.Context, string, string) (*commerce.CartResponse, error) {
	return &commerce.CartResponse{}, nil
}

func (stubBackend) StartCheckout(context.Context, string, string) (*commerce.CheckoutResponse, error) {
	return &commerce.CheckoutResponse{}, nil
}

func (stubBackend) UpdateCartItem(context.Context, string, string, int, string) (*commerce.CartResponse, error) {
	return &commerce.CartResponse{}, nil
}

func (stubBackend) RemoveCartItem(context.Context, string, string, string) (*commerce.CartResponse, error) {
	return &commerce.CartResponse{}, nil
}

func (stubBackend) Login(_ context.Context, _, password string) (string, error) {
	if password != "secret" {
		return "", &commerce.APIError{Op: "login", StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	return "cust-tok", nil
}

func (stubBackend) SyncWishlist(_ context.Context, items []model.WishlistItem, _ string) ([]model.WishlistItem, error) {
	return items, nil
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func newTestAPI(t *testing.T, checks map[string]Check) *client {
	t.Helper()
	log := logger.Nop()
	registry := service.NewRegistry(storage.NewMemoryStore(), stubBackend{}, stubCompletion{}, nil,
		assistant.Options{PrecomputeFallback: true}, log)
	srv := httptest.NewServer(NewRouter(RouterConfig{
		JWTSecret:         "test-secret",
		SessionTTL:        time.Hour,
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
		Checks:            checks,
	}, registry, log))
	t.Cleanup(srv.Close)
	return &client{t: t, base: srv.URL}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *client) startSession() {
	c.t.Helper()
	var sess model.SessionResponse
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, "/api/v1/sessions", nil, &sess))
	require.NotEmpty(c.t, sess.Token)
	require.NotEmpty(c.t, sess.SessionID)
	c.token = sess.Token
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, map[string]Check{
		"store": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/ready", nil, nil))

	api = newTestAPI(t, map[string]Check{
		"completion": func(context.Context) error { return errors.New("403") },
	})
	var body map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, api.do(http.MethodGet, "/ready", nil, &body))
	assert.Equal(t, "completion: 403", body["reason"])
}

func TestAPIRequiresSession(t *testing.T) {
	api := newTestAPI(t, nil)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/v1/conversations", nil, nil))
}

func TestChatAndConversations(t *testing.T) {
	api := newTestAPI(t, nil)
	api.startSession()

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/chat/messages", map[string]string{"text": "  "}, nil))

	var turn model.SendMessageResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/chat/messages", map[string]string{"text": "xin chào"}, &turn))
	require.Len(t, turn.Messages, 2)
	assert.Equal(t, model.RoleUser, turn.Messages[0].Role)
	assert.Equal(t, "Chào bạn!", turn.Messages[1].Content)

	var list model.ListConversationsResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/conversations", nil, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, turn.ConversationID, list.CurrentID)
	assert.Equal(t, "xin chào", list.Conversations[0].Title)

	var created model.Conversation
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/conversations", map[string]string{"title": "Giày"}, &created))
	require.Len(t, created.Messages, 1)
	assert.Equal(t, assistant.MsgWelcome, created.Messages[0].Content)

	path := "/api/v1/conversations/" + turn.ConversationID
	var renamed model.Conversation
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, path, map[string]string{"title": "Áo"}, &renamed))
	assert.Equal(t, "Áo", renamed.Title)

	require.Equal(t, http.StatusOK, api.do(http.MethodPost, path+"/select", nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/conversations", nil, &list))
	assert.Equal(t, turn.ConversationID, list.CurrentID)

	assert.Equal(t, http.StatusNotImplemented, api.do(http.MethodGet, path+"/journal", nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/v1/conversations/not-a-uuid", nil, nil))

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, path, nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, path, nil, nil))

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/v1/conversations", nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/conversations", nil, &list))
	assert.Zero(t, list.Total)
}

func TestSessionsAreSeparated(t *testing.T) {
	api := newTestAPI(t, nil)
	api.startSession()
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/chat/messages", map[string]string{"text": "xin chào"}, nil))

	api.startSession()
	var list model.ListConversationsResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/conversations", nil, &list))
	assert.Zero(t, list.Total)
}

func TestWishlistEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	api.startSession()

	var resp model.WishlistResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/wishlist/toggle", map[string]string{"sku": "SP001"}, &resp))
	require.NotNil(t, resp.Added)
	assert.True(t, *resp.Added)

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/wishlist", nil, &resp))
	assert.Equal(t, 1, resp.Count)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/v1/wishlist/toggle", map[string]string{"sku": "NOPE"}, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/wishlist/toggle", map[string]string{}, nil))
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/v1/wishlist/sync", nil, nil))

	require.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/v1/wishlist/SP001", nil, &resp))
	assert.Zero(t, resp.Count)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/v1/wishlist/SP001", nil, nil))
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	api.startSession()

	var errBody map[string]string
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/v1/auth/login",
		&model.LoginRequest{Email: "a@b.vn", Password: "wrong"}, &errBody))
	assert.Contains(t, errBody["error"], "Invalid credentials")

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/v1/auth/login",
		&model.LoginRequest{Email: "a@b.vn"}, nil))

	var profile model.Profile
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/auth/login",
		&model.LoginRequest{Email: "a@b.vn", Password: "secret"}, &profile))
	assert.Equal(t, model.Profile{Email: "a@b.vn", Authenticated: true}, profile)

	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/v1/wishlist/sync", nil, nil))

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodPost, "/api/v1/auth/logout", nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/auth/me", nil, &profile))
	assert.False(t, profile.Authenticated)
}

func TestCartEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	api.startSession()

	var cart commerce.Cart
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/v1/cart", nil, &cart))
	assert.Empty(t, cart.Items)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/v1/cart/items/u1", nil, nil))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPut, "/api/v1/cart/items/u1", map[string]int{"quantity": -1}, nil))
}

func TestStreamPushesTurnEvents(t *testing.T) {
	api := newTestAPI(t, nil)
	api.startSession()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.base+"/api/v1/stream?token="+api.token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	next := func() string {
		select {
		case ev := <-events:
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	require.Equal(t, "connected", next())
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/v1/chat/messages", map[string]string{"text": "xin chào"}, nil))

	assert.Equal(t, []string{"message", "typing", "message", "typing"}, []string{next(), next(), next(), next()})
}
