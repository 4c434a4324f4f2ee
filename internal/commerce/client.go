// Package commerce is the REST client for the shop backend: catalog search,
// carts, checkout, and customer login.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
	"github.com/capitalize-ai/shop-assistant/pkg/metrics"
	"github.com/capitalize-ai/shop-assistant/pkg/tracing"
)

// ErrNotFound matches any APIError with a 404 status.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("commerce %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("commerce %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Is reports 404s as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client is a stateless wrapper over the backend's REST endpoints. Calls are
// made once; nothing is retried, so a retried AddToCart can add twice.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a commerce client. A zero timeout leaves the transport
// default in place.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

// Search finds products matching keyword.
func (c *Client) Search(ctx context.Context, keyword string) (*ProductsResponse, error) {
	var out ProductsResponse
	err := c.do(ctx, "search", http.MethodPost, "/search", "", map[string]string{"keyword": keyword}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct looks a product up by sku.
func (c *Client) GetProduct(ctx context.Context, sku string) (*ProductsResponse, error) {
	var out ProductsResponse
	err := c.do(ctx, "get_product", http.MethodGet, "/product/"+url.PathEscape(sku), "", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCart creates a guest cart, or a customer cart when token is set.
func (c *Client) CreateCart(ctx context.Context, token string) (string, error) {
	body := map[string]any{"customer_token": nil}
	if token != "" {
		body["customer_token"] = token
	}

	var out CreateCartResponse
	if err := c.do(ctx, "create_cart", http.MethodPost, "/cart/create", token, body, &out); err != nil {
		return "", err
	}
	if out.CartID == "" {
		return "", errors.New("commerce create_cart: response has no cart_id")
	}
	return out.CartID, nil
}

// AddToCart adds quantity units of sku to the cart.
func (c *Client) AddToCart(ctx context.Context, cartID, sku string, quantity int, token string) (*AddToCartResponse, error) {
	if quantity <= 0 {
		quantity = 1
	}
	body := map[string]any{"cart_id": cartID, "sku": sku, "quantity": quantity}

	var out AddToCartResponse
	if err := c.do(ctx, "add_to_cart", http.MethodPost, "/cart/add", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCart fetches the cart.
func (c *Client) GetCart(ctx context.Context, cartID, token string) (*CartResponse, error) {
	var out CartResponse
	err := c.do(ctx, "get_cart", http.MethodGet, "/cart/"+url.PathEscape(cartID), token, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCartItem sets the quantity of one cart line.
func (c *Client) UpdateCartItem(ctx context.Context, cartID, itemUID string, quantity int, token string) (*CartResponse, error) {
	body := map[string]any{"cart_id": cartID, "cart_item_uid": itemUID, "quantity": quantity}

	var out CartResponse
	if err := c.do(ctx, "update_cart_item", http.MethodPost, "/cart/update", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveCartItem deletes one cart line.
func (c *Client) RemoveCartItem(ctx context.Context, cartID, itemUID, token string) (*CartResponse, error) {
	body := map[string]any{"cart_id": cartID, "cart_item_uid": itemUID}

	var out CartResponse
	if err := c.do(ctx, "remove_cart_item", http.MethodPost, "/cart/remove", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartCheckout begins checkout and returns where to send the shopper.
func (c *Client) StartCheckout(ctx context.Context, cartID, token string) (*CheckoutResponse, error) {
	var out CheckoutResponse
	err := c.do(ctx, "start_checkout", http.MethodPost, "/checkout/start", token, map[string]string{"cart_id": cartID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a customer token. Backend-reported
// credential errors come back as an error carrying the backend's message.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}

	var out LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/login", "", body, &out); err != nil {
		return "", err
	}
	if token := out.Token(); token != "" {
		return token, nil
	}
	if len(out.Errors) > 0 && out.Errors[0].Message != "" {
		return "", &APIError{Op: "login", StatusCode: http.StatusUnauthorized, Message: out.Errors[0].Message}
	}
	return "", &APIError{Op: "login", StatusCode: http.StatusUnauthorized, Message: "login failed"}
}

// SyncWishlist uploads the full local wishlist and returns the account's
// merged list. A nil result means the backend accepted but sent no list.
func (c *Client) SyncWishlist(ctx context.Context, items []model.WishlistItem, token string) ([]model.WishlistItem, error) {
	if items == nil {
		items = []model.WishlistItem{}
	}

	var out struct {
		Success  bool                 `json:"success"`
		Wishlist []model.WishlistItem `json:"wishlist"`
		Error    string               `json:"error"`
	}
	err := c.do(ctx, "sync_wishlist", http.MethodPost, "/wishlist/sync", token, map[string]any{"items": items}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "wishlist sync rejected"
		}
		return nil, &APIError{Op: "sync_wishlist", StatusCode: http.StatusOK, Message: msg}
	}
	return out.Wishlist, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) (err error) {
	ctx, span := tracing.Tracer("commerce").Start(ctx, "commerce."+op)
	span.SetAttributes(attribute.String("http.method", method), attribute.String("commerce.path", path))
	start := time.Now()
	defer func() {
		metrics.RecordRemoteCall("commerce", op, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			c.logger.Warn("commerce call failed", zap.String("op", op), zap.Error(err))
		}
		span.End()
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("commerce %s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("commerce %s: failed to decode response: %w", op, err)
	}
	return nil
}

// errorMessage pulls a human message out of an error body, which the backend
// sends as {"error": "..."} or {"message": "..."} or plain text.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
