package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, logger.Nop()), rec
}

func TestSearch(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":{"products":{"items":[
		{"id":42,"sku":"SP001","name":"Áo thun","unit_ecom":"Cái",
		 "price_range":{"maximum_price":{"final_price":{"value":150000,"currency":"VND"}}},
		 "small_image":{"url":"https://img/1.jpg"}}]}}}`)

	resp, err := c.Search(context.Background(), "áo thun")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/search", rec.path)
	assert.Equal(t, "áo thun", rec.body["keyword"])
	assert.Empty(t, rec.auth)

	items := resp.Items()
	require.Len(t, items, 1)
	assert.Equal(t, FlexID("42"), items[0].ID)
	price, ok := items[0].Price()
	assert.True(t, ok)
	assert.Equal(t, Money{Value: 150000, Currency: "VND"}, price)
	assert.Equal(t, "https://img/1.jpg", items[0].ImageURL())
}

func TestGetProductEscapesSKU(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":{"products":{"items":[]}}}`)

	resp, err := c.GetProduct(context.Background(), "SP 01")
	require.NoError(t, err)
	assert.Equal(t, "/product/SP 01", rec.path)
	assert.Empty(t, resp.Items())
}

func TestNotFound(t *testing.T) {
	c, _ := newTestServer(t, http.StatusNotFound, `{"error":"Cart not found"}`)

	_, err := c.GetCart(context.Background(), "abc", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "get_cart", apiErr.Op)
	assert.Equal(t, "Cart not found", apiErr.Message)
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	c, _ := newTestServer(t, http.StatusInternalServerError, "boom")

	_, err := c.Search(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "boom")
}

func TestCreateCart(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"cart_id":"cart-1"}`)

	id, err := c.CreateCart(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "cart-1", id)
	assert.Equal(t, "tok", rec.body["customer_token"])
	assert.Equal(t, "Bearer tok", rec.auth)

	c, rec = newTestServer(t, http.StatusOK, `{"cart_id":"cart-2"}`)
	_, err = c.CreateCart(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, rec.body, "customer_token")
	assert.Nil(t, rec.body["customer_token"])
}

func TestCreateCartWithoutID(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{}`)

	_, err := c.CreateCart(context.Background(), "")
	assert.Error(t, err)
}

func TestAddToCart(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":{"addProductsToCart":{
		"cart":{"items":[{"uid":"u1","quantity":2,"product":{"name":"Áo","sku":"SP001"}}]},
		"user_errors":[{"message":"Out of stock"}]}}}`)

	resp, err := c.AddToCart(context.Background(), "cart-1", "SP001", 0, "")
	require.NoError(t, err)
	assert.Equal(t, float64(1), rec.body["quantity"], "non-positive quantity defaults to 1")
	assert.Equal(t, "cart-1", rec.body["cart_id"])

	require.NotNil(t, resp.Data.AddProductsToCart)
	require.Len(t, resp.Data.AddProductsToCart.UserErrors, 1)
	assert.Equal(t, "Out of stock", resp.Data.AddProductsToCart.UserErrors[0].Message)
}

func TestGetCart(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":{"cart":{"items":[
		{"uid":"u1","quantity":3,"product":{"name":"Áo","sku":"SP001"},"prices":{"price":{"value":100,"currency":"VND"}}}],
		"prices":{"grand_total":{"value":300,"currency":"VND"}}}}}`)

	resp, err := c.GetCart(context.Background(), "cart-1", "tok")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/cart/cart-1", rec.path)
	assert.Equal(t, "Bearer tok", rec.auth)
	assert.Equal(t, 1, resp.ItemCount())
	assert.Equal(t, float64(300), resp.Cart().Prices.GrandTotal.Value)
}

func TestUpdateAndRemoveCartItem(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":{"cart":{"items":[]}}}`)

	_, err := c.UpdateCartItem(context.Background(), "cart-1", "u1", 4, "")
	require.NoError(t, err)
	assert.Equal(t, "/cart/update", rec.path)
	assert.Equal(t, "u1", rec.body["cart_item_uid"])
	assert.Equal(t, float64(4), rec.body["quantity"])

	resp, err := c.RemoveCartItem(context.Background(), "cart-1", "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "/cart/remove", rec.path)
	assert.Zero(t, resp.ItemCount())
}

func TestStartCheckout(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"redirect_url":"https://shop/checkout"}`)

	resp, err := c.StartCheckout(context.Background(), "cart-1", "")
	require.NoError(t, err)
	assert.Equal(t, "/checkout/start", rec.path)
	assert.Equal(t, "https://shop/checkout", resp.RedirectURL)
}

func TestLogin(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"data":{"generateCustomerToken":{"token":"cust-tok"}}}`)

	token, err := c.Login(context.Background(), "a@b.vn", "secret")
	require.NoError(t, err)
	assert.Equal(t, "cust-tok", token)
	assert.Equal(t, "a@b.vn", rec.body["email"])
}

func TestLoginRejected(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"errors":[{"message":"Invalid credentials"}]}`)

	_, err := c.Login(context.Background(), "a@b.vn", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestSyncWishlist(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"success":true,"wishlist":[{"id":"1","sku":"SP009","name":"Mũ","price":50,"currency":"VND"}]}`)

	merged, err := c.SyncWishlist(context.Background(), nil, "tok")
	require.NoError(t, err)
	assert.Equal(t, "/wishlist/sync", rec.path)
	assert.Equal(t, []any{}, rec.body["items"])
	assert.Equal(t, []model.WishlistItem{{ID: "1", SKU: "SP009", Name: "Mũ", Price: 50, Currency: "VND"}}, merged)

	c, _ = newTestServer(t, http.StatusOK, `{"success":false,"error":"token expired"}`)
	_, err = c.SyncWishlist(context.Background(), nil, "tok")
	assert.ErrorContains(t, err, "token expired")
}

func TestFlexID(t *testing.T) {
	var p struct {
		A FlexID `json:"a"`
		B FlexID `json:"b"`
		C FlexID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":7,"b":"x7","c":null}`), &p))
	assert.Equal(t, FlexID("7"), p.A)
	assert.Equal(t, FlexID("x7"), p.B)
	assert.Equal(t, FlexID(""), p.C)
}
