package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/middleware"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// ShopHandler handles wishlist, cart, and sign-in endpoints.
type ShopHandler struct {
	service *service.ShopService
	logger  *logger.Logger
}

// NewShopHandler creates a new shop handler.
func NewShopHandler(svc *service.ShopService, log *logger.Logger) *ShopHandler {
	return &ShopHandler{
		service: svc,
		logger:  log,
	}
}

// Wishlist handles GET /api/v1/wishlist
func (h *ShopHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.Wishlist(ctx, middleware.GetSessionID(ctx))
	if err != nil {
		writeServiceError(w, h.logger, err, "get wishlist")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ToggleWishlist handles POST /api/v1/wishlist/toggle
func (h *ShopHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.WishlistToggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateSKU(req.SKU); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.ToggleWishlist(ctx, middleware.GetSessionID(ctx), req.SKU)
	if err != nil {
		writeServiceError(w, h.logger, err, "toggle wishlist")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// RemoveFromWishlist handles DELETE /api/v1/wishlist/:sku
func (h *ShopHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sku := chi.URLParam(r, "sku")
	if err := middleware.ValidateSKU(sku); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.RemoveFromWishlist(ctx, middleware.GetSessionID(ctx), sku)
	if err != nil {
		writeServiceError(w, h.logger, err, "remove from wishlist")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// SyncWishlist handles POST /api/v1/wishlist/sync
func (h *ShopHandler) SyncWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.SyncWishlist(ctx, middleware.GetSessionID(ctx))
	if err != nil {
		writeServiceError(w, h.logger, err, "sync wishlist")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Cart handles GET /api/v1/cart
func (h *ShopHandler) Cart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cart, err := h.service.Cart(ctx, middleware.GetSessionID(ctx))
	if err != nil {
		writeServiceError(w, h.logger, err, "get cart")
		return
	}
	if cart == nil {
		cart = &commerce.Cart{Items: []commerce.CartItem{}}
	}

	writeJSON(w, http.StatusOK, cart)
}

// UpdateCartItem handles PUT /api/v1/cart/items/:uid
func (h *ShopHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CartItemUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity cannot be negative")
		return
	}

	cart, err := h.service.UpdateCartItem(ctx, middleware.GetSessionID(ctx), chi.URLParam(r, "uid"), req.Quantity)
	if err != nil {
		writeServiceError(w, h.logger, err, "update cart item")
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// RemoveCartItem handles DELETE /api/v1/cart/items/:uid
func (h *ShopHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cart, err := h.service.RemoveCartItem(ctx, middleware.GetSessionID(ctx), chi.URLParam(r, "uid"))
	if err != nil {
		writeServiceError(w, h.logger, err, "remove cart item")
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

// Login handles POST /api/v1/auth/login
func (h *ShopHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := middleware.ValidateCredentials(req.Email, req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.service.Login(ctx, middleware.GetSessionID(ctx), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "login")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Logout handles POST /api/v1/auth/logout
func (h *ShopHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Logout(ctx, middleware.GetSessionID(ctx)); err != nil {
		writeServiceError(w, h.logger, err, "logout")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me
func (h *ShopHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.service.Profile(ctx, middleware.GetSessionID(ctx))
	if err != nil {
		writeServiceError(w, h.logger, err, "get profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
