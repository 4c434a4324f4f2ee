package model

import "time"

// SessionResponse is returned when a browser session is started.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest carries customer credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// WishlistToggleRequest names the product to add or remove.
type WishlistToggleRequest struct {
	SKU string `json:"sku"`
}

// WishlistResponse is the wishlist after an operation.
type WishlistResponse struct {
	Items []WishlistItem `json:"items"`
	Count int            `json:"count"`
	Added *bool          `json:"added,omitempty"`
}

// CartItemUpdateRequest sets a cart line's quantity.
type CartItemUpdateRequest struct {
	Quantity int `json:"quantity"`
}
