package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// WishlistItem is a product snapshot the shopper marked as favorite.
type WishlistItem struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Image     string    `json:"image"`
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts numeric ids and epoch-millisecond timestamps, which
// the sync endpoint may send back.
func (w *WishlistItem) UnmarshalJSON(data []byte) error {
	type alias WishlistItem
	aux := struct {
		ID        json.RawMessage `json:"id"`
		Timestamp json.RawMessage `json:"timestamp"`
		*alias
	}{alias: (*alias)(w)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	w.ID = looseString(aux.ID)

	w.Timestamp = time.Time{}
	ts := bytes.TrimSpace(aux.Timestamp)
	switch {
	case len(ts) == 0 || string(ts) == "null":
	case ts[0] == '"':
		if err := json.Unmarshal(ts, &w.Timestamp); err != nil {
			return err
		}
	default:
		ms, err := strconv.ParseInt(string(ts), 10, 64)
		if err != nil {
			return err
		}
		w.Timestamp = time.UnixMilli(ms).UTC()
	}
	return nil
}

// Profile is the signed-in shopper as known to this session.
type Profile struct {
	Email         string `json:"email,omitempty"`
	Authenticated bool   `json:"authenticated"`
}
