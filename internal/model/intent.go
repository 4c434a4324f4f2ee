package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IntentKind is the classified purpose of a user utterance.
type IntentKind string

const (
	IntentSearchProduct   IntentKind = "search_product"
	IntentProductDetails  IntentKind = "product_details"
	IntentAddToCart       IntentKind = "add_to_cart"
	IntentViewCart        IntentKind = "view_cart"
	IntentCheckout        IntentKind = "checkout"
	IntentGeneralQuestion IntentKind = "general_question"
)

// Intent is the parsed classification of one user turn.
type Intent struct {
	Kind     IntentKind `json:"intent"`
	Keyword  string     `json:"keyword,omitempty"`
	SKU      string     `json:"sku,omitempty"`
	Quantity int        `json:"quantity,omitempty"`
}

// GeneralQuestion is the intent used whenever classification fails.
func GeneralQuestion() Intent {
	return Intent{Kind: IntentGeneralQuestion}
}

// Known reports whether k is one of the fixed intent kinds.
func (k IntentKind) Known() bool {
	switch k {
	case IntentSearchProduct, IntentProductDetails, IntentAddToCart,
		IntentViewCart, IntentCheckout, IntentGeneralQuestion:
		return true
	}
	return false
}

// UnmarshalJSON accepts the loose shapes models tend to emit: quantity as a
// number or a numeric string, and null for absent fields.
func (i *Intent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Intent   string          `json:"intent"`
		Keyword  json.RawMessage `json:"keyword"`
		SKU      json.RawMessage `json:"sku"`
		Quantity json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	i.Kind = IntentKind(strings.TrimSpace(raw.Intent))
	i.Keyword = looseString(raw.Keyword)
	i.SKU = looseString(raw.SKU)
	if q := looseString(raw.Quantity); q != "" {
		if n, err := strconv.ParseFloat(q, 64); err == nil && n > 0 {
			i.Quantity = int(n)
		}
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
