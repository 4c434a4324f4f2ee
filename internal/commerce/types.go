package commerce

import (
	"encoding/json"
	"strings"
)

// FlexID decodes identifiers the backend sends either as numbers or strings.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = FlexID(s)
		return nil
	}
	*id = FlexID(strings.TrimSpace(string(data)))
	return nil
}

// Money is an amount in a currency.
type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// PriceRange mirrors the backend's price envelope.
type PriceRange struct {
	MaximumPrice PriceTier `json:"maximum_price"`
}

// PriceTier is one end of a price range.
type PriceTier struct {
	FinalPrice Money `json:"final_price"`
}

// Image is a product image reference.
type Image struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// HTML is a rich-text field.
type HTML struct {
	HTML string `json:"html"`
}

// Product is a catalog entry.
type Product struct {
	ID          FlexID      `json:"id,omitempty"`
	SKU         string      `json:"sku"`
	Name        string      `json:"name"`
	PriceRange  *PriceRange `json:"price_range,omitempty"`
	SmallImage  *Image      `json:"small_image,omitempty"`
	Description *HTML       `json:"description,omitempty"`
	UnitEcom    string      `json:"unit_ecom,omitempty"`
}

// Price returns the final price, if the backend sent one.
func (p Product) Price() (Money, bool) {
	if p.PriceRange == nil {
		return Money{}, false
	}
	return p.PriceRange.MaximumPrice.FinalPrice, true
}

// ImageURL returns the small image url or "".
func (p Product) ImageURL() string {
	if p.SmallImage == nil {
		return ""
	}
	return p.SmallImage.URL
}

// ProductsResponse is returned by search and product lookup.
type ProductsResponse struct {
	Data struct {
		Products struct {
			Items      []Product `json:"items"`
			TotalCount int       `json:"total_count,omitempty"`
		} `json:"products"`
	} `json:"data"`
}

// Items returns the product list, never nil-dereferencing.
func (r *ProductsResponse) Items() []Product {
	if r == nil {
		return nil
	}
	return r.Data.Products.Items
}

// CartItem is one line of a cart.
type CartItem struct {
	UID      string      `json:"uid"`
	Quantity float64     `json:"quantity"`
	Product  Product     `json:"product"`
	Prices   *LinePrices `json:"prices,omitempty"`
}

// LinePrices are the prices of one cart line.
type LinePrices struct {
	Price    Money  `json:"price"`
	RowTotal *Money `json:"row_total,omitempty"`
}

// Cart is the backend's authoritative cart.
type Cart struct {
	ID         string      `json:"id,omitempty"`
	Items      []CartItem  `json:"items"`
	TotalCount float64     `json:"total_quantity,omitempty"`
	Prices     *CartPrices `json:"prices,omitempty"`
}

// CartPrices are the cart totals.
type CartPrices struct {
	GrandTotal Money `json:"grand_total"`
}

// CartResponse is returned by cart lookup, update, and remove.
type CartResponse struct {
	Data struct {
		Cart *Cart `json:"cart"`
	} `json:"data"`
}

// Cart returns the cart or nil.
func (r *CartResponse) Cart() *Cart {
	if r == nil {
		return nil
	}
	return r.Data.Cart
}

// ItemCount returns the number of cart lines.
func (r *CartResponse) ItemCount() int {
	if c := r.Cart(); c != nil {
		return len(c.Items)
	}
	return 0
}

// UserError is a business-rule rejection reported inside a 2xx response.
type UserError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// AddToCartResponse is returned by cart/add.
type AddToCartResponse struct {
	Data struct {
		AddProductsToCart *AddProductsResult `json:"addProductsToCart"`
	} `json:"data"`
}

// AddProductsResult is the updated cart plus any rejected lines.
type AddProductsResult struct {
	Cart       *Cart       `json:"cart"`
	UserErrors []UserError `json:"user_errors"`
}

// CreateCartResponse is returned by cart/create.
type CreateCartResponse struct {
	CartID string `json:"cart_id"`
}

// CheckoutResponse is returned by checkout/start.
type CheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// LoginResponse is returned by login.
type LoginResponse struct {
	Data *struct {
		GenerateCustomerToken *struct {
			Token string `json:"token"`
		} `json:"generateCustomerToken"`
	} `json:"data"`
	Errors []UserError `json:"errors,omitempty"`
}

// Token returns the issued customer token or "".
func (r *LoginResponse) Token() string {
	if r == nil || r.Data == nil || r.Data.GenerateCustomerToken == nil {
		return ""
	}
	return r.Data.GenerateCustomerToken.Token
}
