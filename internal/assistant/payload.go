package assistant

import "github.com/capitalize-ai/shop-assistant/internal/commerce"

// ProductListPayload backs a product_list message.
type ProductListPayload struct {
	Keyword  string             `json:"keyword"`
	Products []commerce.Product `json:"products"`
}

// ProductDetailPayload backs a product_detail message.
type ProductDetailPayload struct {
	Product commerce.Product `json:"product"`
}

// CartPayload backs a cart_view message.
type CartPayload struct {
	Cart *commerce.Cart `json:"cart"`
}
