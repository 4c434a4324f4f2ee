package assistant

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/capitalize-ai/shop-assistant/internal/commerce"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes markup tags from s.
func StripHTML(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}

// FormatAmount renders a price the way Vietnamese shoppers read it:
// 1.250.000 VND.
func FormatAmount(m commerce.Money) string {
	amount := groupThousands(m.Value)
	if m.Currency == "" {
		return amount
	}
	return amount + " " + m.Currency
}

func groupThousands(v float64) string {
	neg := v < 0
	v = math.Abs(v)
	whole := math.Floor(v)
	frac := math.Round((v - whole) * 100)
	if frac == 100 {
		whole++
		frac = 0
	}

	digits := strconv.FormatFloat(whole, 'f', 0, 64)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	if frac > 0 {
		fmt.Fprintf(&b, ",%02d", int(frac))
	}
	return b.String()
}

// FormatProductList renders search results as a numbered markdown list.
func FormatProductList(items []commerce.Product) string {
	if len(items) == 0 {
		return "Không tìm thấy sản phẩm nào phù hợp."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tôi đã tìm thấy %d sản phẩm:\n\n", len(items))
	for i, item := range items {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, item.Name)
		if price, ok := item.Price(); ok {
			fmt.Fprintf(&b, "   Giá: %s\n", FormatAmount(price))
		}
		fmt.Fprintf(&b, "   SKU: %s\n\n", item.SKU)
	}
	b.WriteString("Bạn có muốn xem chi tiết sản phẩm nào không?")
	return b.String()
}

// FormatProductDetails renders one product as markdown.
func FormatProductDetails(p commerce.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", p.Name)
	if price, ok := p.Price(); ok {
		fmt.Fprintf(&b, "**Giá:** %s\n\n", FormatAmount(price))
	}
	if p.Description != nil {
		if desc := StripHTML(p.Description.HTML); desc != "" {
			fmt.Fprintf(&b, "**Mô tả:** %s\n\n", desc)
		}
	}
	fmt.Fprintf(&b, "**SKU:** %s\n\n", p.SKU)
	if p.UnitEcom != "" {
		fmt.Fprintf(&b, "**Đơn vị:** %s\n\n", p.UnitEcom)
	}
	b.WriteString("Bạn có muốn thêm sản phẩm này vào giỏ hàng không?")
	return b.String()
}

// FormatAddToCart reports the outcome of an add-to-cart call.
func FormatAddToCart(resp *commerce.AddToCartResponse) string {
	if resp == nil || resp.Data.AddProductsToCart == nil {
		return "❌ Có lỗi xảy ra khi thêm sản phẩm vào giỏ hàng."
	}
	result := resp.Data.AddProductsToCart
	if len(result.UserErrors) > 0 {
		return "❌ Không thể thêm sản phẩm vào giỏ hàng: " + result.UserErrors[0].Message
	}
	if result.Cart != nil {
		return "✅ Đã thêm sản phẩm vào giỏ hàng thành công!"
	}
	return "❌ Có lỗi xảy ra khi thêm sản phẩm vào giỏ hàng."
}

// FormatCart renders the cart as markdown.
func FormatCart(cart *commerce.Cart) string {
	if cart == nil || len(cart.Items) == 0 {
		return MsgCartEmpty
	}

	var b strings.Builder
	b.WriteString("## Giỏ hàng của bạn\n\n")
	for i, item := range cart.Items {
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, item.Product.Name)
		fmt.Fprintf(&b, "   Số lượng: %s\n", strconv.FormatFloat(item.Quantity, 'f', -1, 64))
		if item.Prices != nil {
			fmt.Fprintf(&b, "   Đơn giá: %s\n", FormatAmount(item.Prices.Price))
		}
		fmt.Fprintf(&b, "   SKU: %s\n\n", item.Product.SKU)
	}
	if cart.Prices != nil {
		fmt.Fprintf(&b, "**Tổng cộng:** %s\n\n", FormatAmount(cart.Prices.GrandTotal))
	}
	b.WriteString("Bạn có muốn thanh toán không?")
	return b.String()
}

// FormatCheckout reports where to pay.
func FormatCheckout(resp *commerce.CheckoutResponse) string {
	if resp == nil || resp.RedirectURL == "" {
		return "Có lỗi xảy ra khi bắt đầu thanh toán."
	}
	return "Đã tạo đơn hàng thành công! Vui lòng truy cập link sau để thanh toán:\n\n" + resp.RedirectURL
}
