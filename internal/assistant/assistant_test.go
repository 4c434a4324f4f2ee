package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/completion"
	"github.com/capitalize-ai/shop-assistant/internal/config"
	"github.com/capitalize-ai/shop-assistant/internal/llm"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/session"
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

type fakeCompletion struct {
	intent      model.Intent
	reply       string
	replyErr    error
	probeErr    error
	replyCalls  int
	lastHistory []model.Message
	onClassify  func()
}

func (f *fakeCompletion) ClassifyIntent(context.Context, string) model.Intent {
	if f.onClassify != nil {
		f.onClassify()
	}
	return f.intent
}

func (f *fakeCompletion) GenerateReply(_ context.Context, history []model.Message, _ string) (string, error) {
	f.replyCalls++
	f.lastHistory = history
	if f.replyErr != nil {
		return completion.ApologyUnavailable, f.replyErr
	}
	return f.reply, nil
}

func (f *fakeCompletion) TestConnection(context.Context) error { return f.probeErr }

type addCall struct {
	cartID   string
	sku      string
	quantity int
	token    string
}

type fakeShop struct {
	mu sync.Mutex

	products     []commerce.Product
	searchErr    error
	productErr   error
	cart         *commerce.Cart
	cartErr      error
	addResp      *commerce.AddToCartResponse
	addErr       error
	checkoutResp *commerce.CheckoutResponse
	panicOn      string
	expiredCarts map[string]bool

	searches  []string
	creates   int
	adds      []addCall
	cartGets  int
	checkouts []string
}

func (f *fakeShop) Search(_ context.Context, keyword string) (*commerce.ProductsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == "search" {
		panic("nil map")
	}
	f.searches = append(f.searches, keyword)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	resp := &commerce.ProductsResponse{}
	resp.Data.Products.Items = f.products
	return resp, nil
}

func (f *fakeShop) GetProduct(_ context.Context, sku string) (*commerce.ProductsResponse, error) {
	if f.productErr != nil {
		return nil, f.productErr
	}
	resp := &commerce.ProductsResponse{}
	for _, p := range f.products {
		if p.SKU == sku {
			resp.Data.Products.Items = append(resp.Data.Products.Items, p)
		}
	}
	return resp, nil
}

func (f *fakeShop) CreateCart(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	return "cart-new", nil
}

func (f *fakeShop) AddToCart(_ context.Context, cartID, sku string, quantity int, token string) (*commerce.AddToCartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, addCall{cartID, sku, quantity, token})
	if f.expiredCarts[cartID] {
		return nil, &commerce.APIError{Op: "add_to_cart", StatusCode: 404, Message: "cart not found"}
	}
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.addResp, nil
}

func (f *fakeShop) GetCart(context.Context, string, string) (*commerce.CartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cartGets++
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	resp := &commerce.CartResponse{}
	resp.Data.Cart = f.cart
	return resp, nil
}

func (f *fakeShop) StartCheckout(_ context.Context, cartID, _ string) (*commerce.CheckoutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, cartID)
	return f.checkoutResp, nil
}

type recorder struct {
	typing   []bool
	messages []model.Message
	events   []*model.ConversationEvent
	journal  []model.Message
}

func (r *recorder) OnMessage(_ string, msg model.Message) { r.messages = append(r.messages, msg) }
func (r *recorder) OnTyping(typing bool)                  { r.typing = append(r.typing, typing) }

func (r *recorder) PublishMessage(_ context.Context, _, _ string, msg model.Message) error {
	r.journal = append(r.journal, msg)
	return nil
}

func (r *recorder) PublishEvent(_ context.Context, event *model.ConversationEvent) error {
	r.events = append(r.events, event)
	return nil
}

type harness struct {
	assistant *Assistant
	session   *session.Session
	llm       *fakeCompletion
	shop      *fakeShop
	rec       *recorder
}

func newHarness(t *testing.T, llm *fakeCompletion, shop *fakeShop) *harness {
	t.Helper()
	rec := &recorder{}
	sess := session.New(storage.NewMemoryStore(), "s1", nil, logger.Nop())
	a := New(sess, llm, shop, Options{
		PrecomputeFallback: true,
		Persona:            "persona",
		Journal:            rec,
		Observer:           rec,
	}, logger.Nop())
	return &harness{assistant: a, session: sess, llm: llm, shop: shop, rec: rec}
}

func (h *harness) send(t *testing.T, text string) *Turn {
	t.Helper()
	turn, err := h.assistant.HandleUserMessage(context.Background(), text)
	require.NoError(t, err)
	return turn
}

func assistantMessages(turn *Turn) []model.Message {
	var out []model.Message
	for _, m := range turn.Messages {
		if m.Role == model.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

func sampleProduct(sku string) commerce.Product {
	return commerce.Product{
		SKU:  sku,
		Name: "Áo thun " + sku,
		PriceRange: &commerce.PriceRange{
			MaximumPrice: commerce.PriceTier{FinalPrice: commerce.Money{Value: 150000, Currency: "VND"}},
		},
		Description: &commerce.HTML{HTML: "<p>Cotton <b>100%</b></p>"},
	}
}

func cartWith(items ...commerce.CartItem) *commerce.Cart {
	return &commerce.Cart{Items: items}
}

func TestEmptyInputIsNoop(t *testing.T) {
	h := newHarness(t, &fakeCompletion{}, &fakeShop{})

	for _, text := range []string{"", "   ", "\n\t"} {
		turn := h.send(t, text)
		assert.Empty(t, turn.Messages)
	}

	assert.Empty(t, h.rec.typing)
	assert.Zero(t, h.llm.replyCalls)
	all, err := h.session.History.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestExactlyOneReplyPerTurn(t *testing.T) {
	failing := errors.New("backend down")
	tests := []struct {
		name   string
		intent model.Intent
		shop   *fakeShop
	}{
		{"search", model.Intent{Kind: model.IntentSearchProduct, Keyword: "áo"}, &fakeShop{products: []commerce.Product{sampleProduct("SP001")}}},
		{"search failure", model.Intent{Kind: model.IntentSearchProduct}, &fakeShop{searchErr: failing}},
		{"details", model.Intent{Kind: model.IntentProductDetails, SKU: "SP001"}, &fakeShop{products: []commerce.Product{sampleProduct("SP001")}}},
		{"details failure", model.Intent{Kind: model.IntentProductDetails, SKU: "SP001"}, &fakeShop{productErr: failing}},
		{"add", model.Intent{Kind: model.IntentAddToCart, SKU: "SP001"}, &fakeShop{}},
		{"add failure", model.Intent{Kind: model.IntentAddToCart, SKU: "SP001"}, &fakeShop{addErr: failing}},
		{"view cart", model.Intent{Kind: model.IntentViewCart}, &fakeShop{}},
		{"checkout", model.Intent{Kind: model.IntentCheckout}, &fakeShop{}},
		{"general", model.GeneralQuestion(), &fakeShop{}},
		{"unknown", model.Intent{Kind: "dance"}, &fakeShop{}},
		{"panic", model.Intent{Kind: model.IntentSearchProduct}, &fakeShop{panicOn: "search"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeCompletion{intent: tt.intent, reply: "fallback"}, tt.shop)

			turn := h.send(t, "xin chào")

			require.Len(t, turn.Messages, 2)
			assert.Equal(t, model.RoleUser, turn.Messages[0].Role)
			assert.Equal(t, "xin chào", turn.Messages[0].Content)
			assert.Len(t, assistantMessages(turn), 1)
			assert.NotEmpty(t, turn.Messages[1].Content)

			require.NotEmpty(t, h.rec.typing)
			assert.True(t, h.rec.typing[0])
			assert.False(t, h.rec.typing[len(h.rec.typing)-1], "typing indicator cleared")

			msgs, err := h.session.History.CurrentMessages(context.Background())
			require.NoError(t, err)
			assert.Len(t, msgs, 2)
			assert.Len(t, h.rec.journal, 2)
		})
	}
}

func TestSearchWithNoResults(t *testing.T) {
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentSearchProduct, Keyword: "áo thun"}}, &fakeShop{})

	turn := h.send(t, "tìm áo thun")

	reply := turn.Messages[1]
	assert.Equal(t, `Tôi không tìm thấy sản phẩm nào phù hợp với "áo thun". Bạn có thể thử tìm kiếm với từ khóa khác.`, reply.Content)
	assert.Equal(t, model.RenderText, reply.Kind)
	assert.Empty(t, reply.Payload)
	assert.False(t, reply.IsStructured())
}

func TestSearchFallsBackToRawText(t *testing.T) {
	shop := &fakeShop{products: []commerce.Product{sampleProduct("SP001"), sampleProduct("SP002")}}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentSearchProduct}}, shop)

	turn := h.send(t, "áo thun nam")

	assert.Equal(t, []string{"áo thun nam"}, shop.searches)
	reply := turn.Messages[1]
	assert.Equal(t, model.RenderProductList, reply.Kind)
	assert.Contains(t, reply.Content, "Tôi đã tìm thấy 2 sản phẩm")

	var payload ProductListPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &payload))
	assert.Equal(t, "áo thun nam", payload.Keyword)
	assert.Len(t, payload.Products, 2)
}

func TestProductDetails(t *testing.T) {
	shop := &fakeShop{products: []commerce.Product{sampleProduct("SP001")}}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentProductDetails, SKU: "SP001"}}, shop)

	reply := h.send(t, "xem SP001").Messages[1]
	assert.Equal(t, model.RenderProductDetail, reply.Kind)
	assert.Contains(t, reply.Content, "**Mô tả:** Cotton 100%")

	h.llm.intent = model.Intent{Kind: model.IntentProductDetails, SKU: "SP404"}
	reply = h.send(t, "xem SP404").Messages[1]
	assert.Equal(t, "Tôi không tìm thấy thông tin cho sản phẩm với mã SKU: SP404.", reply.Content)

	h.llm.intent = model.Intent{Kind: model.IntentProductDetails}
	reply = h.send(t, "xem sản phẩm").Messages[1]
	assert.Equal(t, MsgDetailsNeedSKU, reply.Content)
}

func TestProductDetailsNotFoundError(t *testing.T) {
	shop := &fakeShop{productErr: &commerce.APIError{Op: "get_product", StatusCode: 404}}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentProductDetails, SKU: "SP404"}}, shop)

	reply := h.send(t, "xem SP404").Messages[1]
	assert.Equal(t, "Tôi không tìm thấy thông tin cho sản phẩm với mã SKU: SP404.", reply.Content)
}

func TestAddToCartDefaultsQuantityAndCreatesCart(t *testing.T) {
	shop := &fakeShop{addResp: addedResponse()}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentAddToCart, SKU: "SP001"}}, shop)

	reply := h.send(t, "thêm SP001 vào giỏ").Messages[1]
	assert.Equal(t, "✅ Đã thêm sản phẩm vào giỏ hàng thành công!", reply.Content)

	require.Len(t, shop.adds, 1)
	assert.Equal(t, addCall{cartID: "cart-new", sku: "SP001", quantity: 1}, shop.adds[0])
	assert.Equal(t, 1, shop.creates)

	cartID, err := h.session.Cart.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cart-new", cartID)

	h.llm.intent = model.Intent{Kind: model.IntentAddToCart, SKU: "SP002", Quantity: 3}
	h.send(t, "thêm 3 SP002")
	assert.Equal(t, 1, shop.creates, "cart is reused")
	assert.Equal(t, 3, shop.adds[1].quantity)
}

func TestAddToCartReplacesExpiredCart(t *testing.T) {
	shop := &fakeShop{addResp: addedResponse(), expiredCarts: map[string]bool{"cart-old": true}}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentAddToCart, SKU: "SP001"}}, shop)
	ctx := context.Background()
	require.NoError(t, h.session.Cart.Set(ctx, "cart-old"))

	reply := h.send(t, "thêm SP001 vào giỏ").Messages[1]
	assert.Equal(t, "✅ Đã thêm sản phẩm vào giỏ hàng thành công!", reply.Content)

	require.Len(t, shop.adds, 2)
	assert.Equal(t, "cart-old", shop.adds[0].cartID)
	assert.Equal(t, "cart-new", shop.adds[1].cartID)
	assert.Equal(t, 1, shop.creates)

	cartID, err := h.session.Cart.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-new", cartID)
}

func TestAddToCartRequiresSKU(t *testing.T) {
	shop := &fakeShop{}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentAddToCart}}, shop)

	reply := h.send(t, "thêm vào giỏ").Messages[1]
	assert.Equal(t, MsgAddNeedSKU, reply.Content)
	assert.Empty(t, shop.adds)
	assert.Zero(t, shop.creates)
}

func TestAddToCartUserError(t *testing.T) {
	resp := &commerce.AddToCartResponse{}
	resp.Data.AddProductsToCart = &commerce.AddProductsResult{UserErrors: []commerce.UserError{{Message: "Hết hàng"}}}

	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentAddToCart, SKU: "SP001"}}, &fakeShop{addResp: resp})

	reply := h.send(t, "thêm SP001").Messages[1]
	assert.Equal(t, "❌ Không thể thêm sản phẩm vào giỏ hàng: Hết hàng", reply.Content)
}

func TestViewCartWithoutCartMakesNoCall(t *testing.T) {
	shop := &fakeShop{}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentViewCart}}, shop)

	reply := h.send(t, "xem giỏ hàng").Messages[1]
	assert.Equal(t, MsgCartEmpty, reply.Content)
	assert.Zero(t, shop.cartGets)
}

func TestViewCart(t *testing.T) {
	item := commerce.CartItem{UID: "u1", Quantity: 2, Product: sampleProduct("SP001")}
	shop := &fakeShop{cart: cartWith(item)}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentViewCart}}, shop)
	require.NoError(t, h.session.Cart.Set(context.Background(), "cart-1"))

	reply := h.send(t, "xem giỏ hàng").Messages[1]
	assert.Equal(t, model.RenderCartView, reply.Kind)
	assert.Contains(t, reply.Content, "Số lượng: 2")

	shop.cart = cartWith()
	reply = h.send(t, "xem giỏ hàng").Messages[1]
	assert.Equal(t, MsgCartEmpty, reply.Content)
}

func TestViewCartForgetsExpiredCart(t *testing.T) {
	shop := &fakeShop{cartErr: &commerce.APIError{Op: "get_cart", StatusCode: 404}}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentViewCart}}, shop)
	ctx := context.Background()
	require.NoError(t, h.session.Cart.Set(ctx, "cart-old"))

	reply := h.send(t, "xem giỏ hàng").Messages[1]
	assert.Equal(t, MsgCartEmpty, reply.Content)

	cartID, err := h.session.Cart.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, cartID)
}

func TestCheckoutWithEmptyCart(t *testing.T) {
	shop := &fakeShop{cart: cartWith()}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentCheckout}}, shop)
	require.NoError(t, h.session.Cart.Set(context.Background(), "cart-1"))

	reply := h.send(t, "thanh toán").Messages[1]
	assert.Equal(t, MsgCheckoutEmpty, reply.Content)
	assert.Equal(t, 1, shop.cartGets)
	assert.Empty(t, shop.checkouts)
}

func TestCheckout(t *testing.T) {
	shop := &fakeShop{
		cart:         cartWith(commerce.CartItem{UID: "u1", Quantity: 1, Product: sampleProduct("SP001")}),
		checkoutResp: &commerce.CheckoutResponse{RedirectURL: "https://shop/pay/1"},
	}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentCheckout}}, shop)
	require.NoError(t, h.session.Cart.Set(context.Background(), "cart-1"))

	reply := h.send(t, "thanh toán").Messages[1]
	assert.Contains(t, reply.Content, "https://shop/pay/1")
	assert.Equal(t, []string{"cart-1"}, shop.checkouts)

	require.Len(t, h.rec.events, 1)
	assert.Equal(t, model.EventTypeCheckout, h.rec.events[0].Type)
	assert.Equal(t, "s1", h.rec.events[0].SessionID)
}

func TestGeneralQuestionUsesFallback(t *testing.T) {
	h := newHarness(t, &fakeCompletion{intent: model.GeneralQuestion(), reply: "Chào bạn, MM Shop mở cửa 8h."}, &fakeShop{})

	reply := h.send(t, "mấy giờ mở cửa?").Messages[1]
	assert.Equal(t, "Chào bạn, MM Shop mở cửa 8h.", reply.Content)

	require.Len(t, h.llm.lastHistory, 1, "fallback sees the user message")
	assert.Equal(t, "mấy giờ mở cửa?", h.llm.lastHistory[0].Content)
}

func TestFallbackSeesBoundedHistory(t *testing.T) {
	h := newHarness(t, &fakeCompletion{intent: model.GeneralQuestion(), reply: "ok"}, &fakeShop{})
	h.assistant.opts.HistoryWindow = 3

	for i := 0; i < 4; i++ {
		h.send(t, "câu hỏi")
	}
	assert.Len(t, h.llm.lastHistory, 3)
}

func TestFallbackDisabled(t *testing.T) {
	llm := &fakeCompletion{intent: model.GeneralQuestion(), reply: "unused"}
	h := newHarness(t, llm, &fakeShop{})
	h.assistant.opts.PrecomputeFallback = false

	reply := h.send(t, "hmm").Messages[1]
	assert.Equal(t, MsgNotUnderstood, reply.Content)
	assert.Zero(t, llm.replyCalls)
}

type failingLLM struct{}

func (failingLLM) Complete(context.Context, *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errors.New("503 service unavailable")
}
func (failingLLM) Name() string     { return "failing" }
func (failingLLM) Models() []string { return nil }

func TestCompletionBackendDown(t *testing.T) {
	client := completion.NewClient(failingLLM{}, "m", config.DefaultPrompts(), logger.Nop())
	sess := session.New(storage.NewMemoryStore(), "s1", nil, logger.Nop())
	a := New(sess, client, &fakeShop{}, Options{PrecomputeFallback: true}, logger.Nop())

	turn, err := a.HandleUserMessage(context.Background(), "xin chào")
	require.NoError(t, err)

	assert.Equal(t, model.IntentGeneralQuestion, turn.Intent)
	require.Len(t, turn.Messages, 2)
	assert.Equal(t, MsgNotUnderstood, turn.Messages[1].Content, "static apology, not the fallback apology")
}

func TestRemoteFailureIsApologyUnlessDebug(t *testing.T) {
	shop := &fakeShop{searchErr: errors.New("dial tcp: timeout")}
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentSearchProduct, Keyword: "áo"}}, shop)

	reply := h.send(t, "tìm áo").Messages[1]
	assert.Equal(t, MsgSearchFailed, reply.Content)
	require.Len(t, h.rec.events, 1)
	assert.Equal(t, model.EventTypeError, h.rec.events[0].Type)

	h.send(t, "/debug")
	assert.True(t, h.assistant.Debug())

	reply = h.send(t, "tìm áo").Messages[1]
	assert.Equal(t, "Lỗi tìm kiếm sản phẩm: dial tcp: timeout", reply.Content)
}

func TestPanicBecomesGenericApology(t *testing.T) {
	h := newHarness(t, &fakeCompletion{intent: model.Intent{Kind: model.IntentSearchProduct}}, &fakeShop{panicOn: "search"})
	h.assistant.opts.PrecomputeFallback = false

	reply := h.send(t, "tìm").Messages[1]
	assert.Equal(t, MsgGenericError, reply.Content)
}

func TestDebugCommand(t *testing.T) {
	h := newHarness(t, &fakeCompletion{}, &fakeShop{})

	turn := h.send(t, "/debug")
	require.Len(t, turn.Messages, 1, "command text is not recorded")
	assert.Equal(t, MsgDebugOn, turn.Messages[0].Content)
	assert.Equal(t, CmdDebug, turn.Command)

	turn = h.send(t, "/DEBUG")
	assert.Equal(t, MsgDebugOff, turn.Messages[0].Content)
	assert.Zero(t, h.llm.replyCalls, "commands skip the model")
}

func TestSelfTestCommands(t *testing.T) {
	h := newHarness(t, &fakeCompletion{}, &fakeShop{})

	turn := h.send(t, "/test-api")
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, "✅ API Gemini hoạt động bình thường!", turn.Messages[0].Content)
	assert.Equal(t, []bool{true, false}, h.rec.typing)

	h.llm.probeErr = errors.New("403")
	turn = h.send(t, "/test-api")
	assert.Equal(t, "❌ Lỗi kết nối API Gemini: 403", turn.Messages[0].Content)

	turn = h.send(t, "/test-backend")
	assert.Equal(t, MsgBackendOK, turn.Messages[0].Content)
	assert.Equal(t, []string{"test"}, h.shop.searches)

	h.shop.searchErr = errors.New("502")
	turn = h.send(t, "/test-backend")
	assert.Equal(t, "❌ Lỗi kết nối backend: 502", turn.Messages[0].Content)
}

type fakeBackend struct{ err error }

func (f fakeBackend) Login(context.Context, string, string) (string, error) {
	return "cust-tok", f.err
}

func (f fakeBackend) SyncWishlist(_ context.Context, items []model.WishlistItem, _ string) ([]model.WishlistItem, error) {
	return items, nil
}

func TestLoginLogoutCommands(t *testing.T) {
	ctx := context.Background()
	sess := session.New(storage.NewMemoryStore(), "s1", fakeBackend{}, logger.Nop())
	a := New(sess, &fakeCompletion{}, &fakeShop{}, Options{}, logger.Nop())

	turn, err := a.HandleUserMessage(ctx, "/login a@b.vn")
	require.NoError(t, err)
	assert.Equal(t, MsgLoginUsage, turn.Messages[0].Content)

	turn, err = a.HandleUserMessage(ctx, "/login a@b.vn secret")
	require.NoError(t, err)
	assert.Equal(t, "✅ Đã đăng nhập với tài khoản a@b.vn.", turn.Messages[0].Content)

	token, err := sess.Auth.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cust-tok", token)

	turn, err = a.HandleUserMessage(ctx, "/logout")
	require.NoError(t, err)
	assert.Equal(t, MsgLogoutOK, turn.Messages[0].Content)

	profile, err := sess.Auth.Profile(ctx)
	require.NoError(t, err)
	assert.False(t, profile.Authenticated)
}

func TestLoginFailureCommand(t *testing.T) {
	sess := session.New(storage.NewMemoryStore(), "s1", fakeBackend{err: errors.New("Invalid credentials")}, logger.Nop())
	a := New(sess, &fakeCompletion{}, &fakeShop{}, Options{}, logger.Nop())

	turn, err := a.HandleUserMessage(context.Background(), "/login a@b.vn bad")
	require.NoError(t, err)
	assert.Equal(t, "❌ Đăng nhập thất bại: Invalid credentials", turn.Messages[0].Content)
}

func TestNewCommandStartsConversation(t *testing.T) {
	h := newHarness(t, &fakeCompletion{intent: model.GeneralQuestion(), reply: "hi"}, &fakeShop{})
	first := h.send(t, "xin chào").ConversationID

	turn := h.send(t, "/new")
	assert.NotEqual(t, first, turn.ConversationID)
	assert.Equal(t, MsgWelcome, turn.Messages[0].Content)

	all, err := h.session.History.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUnknownSlashWordIsText(t *testing.T) {
	h := newHarness(t, &fakeCompletion{intent: model.GeneralQuestion(), reply: "?"}, &fakeShop{})

	turn := h.send(t, "/shrug")
	assert.Empty(t, turn.Command)
	assert.Len(t, turn.Messages, 2)
}

func TestGreet(t *testing.T) {
	h := newHarness(t, &fakeCompletion{}, &fakeShop{})

	turn, err := h.assistant.Greet(context.Background())
	require.NoError(t, err)
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, MsgWelcome, turn.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, turn.Messages[0].Role)
}

func addedResponse() *commerce.AddToCartResponse {
	resp := &commerce.AddToCartResponse{}
	resp.Data.AddProductsToCart = &commerce.AddProductsResult{Cart: cartWith()}
	return resp
}

func TestTurnCompletesAfterCallerCancels(t *testing.T) {
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "shopchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	llm := &fakeCompletion{
		intent:     model.Intent{Kind: model.IntentGeneralQuestion},
		reply:      "Chào bạn!",
		onClassify: cancel,
	}
	sess := session.New(store, "s1", nil, logger.Nop())
	a := New(sess, llm, &fakeShop{}, Options{PrecomputeFallback: true}, logger.Nop())

	turn, err := a.HandleUserMessage(ctx, "xin chào")
	require.NoError(t, err)
	require.Len(t, turn.Messages, 2)

	stored, err := sess.History.CurrentMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, model.RoleUser, stored[0].Role)
	assert.Equal(t, model.RoleAssistant, stored[1].Role)
	assert.Equal(t, "Chào bạn!", stored[1].Content)
}
