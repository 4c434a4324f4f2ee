// Package assistant turns one shopper utterance into one assistant reply:
// classify the intent, call the shop backend, and record both sides of the
// exchange in the session's chat history.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/session"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
	"github.com/capitalize-ai/shop-assistant/pkg/metrics"
	"github.com/capitalize-ai/shop-assistant/pkg/tracing"
)

// Completion is the language-model side of a turn.
type Completion interface {
	ClassifyIntent(ctx context.Context, text string) model.Intent
	GenerateReply(ctx context.Context, history []model.Message, systemPrompt string) (string, error)
	TestConnection(ctx context.Context) error
}

// Shop is the commerce backend as the assistant uses it.
type Shop interface {
	Search(ctx context.Context, keyword string) (*commerce.ProductsResponse, error)
	GetProduct(ctx context.Context, sku string) (*commerce.ProductsResponse, error)
	CreateCart(ctx context.Context, token string) (string, error)
	AddToCart(ctx context.Context, cartID, sku string, quantity int, token string) (*commerce.AddToCartResponse, error)
	GetCart(ctx context.Context, cartID, token string) (*commerce.CartResponse, error)
	StartCheckout(ctx context.Context, cartID, token string) (*commerce.CheckoutResponse, error)
}

// Journal receives a copy of every appended message and notable event.
type Journal interface {
	PublishMessage(ctx context.Context, sessionID, conversationID string, msg model.Message) error
	PublishEvent(ctx context.Context, event *model.ConversationEvent) error
}

// Observer is told about messages and the typing indicator as they happen.
type Observer interface {
	OnMessage(conversationID string, msg model.Message)
	OnTyping(typing bool)
}

// Options tunes the assistant.
type Options struct {
	// PrecomputeFallback asks the model for a generic reply before
	// classification so unrecognized intents have something to show.
	PrecomputeFallback bool

	// HistoryWindow is how many recent messages the fallback reply sees.
	HistoryWindow int

	// Persona is the system instruction for free-text replies.
	Persona string

	// ProviderName labels the model in self-test replies.
	ProviderName string

	// Debug starts the session with raw error detail shown.
	Debug bool

	Journal  Journal
	Observer Observer
}

// Turn is what one call to HandleUserMessage appended.
type Turn struct {
	ConversationID string           `json:"conversation_id"`
	Intent         model.IntentKind `json:"intent,omitempty"`
	Command        string           `json:"command,omitempty"`
	Messages       []model.Message  `json:"messages"`
}

// Assistant is the conversation orchestrator of one session. Overlapping
// HandleUserMessage calls are not sequenced; their replies may interleave.
type Assistant struct {
	session    *session.Session
	completion Completion
	shop       Shop
	opts       Options
	debug      atomic.Bool
	logger     *logger.Logger
}

// New creates an orchestrator for sess.
func New(sess *session.Session, completion Completion, shop Shop, opts Options, log *logger.Logger) *Assistant {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.ProviderName == "" {
		opts.ProviderName = "Gemini"
	}
	a := &Assistant{
		session:    sess,
		completion: completion,
		shop:       shop,
		opts:       opts,
		logger:     log.WithSession(sess.ID),
	}
	a.debug.Store(opts.Debug)
	return a
}

// Session returns the session this assistant serves.
func (a *Assistant) Session() *session.Session {
	return a.session
}

// Debug reports whether raw error detail is shown.
func (a *Assistant) Debug() bool {
	return a.debug.Load()
}

// HandleUserMessage runs one turn. Empty input is a no-op. Slash commands
// short-circuit classification. Every other input appends the user message
// and exactly one assistant reply; remote failures become apologetic
// replies, so the returned error is reserved for history storage failures.
func (a *Assistant) HandleUserMessage(ctx context.Context, text string) (*Turn, error) {
	text = strings.TrimSpace(text)
	turn := &Turn{Messages: []model.Message{}}
	if text == "" {
		return turn, nil
	}

	// A shopper who leaves mid-turn still gets the reply recorded.
	ctx = context.WithoutCancel(ctx)

	ctx, span := tracing.Tracer("assistant").Start(ctx, "assistant.turn")
	defer span.End()
	start := time.Now()

	if cmd, args, ok := parseCommand(text); ok {
		span.SetAttributes(attribute.String("assistant.command", cmd))
		turn.Command = cmd
		err := a.runCommand(ctx, turn, cmd, args)
		metrics.RecordTurn("command", outcomeOf(err), time.Since(start))
		return turn, err
	}

	if err := a.append(ctx, turn, userMessage(text)); err != nil {
		span.RecordError(err)
		return turn, err
	}

	a.setTyping(true)
	defer a.setTyping(false)

	fallback := a.precomputeFallback(ctx)

	intent := a.completion.ClassifyIntent(ctx, text)
	turn.Intent = intent.Kind
	span.SetAttributes(attribute.String("assistant.intent", string(intent.Kind)))

	reply, outcome := a.dispatch(ctx, turn, intent, text, fallback)
	metrics.RecordTurn(string(intent.Kind), outcome, time.Since(start))

	if err := a.append(ctx, turn, reply); err != nil {
		span.RecordError(err)
		return turn, err
	}
	return turn, nil
}

// Greet appends the welcome message to the current conversation.
func (a *Assistant) Greet(ctx context.Context) (*Turn, error) {
	turn := &Turn{Messages: []model.Message{}}
	return turn, a.append(ctx, turn, textReply(MsgWelcome))
}

// precomputeFallback returns a generic model reply to the recent
// conversation, or "" when disabled or when the model fails.
func (a *Assistant) precomputeFallback(ctx context.Context) string {
	if !a.opts.PrecomputeFallback {
		return ""
	}

	history, err := a.session.History.CurrentMessages(ctx)
	if err != nil {
		a.logger.Warn("failed to load history for fallback", zap.Error(err))
		return ""
	}
	if len(history) > a.opts.HistoryWindow {
		history = history[len(history)-a.opts.HistoryWindow:]
	}

	reply, err := a.completion.GenerateReply(ctx, history, a.opts.Persona)
	if err != nil {
		a.logger.Warn("fallback reply failed", zap.Error(err))
		return ""
	}
	return reply
}

// dispatch runs the branch for intent and returns the reply to append.
// A panic in a branch becomes the generic apology.
func (a *Assistant) dispatch(ctx context.Context, turn *Turn, intent model.Intent, text, fallback string) (reply model.Message, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("turn panicked", zap.Any("panic", r), zap.String("intent", string(intent.Kind)))
			reply, outcome = a.unexpected(fmt.Errorf("panic: %v", r), fallback), "error"
		}
	}()

	var err error
	switch intent.Kind {
	case model.IntentSearchProduct:
		reply, err = a.searchProducts(ctx, intent, text)
	case model.IntentProductDetails:
		reply, err = a.productDetails(ctx, intent)
	case model.IntentAddToCart:
		reply, err = a.addToCart(ctx, intent)
	case model.IntentViewCart:
		reply, err = a.viewCart(ctx)
	case model.IntentCheckout:
		reply, err = a.checkout(ctx, turn)
	default:
		if fallback != "" {
			return textReply(fallback), "fallback"
		}
		return textReply(MsgNotUnderstood), "not_understood"
	}

	if err != nil {
		a.logger.Warn("turn branch failed", zap.String("intent", string(intent.Kind)), zap.Error(err))
		a.publishEvent(ctx, turn, model.EventTypeError, err.Error(), map[string]any{"intent": string(intent.Kind)})
		return reply, "error"
	}
	return reply, "ok"
}

func (a *Assistant) searchProducts(ctx context.Context, intent model.Intent, text string) (model.Message, error) {
	keyword := intent.Keyword
	if keyword == "" {
		keyword = text
	}

	resp, err := a.shop.Search(ctx, keyword)
	if err != nil {
		return a.failure(MsgSearchFailed, MsgSearchFailedDbg, err), err
	}

	items := resp.Items()
	if len(items) == 0 {
		return textReply(fmt.Sprintf(MsgSearchNone, keyword)), nil
	}
	return structuredReply(
		fmt.Sprintf(MsgSearchFound, len(items), keyword),
		model.RenderProductList,
		ProductListPayload{Keyword: keyword, Products: items},
	), nil
}

func (a *Assistant) productDetails(ctx context.Context, intent model.Intent) (model.Message, error) {
	if intent.SKU == "" {
		return textReply(MsgDetailsNeedSKU), nil
	}

	resp, err := a.shop.GetProduct(ctx, intent.SKU)
	if errors.Is(err, commerce.ErrNotFound) {
		return textReply(fmt.Sprintf(MsgDetailsNotFound, intent.SKU)), nil
	}
	if err != nil {
		return a.failure(MsgDetailsFailed, MsgDetailsFailedDbg, err), err
	}

	items := resp.Items()
	if len(items) == 0 {
		return textReply(fmt.Sprintf(MsgDetailsNotFound, intent.SKU)), nil
	}
	return structuredReply(
		FormatProductDetails(items[0]),
		model.RenderProductDetail,
		ProductDetailPayload{Product: items[0]},
	), nil
}

func (a *Assistant) addToCart(ctx context.Context, intent model.Intent) (model.Message, error) {
	if intent.SKU == "" {
		return textReply(MsgAddNeedSKU), nil
	}

	token, err := a.session.Auth.Token(ctx)
	if err != nil {
		return a.failure(MsgAddFailed, MsgAddFailedDbg, err), err
	}
	cartID, err := a.ensureCart(ctx, token)
	if err != nil {
		return a.failure(MsgAddFailed, MsgAddFailedDbg, err), err
	}

	quantity := intent.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	resp, err := a.shop.AddToCart(ctx, cartID, intent.SKU, quantity, token)
	if errors.Is(err, commerce.ErrNotFound) {
		// The stored cart expired; it never received the item, so retry once
		// on a fresh cart.
		a.logger.Info("stored cart no longer exists", zap.String("cart_id", cartID))
		if err = a.session.Cart.Clear(ctx); err == nil {
			if cartID, err = a.ensureCart(ctx, token); err == nil {
				resp, err = a.shop.AddToCart(ctx, cartID, intent.SKU, quantity, token)
			}
		}
	}
	if err != nil {
		return a.failure(MsgAddFailed, MsgAddFailedDbg, err), err
	}
	return textReply(FormatAddToCart(resp)), nil
}

// ensureCart returns the session's cart id, creating a cart on first use.
func (a *Assistant) ensureCart(ctx context.Context, token string) (string, error) {
	cartID, err := a.session.Cart.Get(ctx)
	if err != nil {
		return "", err
	}
	if cartID != "" {
		return cartID, nil
	}

	cartID, err = a.shop.CreateCart(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to create cart: %w", err)
	}
	if err := a.session.Cart.Set(ctx, cartID); err != nil {
		return "", err
	}
	a.logger.Info("cart created", zap.String("cart_id", cartID))
	return cartID, nil
}

// loadCart fetches the session's cart. A missing cart id, an expired cart,
// and an empty cart all come back as nil.
func (a *Assistant) loadCart(ctx context.Context) (cart *commerce.Cart, cartID, token string, err error) {
	cartID, err = a.session.Cart.Get(ctx)
	if err != nil || cartID == "" {
		return nil, "", "", err
	}
	token, err = a.session.Auth.Token(ctx)
	if err != nil {
		return nil, "", "", err
	}

	resp, err := a.shop.GetCart(ctx, cartID, token)
	if errors.Is(err, commerce.ErrNotFound) {
		a.logger.Info("stored cart no longer exists", zap.String("cart_id", cartID))
		if err := a.session.Cart.Clear(ctx); err != nil {
			a.logger.Warn("failed to clear stale cart id", zap.Error(err))
		}
		return nil, "", "", nil
	}
	if err != nil {
		return nil, "", "", err
	}

	cart = resp.Cart()
	if cart == nil || len(cart.Items) == 0 {
		return nil, cartID, token, nil
	}
	return cart, cartID, token, nil
}

func (a *Assistant) viewCart(ctx context.Context) (model.Message, error) {
	cart, _, _, err := a.loadCart(ctx)
	if err != nil {
		return a.failure(MsgCartFailed, MsgCartFailedDbg, err), err
	}
	if cart == nil {
		return textReply(MsgCartEmpty), nil
	}
	return structuredReply(FormatCart(cart), model.RenderCartView, CartPayload{Cart: cart}), nil
}

func (a *Assistant) checkout(ctx context.Context, turn *Turn) (model.Message, error) {
	cart, cartID, token, err := a.loadCart(ctx)
	if err != nil {
		return a.failure(MsgCheckoutFailed, MsgCheckoutFailedDbg, err), err
	}
	if cart == nil {
		return textReply(MsgCheckoutEmpty), nil
	}

	resp, err := a.shop.StartCheckout(ctx, cartID, token)
	if err != nil {
		return a.failure(MsgCheckoutFailed, MsgCheckoutFailedDbg, err), err
	}
	a.publishEvent(ctx, turn, model.EventTypeCheckout, "checkout started", map[string]any{
		"cart_id":      cartID,
		"redirect_url": resp.RedirectURL,
	})
	return textReply(FormatCheckout(resp)), nil
}

// failure picks the apology, or the raw error in debug mode.
func (a *Assistant) failure(plain, debugFormat string, err error) model.Message {
	if a.Debug() {
		return textReply(fmt.Sprintf(debugFormat, err))
	}
	return textReply(plain)
}

func (a *Assistant) unexpected(err error, fallback string) model.Message {
	if fallback != "" {
		return textReply(fallback)
	}
	msg := MsgGenericError
	if a.Debug() {
		msg += " Lỗi: " + err.Error()
	}
	return textReply(msg)
}

// append records msg in history and reports it to the turn, the observer,
// and the journal.
func (a *Assistant) append(ctx context.Context, turn *Turn, msg model.Message) error {
	convID, stored, err := a.session.History.AddMessage(ctx, msg)
	if err != nil {
		a.logger.Error("failed to record message", zap.String("role", string(msg.Role)), zap.Error(err))
		return fmt.Errorf("failed to record message: %w", err)
	}

	turn.ConversationID = convID
	turn.Messages = append(turn.Messages, stored)
	if a.opts.Observer != nil {
		a.opts.Observer.OnMessage(convID, stored)
	}
	if a.opts.Journal != nil {
		if err := a.opts.Journal.PublishMessage(ctx, a.session.ID, convID, stored); err != nil {
			a.logger.Warn("failed to journal message", zap.Error(err))
		}
	}
	return nil
}

func (a *Assistant) publishEvent(ctx context.Context, turn *Turn, typ model.EventType, reason string, meta map[string]any) {
	if a.opts.Journal == nil {
		return
	}
	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		SessionID:      a.session.ID,
		ConversationID: turn.ConversationID,
		Type:           typ,
		Reason:         reason,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.opts.Journal.PublishEvent(ctx, event); err != nil {
		a.logger.Warn("failed to journal event", zap.String("type", string(typ)), zap.Error(err))
	}
}

func (a *Assistant) setTyping(typing bool) {
	if a.opts.Observer != nil {
		a.opts.Observer.OnTyping(typing)
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func userMessage(text string) model.Message {
	return model.Message{Role: model.RoleUser, Content: text, Kind: model.RenderText}
}

func textReply(text string) model.Message {
	return model.Message{Role: model.RoleAssistant, Content: text, Kind: model.RenderText}
}

func structuredReply(text string, kind model.RenderKind, payload any) model.Message {
	msg := textReply(text)
	data, err := json.Marshal(payload)
	if err != nil {
		return msg
	}
	msg.Kind = kind
	msg.Payload = data
	return msg
}
