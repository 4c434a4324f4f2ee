package service

import (
	"sync"

	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

const subscriberBuffer = 32

// Hub fans a session's assistant activity out to live subscribers. Slow
// subscribers miss events rather than stall the turn.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan model.StreamEvent]struct{}
	logger *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs:   make(map[chan model.StreamEvent]struct{}),
		logger: log,
	}
}

// OnMessage implements assistant.Observer.
func (h *Hub) OnMessage(conversationID string, msg model.Message) {
	h.publish(model.StreamEvent{
		Type:           model.StreamEventMessage,
		ConversationID: conversationID,
		Message:        &msg,
	})
}

// OnTyping implements assistant.Observer.
func (h *Hub) OnTyping(typing bool) {
	h.publish(model.StreamEvent{Type: model.StreamEventTyping, Typing: typing})
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan model.StreamEvent, func()) {
	ch := make(chan model.StreamEvent, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// HasSubscribers reports whether anyone is listening.
func (h *Hub) HasSubscribers() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs) > 0
}

func (h *Hub) publish(event model.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.logger.Debug("stream subscriber lagging, event dropped")
		}
	}
}
