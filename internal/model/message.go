// Package model defines data structures for the shopping assistant.
package model

import (
	"encoding/json"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RenderKind tells the renderer how to draw a message.
type RenderKind string

const (
	RenderText          RenderKind = "text"
	RenderProductList   RenderKind = "product_list"
	RenderProductDetail RenderKind = "product_detail"
	RenderCartView      RenderKind = "cart_view"
)

// Message represents a chat bubble.
type Message struct {
	ID      string          `json:"id"`
	Role    Role            `json:"role"`
	Content string          `json:"content"`
	Kind    RenderKind      `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	CreatedAt time.Time `json:"timestamp"`
}

// IsStructured reports whether the message carries a render payload.
func (m Message) IsStructured() bool {
	return m.Kind != "" && m.Kind != RenderText && len(m.Payload) > 0
}

// SendMessageRequest is the request to send a chat message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageResponse carries every message appended during one turn.
type SendMessageResponse struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}
