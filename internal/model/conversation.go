package model

import (
	"time"
)

// Conversation represents one chat thread kept in session history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

// ConversationSummary is the sidebar view of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
}

// Summary returns the sidebar view of c.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{
		ID:           c.ID,
		Title:        c.Title,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
}

// CreateConversationRequest is the request to start a new chat.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateConversationRequest is the request to rename a chat.
type UpdateConversationRequest struct {
	Title string `json:"title"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	CurrentID     string                `json:"current_id,omitempty"`
	Total         int                   `json:"total"`
}
