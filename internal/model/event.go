package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeError    EventType = "error"
	EventTypeCommand  EventType = "command"
	EventTypeCheckout EventType = "checkout"
)

// ConversationEvent is a non-message occurrence recorded in the journal.
type ConversationEvent struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"type"`
	Reason         string         `json:"reason"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// JournalEntry is one journaled chat message with its routing context.
type JournalEntry struct {
	SessionID      string  `json:"session_id"`
	ConversationID string  `json:"conversation_id"`
	Message        Message `json:"message"`
	Sequence       uint64  `json:"sequence,omitempty"`
}

// JournalPage is one page of a conversation's journal.
type JournalPage struct {
	Entries      []JournalEntry `json:"entries"`
	LastSequence uint64         `json:"last_sequence"`
	HasMore      bool           `json:"has_more"`
}

// StreamEventType names what a live stream event carries.
type StreamEventType string

const (
	StreamEventMessage StreamEventType = "message"
	StreamEventTyping  StreamEventType = "typing"
)

// StreamEvent is pushed to live subscribers of a session.
type StreamEvent struct {
	Type           StreamEventType `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Message        *Message        `json:"message,omitempty"`
	Typing         bool            `json:"typing"`
}

// HeartbeatEvent keeps idle stream connections open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent reports a stream failure.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
