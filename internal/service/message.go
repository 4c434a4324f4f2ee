package service

import (
	"context"
	"fmt"

	"github.com/capitalize-ai/shop-assistant/internal/assistant"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// MessageService runs chat turns and reads their journal.
type MessageService struct {
	registry      *Registry
	conversations *ConversationService
	logger        *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(registry *Registry, conversations *ConversationService, log *logger.Logger) *MessageService {
	return &MessageService{
		registry:      registry,
		conversations: conversations,
		logger:        log,
	}
}

// Send runs one turn for the session's current conversation.
func (s *MessageService) Send(ctx context.Context, sessionID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	turn, err := s.registry.Assistant(sessionID).HandleUserMessage(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}
	return turnResponse(turn), nil
}

func turnResponse(turn *assistant.Turn) *model.SendMessageResponse {
	return &model.SendMessageResponse{
		ConversationID: turn.ConversationID,
		Messages:       turn.Messages,
	}
}

// GetJournal pages through the journaled messages of a conversation.
func (s *MessageService) GetJournal(ctx context.Context, sessionID, conversationID string, afterSequence uint64, limit int) (*model.JournalPage, error) {
	journal := s.registry.Journal()
	if journal == nil {
		return nil, ErrJournalDisabled
	}
	if _, err := s.conversations.Get(ctx, sessionID, conversationID); err != nil {
		return nil, err
	}

	entries, last, hasMore, err := journal.ReadConversation(ctx, sessionID, conversationID, afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	return &model.JournalPage{
		Entries:      entries,
		LastSequence: last,
		HasMore:      hasMore,
	}, nil
}

// Subscribe streams the session's live messages and typing changes.
func (s *MessageService) Subscribe(sessionID string) (<-chan model.StreamEvent, func()) {
	return s.registry.Hub(sessionID).Subscribe()
}
