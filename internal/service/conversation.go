package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/session"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// ConversationService handles conversation operations.
type ConversationService struct {
	registry *Registry
	logger   *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(registry *Registry, log *logger.Logger) *ConversationService {
	return &ConversationService{
		registry: registry,
		logger:   log,
	}
}

func (s *ConversationService) history(sessionID string) *session.HistoryStore {
	return s.registry.Assistant(sessionID).Session().History
}

// Create starts a conversation, makes it current, and greets the shopper in it.
func (s *ConversationService) Create(ctx context.Context, sessionID string, req *model.CreateConversationRequest) (*model.Conversation, error) {
	a := s.registry.Assistant(sessionID)

	conv, err := a.Session().History.Create(ctx, req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if _, err := a.Greet(ctx); err != nil {
		s.logger.Warn("failed to greet new conversation",
			zap.String("session_id", sessionID),
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("conversation created",
		zap.String("session_id", sessionID),
		zap.String("conversation_id", conv.ID),
	)
	return s.Get(ctx, sessionID, conv.ID)
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, sessionID, conversationID string) (*model.Conversation, error) {
	conv, err := s.history(sessionID).Get(ctx, conversationID)
	if errors.Is(err, session.ErrConversationNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// List lists the session's conversations, most recent first.
func (s *ConversationService) List(ctx context.Context, sessionID string) (*model.ListConversationsResponse, error) {
	history := s.history(sessionID)

	summaries, err := history.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	currentID, err := history.CurrentID(ctx)
	if err != nil {
		return nil, err
	}

	return &model.ListConversationsResponse{
		Conversations: summaries,
		CurrentID:     currentID,
		Total:         len(summaries),
	}, nil
}

// Update renames a conversation.
func (s *ConversationService) Update(ctx context.Context, sessionID, conversationID string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	ok, err := s.history(sessionID).Rename(ctx, conversationID, req.Title)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, sessionID, conversationID)
}

// Select makes a conversation current.
func (s *ConversationService) Select(ctx context.Context, sessionID, conversationID string) (*model.Conversation, error) {
	ok, err := s.history(sessionID).Select(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, sessionID, conversationID)
}

// Delete deletes a conversation.
func (s *ConversationService) Delete(ctx context.Context, sessionID, conversationID string) error {
	ok, err := s.history(sessionID).Delete(ctx, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}

	s.logger.Info("conversation deleted",
		zap.String("session_id", sessionID),
		zap.String("conversation_id", conversationID),
	)
	return nil
}

// Clear deletes every conversation of the session.
func (s *ConversationService) Clear(ctx context.Context, sessionID string) error {
	return s.history(sessionID).ClearAll(ctx)
}
