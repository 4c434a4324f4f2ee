package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/model"
)

const (
	// StreamName is the name of the conversation journal stream.
	StreamName = "SHOPCHAT"

	// SubjectPrefix is the prefix for all journal subjects.
	SubjectPrefix = "chat"
)

// Journal appends chat messages and turn events to a JetStream stream.
type Journal struct {
	client *Client
}

// NewJournal creates a journal on client.
func NewJournal(client *Client) *Journal {
	return &Journal{client: client}
}

// EnsureStream ensures the journal stream exists with proper configuration.
func (j *Journal) EnsureStream(ctx context.Context) error {
	js := j.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Shopping assistant chat messages and turn events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(sessionID, conversationID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.%s.msg.%s", SubjectPrefix, token(sessionID), token(conversationID), role)
}

// EventSubject returns the subject for an event.
func EventSubject(sessionID, conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.event.%s", SubjectPrefix, token(sessionID), token(conversationID), eventType)
}

// ConversationFilter returns the filter subject for all messages in a conversation.
func ConversationFilter(sessionID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.msg.>", SubjectPrefix, token(sessionID), token(conversationID))
}

// token makes s safe as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// PublishMessage journals one chat message.
func (j *Journal) PublishMessage(ctx context.Context, sessionID, conversationID string, msg model.Message) error {
	data, err := json.Marshal(model.JournalEntry{
		SessionID:      sessionID,
		ConversationID: conversationID,
		Message:        msg,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := j.client.JetStream().Publish(ctx, MessageSubject(sessionID, conversationID, msg.Role), data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// PublishEvent journals a turn event.
func (j *Journal) PublishEvent(ctx context.Context, event *model.ConversationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := EventSubject(event.SessionID, event.ConversationID, event.Type)
	if _, err := j.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// ReadConversation returns journaled messages of a conversation after a
// stream sequence, up to limit. hasMore is true when the page is full.
// lastSequence is the cursor for the next page.
func (j *Journal) ReadConversation(ctx context.Context, sessionID, conversationID string, afterSequence uint64, limit int) (entries []model.JournalEntry, lastSequence uint64, hasMore bool, err error) {
	if limit <= 0 {
		limit = 50
	}

	consumerConfig := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{ConversationFilter(sessionID, conversationID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := j.client.JetStream().OrderedConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch messages: %w", err)
	}

	// Undecodable records are skipped but still advance the cursor and
	// count toward the page.
	fetched := 0
	for msg := range batch.Messages() {
		fetched++
		var sequence uint64
		if meta, err := msg.Metadata(); err == nil {
			sequence = meta.Sequence.Stream
			lastSequence = sequence
		}

		var entry model.JournalEntry
		if err := json.Unmarshal(msg.Data(), &entry); err != nil {
			j.client.logger.Warn("skipping undecodable journal entry",
				zap.Uint64("sequence", sequence), zap.Error(err))
			continue
		}
		entry.Sequence = sequence
		entries = append(entries, entry)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, false, fmt.Errorf("batch error: %w", err)
	}

	return entries, lastSequence, fetched == limit, nil
}
