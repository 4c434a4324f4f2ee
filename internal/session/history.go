package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

const (
	// MaxConversations is how many conversations a session keeps.
	MaxConversations = 20

	// MaxMessages is how many messages a conversation keeps.
	MaxMessages = 50

	// DefaultTitlePrefix starts every auto-generated conversation title.
	DefaultTitlePrefix = "Trò chuyện "

	titleRunes = 30
)

// ErrConversationNotFound is returned for unknown conversation ids.
var ErrConversationNotFound = errors.New("conversation not found")

// HistoryStore is the session's list of conversations, most recent first,
// plus which one is current.
type HistoryStore struct {
	mu      sync.Mutex
	history *record
	current *record
	now     func() time.Time
}

// NewHistoryStore creates a chat-history store.
func NewHistoryStore(store storage.Store, sessionID string, log *logger.Logger) *HistoryStore {
	return &HistoryStore{
		history: newRecord(store, sessionID, KeyChatHistory, log),
		current: newRecord(store, sessionID, KeyCurrentChatID, log),
		now:     time.Now,
	}
}

type historyState struct {
	chats     []model.Conversation
	currentID string
}

func (st *historyState) index(id string) int {
	for i := range st.chats {
		if st.chats[i].ID == id {
			return i
		}
	}
	return -1
}

// Create starts a conversation at the front of the list and makes it
// current. An empty title becomes "Trò chuyện N".
func (s *HistoryStore) Create(ctx context.Context, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	conv := s.create(st, title)
	if err := s.save(ctx, st); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *HistoryStore) create(st *historyState, title string) model.Conversation {
	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf("%s%d", DefaultTitlePrefix, len(st.chats)+1)
	}

	conv := model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     title,
		UpdatedAt: s.now().UTC(),
		Messages:  []model.Message{},
	}

	st.chats = append([]model.Conversation{conv}, st.chats...)
	if len(st.chats) > MaxConversations {
		st.chats = st.chats[:MaxConversations]
	}
	st.currentID = conv.ID
	return conv
}

// Select makes id current. It returns false when id is unknown.
func (s *HistoryStore) Select(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if st.index(id) < 0 {
		return false, nil
	}
	st.currentID = id
	return true, s.saveCurrent(ctx, st)
}

// CurrentID returns the current conversation id, or "".
func (s *HistoryStore) CurrentID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.loadString(ctx)
}

// Current returns the current conversation, or nil when there is none.
func (s *HistoryStore) Current(ctx context.Context) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := st.index(st.currentID)
	if i < 0 {
		return nil, nil
	}
	return &st.chats[i], nil
}

// CurrentMessages returns the messages of the current conversation.
func (s *HistoryStore) CurrentMessages(ctx context.Context) ([]model.Message, error) {
	conv, err := s.Current(ctx)
	if err != nil || conv == nil {
		return nil, err
	}
	return conv.Messages, nil
}

// Get returns the conversation with id.
func (s *HistoryStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	i := st.index(id)
	if i < 0 {
		return nil, ErrConversationNotFound
	}
	return &st.chats[i], nil
}

// GetAll returns summaries of every conversation, most recent first.
func (s *HistoryStore) GetAll(ctx context.Context) ([]model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.ConversationSummary, 0, len(st.chats))
	for i := range st.chats {
		out = append(out, st.chats[i].Summary())
	}
	return out, nil
}

// AddMessage appends msg to the current conversation, creating one first
// when none is current. The conversation moves to the front and keeps only
// its newest MaxMessages messages. The first user message, even after a
// greeting, replaces a default title. It returns the conversation id and the
// stored message.
func (s *HistoryStore) AddMessage(ctx context.Context, msg model.Message) (string, model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return "", msg, err
	}

	i := st.index(st.currentID)
	if i < 0 {
		s.create(st, "")
		i = 0
	}

	now := s.now().UTC()
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	conv := st.chats[i]
	firstUser := msg.Role == model.RoleUser && !hasUserMessage(conv.Messages)
	conv.Messages = append(conv.Messages, msg)
	if len(conv.Messages) > MaxMessages {
		conv.Messages = conv.Messages[len(conv.Messages)-MaxMessages:]
	}
	if firstUser && strings.HasPrefix(conv.Title, DefaultTitlePrefix) {
		conv.Title = TitleFromMessage(msg.Content)
	}
	conv.UpdatedAt = now

	st.chats = append(st.chats[:i], st.chats[i+1:]...)
	st.chats = append([]model.Conversation{conv}, st.chats...)

	if err := s.save(ctx, st); err != nil {
		return "", msg, err
	}
	return conv.ID, msg, nil
}

func hasUserMessage(msgs []model.Message) bool {
	for _, m := range msgs {
		if m.Role == model.RoleUser {
			return true
		}
	}
	return false
}

// TitleFromMessage derives a conversation title from its first message.
func TitleFromMessage(content string) string {
	if utf8.RuneCountInString(content) <= titleRunes {
		return strings.TrimSpace(content)
	}
	runes := []rune(content)
	return strings.TrimSpace(string(runes[:titleRunes])) + "..."
}

// Rename sets the title of id. It returns false when id is unknown.
func (s *HistoryStore) Rename(ctx context.Context, id, title string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	i := st.index(id)
	if i < 0 {
		return false, nil
	}
	st.chats[i].Title = title
	return true, s.history.saveJSON(ctx, st.chats)
}

// Delete removes id. Deleting the current conversation makes the most
// recent remaining one current. It returns false when id is unknown.
func (s *HistoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	i := st.index(id)
	if i < 0 {
		return false, nil
	}
	st.chats = append(st.chats[:i], st.chats[i+1:]...)
	if st.currentID == id {
		st.currentID = ""
		if len(st.chats) > 0 {
			st.currentID = st.chats[0].ID
		}
	}
	return true, s.save(ctx, st)
}

// ClearAll removes every conversation.
func (s *HistoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	st.chats = []model.Conversation{}
	st.currentID = ""
	return s.save(ctx, st)
}

func (s *HistoryStore) load(ctx context.Context) (*historyState, error) {
	st := &historyState{chats: []model.Conversation{}}
	if err := s.history.loadJSON(ctx, &st.chats); err != nil {
		return nil, err
	}
	if st.chats == nil {
		st.chats = []model.Conversation{}
	}
	currentID, err := s.current.loadString(ctx)
	if err != nil {
		return nil, err
	}
	st.currentID = currentID
	return st, nil
}

func (s *HistoryStore) save(ctx context.Context, st *historyState) error {
	if err := s.history.saveJSON(ctx, st.chats); err != nil {
		return err
	}
	return s.saveCurrent(ctx, st)
}

func (s *HistoryStore) saveCurrent(ctx context.Context, st *historyState) error {
	return s.current.saveString(ctx, st.currentID)
}
