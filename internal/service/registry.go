// Package service holds the per-session runtimes behind the HTTP API and the
// operations the handlers run against them.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/assistant"
	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/session"
	"github.com/capitalize-ai/shop-assistant/internal/storage"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
	"github.com/capitalize-ai/shop-assistant/pkg/metrics"
)

var (
	// ErrNotFound is returned when a conversation, product, or cart line is unknown.
	ErrNotFound = errors.New("not found")

	// ErrJournalDisabled is returned by journal reads when no journal is wired.
	ErrJournalDisabled = errors.New("journal disabled")
)

// Backend is the commerce client as the services use it.
type Backend interface {
	assistant.Shop
	session.Backend
	UpdateCartItem(ctx context.Context, cartID, itemUID string, quantity int, token string) (*commerce.CartResponse, error)
	RemoveCartItem(ctx context.Context, cartID, itemUID, token string) (*commerce.CartResponse, error)
}

// Journal is the conversation journal as the services use it.
type Journal interface {
	assistant.Journal
	ReadConversation(ctx context.Context, sessionID, conversationID string, afterSequence uint64, limit int) ([]model.JournalEntry, uint64, bool, error)
}

type runtime struct {
	assistant *assistant.Assistant
	hub       *Hub
	lastUsed  time.Time
}

// Registry lazily builds one assistant per browser session. The assistant
// keeps nothing the store does not, so evicted sessions rebuild on demand.
type Registry struct {
	store      storage.Store
	backend    Backend
	completion assistant.Completion
	journal    Journal
	opts       assistant.Options
	logger     *logger.Logger

	mu       sync.Mutex
	runtimes map[string]*runtime
	now      func() time.Time
}

// NewRegistry creates a registry. backend and journal may be nil.
func NewRegistry(
	store storage.Store,
	backend Backend,
	completion assistant.Completion,
	journal Journal,
	opts assistant.Options,
	log *logger.Logger,
) *Registry {
	return &Registry{
		store:      store,
		backend:    backend,
		completion: completion,
		journal:    journal,
		opts:       opts,
		logger:     log,
		runtimes:   make(map[string]*runtime),
		now:        time.Now,
	}
}

// Assistant returns the assistant of sessionID, creating it on first use.
func (r *Registry) Assistant(sessionID string) *assistant.Assistant {
	return r.get(sessionID).assistant
}

// Hub returns the live event hub of sessionID.
func (r *Registry) Hub(sessionID string) *Hub {
	return r.get(sessionID).hub
}

// Journal returns the journal, or nil.
func (r *Registry) Journal() Journal {
	return r.journal
}

// Backend returns the commerce backend, or nil.
func (r *Registry) Backend() Backend {
	return r.backend
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runtimes)
}

func (r *Registry) get(sessionID string) *runtime {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.runtimes[sessionID]; ok {
		rt.lastUsed = r.now()
		return rt
	}

	hub := NewHub(r.logger.WithSession(sessionID))
	opts := r.opts
	opts.Observer = hub
	if r.journal != nil {
		opts.Journal = r.journal
	}

	var backend session.Backend
	var shop assistant.Shop
	if r.backend != nil {
		backend, shop = r.backend, r.backend
	}

	sess := session.New(r.store, sessionID, backend, r.logger)
	rt := &runtime{
		assistant: assistant.New(sess, r.completion, shop, opts, r.logger),
		hub:       hub,
		lastUsed:  r.now(),
	}
	r.runtimes[sessionID] = rt
	metrics.SessionsActive.Inc()

	r.logger.Debug("session runtime created", zap.String("session_id", sessionID))
	return rt
}

// Evict drops runtimes idle for longer than maxIdle that have no live
// subscribers. It returns how many were dropped.
func (r *Registry) Evict(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	evicted := 0
	for id, rt := range r.runtimes {
		if rt.lastUsed.Before(cutoff) && !rt.hub.HasSubscribers() {
			delete(r.runtimes, id)
			evicted++
		}
	}
	metrics.SessionsActive.Sub(float64(evicted))
	return evicted
}

// RunEviction calls Evict every interval until ctx is done.
func (r *Registry) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(maxIdle); n > 0 {
				r.logger.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}
