// Package convo owns the conversation-session registry: the mapping from a
// chat id to its ordered message history and the locking discipline around it.
package convo

import (
	"log/slog"
	"sync"
	"time"
)

// Registry maps chat id to session. Sessions are created lazily on first
// contact and removed only by ClearAll during shutdown; there is no per-chat
// eviction, TTL, or capacity bound.
//
// A single coarse lock guards the map. Callers fetch a handle under the lock
// and use it outside the lock, so a slow model call for one chat never blocks
// other chats' registry access.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	log      *slog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		log:      log,
	}
}

// GetOrCreate returns the session for chatID, creating an empty one if none
// exists. At most one session is ever created per chat id, regardless of how
// many callers race on first contact. The second return reports creation.
func (r *Registry) GetOrCreate(chatID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[chatID]; ok {
		return s, false
	}
	s := &Session{ChatID: chatID, CreatedAt: time.Now()}
	r.sessions[chatID] = s
	r.log.Info("started new chat session", "chat_id", chatID)
	return s, true
}

// ClearAll drops every session atomically. Subsequent GetOrCreate calls
// behave as first contact. Intended to run once, during shutdown, after
// intake of new inbound events has stopped.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	n := len(r.sessions)
	r.sessions = make(map[int64]*Session)
	r.mu.Unlock()
	r.log.Info("cleared all chat sessions", "count", n)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
