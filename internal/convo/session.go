package convo

import (
	"sync"
	"time"
)

// Turn roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message exchange unit.
type Turn struct {
	Role string
	Text string
}

// Session holds one chat's accumulated dialogue with the model.
//
// History grows without bound for the life of the process; there is no
// trimming or summarization. The embedded mutex serializes a whole exchange
// for one chat (snapshot history, call the model, append the outcome) so two
// concurrent messages from the same chat land in history in the order their
// generate calls were issued. It is separate from the registry lock, which is
// never held across a model call.
type Session struct {
	ChatID    int64
	CreatedAt time.Time

	mu      sync.Mutex
	history []Turn
}

// Lock serializes this chat's exchange. The request handler holds it for the
// duration of one generate-and-append cycle.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the exchange lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// History returns a copy of the accumulated turns.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Append records turns at the end of the history. Callers append the user
// turn and the model turn together, after a successful exchange; a failed
// exchange appends nothing.
func (s *Session) Append(turns ...Turn) {
	s.history = append(s.history, turns...)
}

// Len reports the number of recorded turns.
func (s *Session) Len() int {
	return len(s.history)
}
