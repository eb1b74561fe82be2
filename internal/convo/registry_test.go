package convo

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kritika-bot/kritika/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(logger.NewNop())
}

func TestGetOrCreate_FirstContact(t *testing.T) {
	r := newTestRegistry(t)

	s, created := r.GetOrCreate(42)
	require.True(t, created)
	require.NotNil(t, s)
	require.EqualValues(t, 42, s.ChatID)
	require.Zero(t, s.Len())
	require.False(t, s.CreatedAt.IsZero())
}

func TestGetOrCreate_ReusesSession(t *testing.T) {
	r := newTestRegistry(t)

	first, created := r.GetOrCreate(42)
	require.True(t, created)

	second, created := r.GetOrCreate(42)
	require.False(t, created)
	require.Same(t, first, second)
	require.Equal(t, 1, r.Len())
}

// Concurrent first contact across many chats must yield exactly one session
// per chat id, and each session's history must reflect only its own turns.
func TestGetOrCreate_ConcurrentAtMostOneCreation(t *testing.T) {
	r := newTestRegistry(t)

	const chats = 16
	const callersPerChat = 8

	var wg sync.WaitGroup
	created := make(chan int64, chats*callersPerChat)
	for chatID := int64(0); chatID < chats; chatID++ {
		for c := 0; c < callersPerChat; c++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				s, fresh := r.GetOrCreate(id)
				if fresh {
					created <- id
				}
				s.Lock()
				s.Append(Turn{Role: RoleUser, Text: fmt.Sprintf("chat-%d", id)})
				s.Unlock()
			}(chatID)
		}
	}
	wg.Wait()
	close(created)

	seen := map[int64]int{}
	for id := range created {
		seen[id]++
	}
	require.Len(t, seen, chats)
	for id, n := range seen {
		require.Equal(t, 1, n, "chat %d created more than once", id)
	}

	require.Equal(t, chats, r.Len())
	for chatID := int64(0); chatID < chats; chatID++ {
		s, fresh := r.GetOrCreate(chatID)
		require.False(t, fresh)
		require.Equal(t, callersPerChat, s.Len())
		for _, turn := range s.History() {
			require.Equal(t, fmt.Sprintf("chat-%d", chatID), turn.Text, "cross-chat leakage")
		}
	}
}

func TestClearAll_ResetsToFirstContact(t *testing.T) {
	r := newTestRegistry(t)

	s, _ := r.GetOrCreate(7)
	s.Lock()
	s.Append(
		Turn{Role: RoleUser, Text: "hello"},
		Turn{Role: RoleModel, Text: "hi"},
	)
	s.Unlock()
	require.Equal(t, 1, r.Len())

	r.ClearAll()
	require.Zero(t, r.Len())

	again, created := r.GetOrCreate(7)
	require.True(t, created, "previously-seen chat behaves as first contact after clear")
	require.NotSame(t, s, again)
	require.Zero(t, again.Len())
}

func TestClearAll_Idempotent(t *testing.T) {
	r := newTestRegistry(t)
	r.GetOrCreate(1)

	r.ClearAll()
	r.ClearAll()
	require.Zero(t, r.Len())
}

// ClearAll racing GetOrCreate must never leave the map partially cleared;
// any session observed afterwards is a fresh one.
func TestClearAll_AtomicAgainstGetOrCreate(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			r.GetOrCreate(id % 4)
		}(int64(i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.ClearAll()
	}()
	wg.Wait()

	require.LessOrEqual(t, r.Len(), 4)
	for id := int64(0); id < 4; id++ {
		s, _ := r.GetOrCreate(id)
		require.Zero(t, s.Len())
	}
}

func TestSession_HistorySnapshotIsCopy(t *testing.T) {
	r := newTestRegistry(t)
	s, _ := r.GetOrCreate(1)

	s.Lock()
	s.Append(Turn{Role: RoleUser, Text: "original"})
	snap := s.History()
	s.Unlock()

	snap[0].Text = "mutated"

	s.Lock()
	require.Equal(t, "original", s.History()[0].Text)
	s.Unlock()
}
