package conversation

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-assistant/internal/domain"
)

func newTestStore(retention int) *Store {
	return NewStore(retention, func() string { return Greeting("Jordan Reyes") }, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewStoreStartsWithGreeting(t *testing.T) {
	s := newTestStore(0)
	msgs := s.Current()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleAssistant, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Jordan Reyes's Portfolio AI Assistant")
	assert.False(t, s.Loading())
}

func TestGreetingWithoutName(t *testing.T) {
	assert.Contains(t, Greeting(""), "I'm a Portfolio AI Assistant")
}

func TestAppendGrowsByOne(t *testing.T) {
	s := newTestStore(DefaultRetention)
	for i := 0; i < 10; i++ {
		before := len(s.Current())
		msg := domain.NewMessage(domain.RoleUser, fmt.Sprintf("q%d", i))
		s.Append(msg)

		after := s.Current()
		assert.Len(t, after, before+1)
		assert.Equal(t, msg, after[len(after)-1])
	}
}

func TestAppendEnforcesRetention(t *testing.T) {
	s := newTestStore(3)
	for i := 0; i < 5; i++ {
		s.Append(domain.NewMessage(domain.RoleUser, fmt.Sprintf("q%d", i)))
	}
	msgs := s.Current()
	require.Len(t, msgs, 3)
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, "q4", msgs[2].Content)
}

func TestClearIsIdempotentInShape(t *testing.T) {
	s := newTestStore(DefaultRetention)
	s.Append(domain.NewMessage(domain.RoleUser, "hello"))
	s.ShowPlaceholder()

	for i := 0; i < 3; i++ {
		s.Clear()
		msgs := s.Current()
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.RoleAssistant, msgs[0].Role)
		assert.Contains(t, msgs[0].Content, "Hi! 👋")
		assert.False(t, msgs[0].IsLoading)
		assert.False(t, msgs[0].HasError())
	}
}

func TestClearUsesFreshGreeting(t *testing.T) {
	name := ""
	s := NewStore(0, func() string { return Greeting(name) }, nil)
	assert.Contains(t, s.Current()[0].Content, "I'm a Portfolio")

	name = "Sam Lee"
	s.Clear()
	assert.Contains(t, s.Current()[0].Content, "Sam Lee's")
}

func TestPlaceholderIsSingleAndResolved(t *testing.T) {
	s := newTestStore(DefaultRetention)
	s.ShowPlaceholder()
	s.ShowPlaceholder()

	loading := 0
	for _, m := range s.Current() {
		if m.IsLoading {
			loading++
		}
	}
	assert.Equal(t, 1, loading)

	reply := domain.NewMessage(domain.RoleAssistant, "answer")
	s.Resolve(reply)

	msgs := s.Current()
	require.Len(t, msgs, 2)
	assert.Equal(t, reply, msgs[1])
	for _, m := range msgs {
		assert.False(t, m.IsLoading)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := newTestStore(DefaultRetention)

	var got [][]domain.Message
	unsubscribe := s.Subscribe(func(msgs []domain.Message) {
		got = append(got, msgs)
	})
	require.Len(t, got, 1, "current snapshot is delivered on subscribe")

	s.Append(domain.NewMessage(domain.RoleUser, "one"))
	s.Append(domain.NewMessage(domain.RoleUser, "two"))
	require.Len(t, got, 3)
	assert.Len(t, got[1], 2)
	assert.Len(t, got[2], 3)

	// Earlier snapshots are untouched by later changes.
	assert.Equal(t, "one", got[1][1].Content)

	unsubscribe()
	s.Append(domain.NewMessage(domain.RoleUser, "three"))
	assert.Len(t, got, 3)
}

func TestSetLoadingNotifiesOnChange(t *testing.T) {
	s := newTestStore(DefaultRetention)
	calls := 0
	s.Subscribe(func([]domain.Message) { calls++ })
	calls = 0

	s.SetLoading(true)
	s.SetLoading(true)
	assert.True(t, s.Loading())
	s.SetLoading(false)
	assert.False(t, s.Loading())
	assert.Equal(t, 2, calls)
}

func TestListenerMayReadStore(t *testing.T) {
	s := newTestStore(DefaultRetention)
	var seen int
	s.Subscribe(func([]domain.Message) {
		seen = len(s.Current())
	})
	s.Append(domain.NewMessage(domain.RoleUser, "q"))
	assert.Equal(t, 2, seen)
}

func TestPanickingListenerIsContained(t *testing.T) {
	s := newTestStore(DefaultRetention)
	s.Subscribe(func([]domain.Message) { panic("boom") })

	assert.NotPanics(t, func() {
		s.Append(domain.NewMessage(domain.RoleUser, "q"))
	})
	assert.Len(t, s.Current(), 2)
}

func TestConcurrentAppends(t *testing.T) {
	s := newTestStore(1000)
	var (
		mu       sync.Mutex
		lastSeen int
		ordered  = true
	)
	s.Subscribe(func(msgs []domain.Message) {
		mu.Lock()
		defer mu.Unlock()
		if len(msgs) < lastSeen {
			ordered = false
		}
		lastSeen = len(msgs)
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(domain.NewMessage(domain.RoleUser, fmt.Sprintf("q%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Current(), 51)
	assert.True(t, ordered, "listeners observe snapshots in mutation order")
}
