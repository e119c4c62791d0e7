package chat

import (
	"sync"

	"portfolio-assistant/internal/domain"
	"portfolio-assistant/internal/usecase/conversation"
)

// Feed bridges store notifications into the update loop. It holds at most
// one pending snapshot; a newer one replaces it since each snapshot is the
// full state.
type Feed struct {
	store       *conversation.Store
	ch          chan SnapshotMsg
	done        chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

// NewFeed subscribes to store. The current state is pending immediately.
func NewFeed(store *conversation.Store) *Feed {
	f := &Feed{
		store: store,
		ch:    make(chan SnapshotMsg, 1),
		done:  make(chan struct{}),
	}
	f.unsubscribe = store.Subscribe(f.push)
	return f
}

func (f *Feed) push(msgs []domain.Message) {
	snap := SnapshotMsg{Messages: msgs, Loading: f.store.Loading()}
	for {
		select {
		case <-f.done:
			return
		case f.ch <- snap:
			return
		default:
			select {
			case <-f.ch:
			default:
			}
		}
	}
}

// Next blocks until a snapshot is pending or the feed is closed.
func (f *Feed) Next() (SnapshotMsg, bool) {
	select {
	case snap := <-f.ch:
		return snap, true
	case <-f.done:
		return SnapshotMsg{}, false
	}
}

// Close stops delivery.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.unsubscribe()
		close(f.done)
	})
}
