package manager

import (
	"sync"

	"github.com/kekahyde/inferd/internal/model"
)

// subscriberBufferSize is the channel buffer for each status subscriber.
const subscriberBufferSize = 16

// Broker fans out execution status snapshots to subscribers. It is safe for
// concurrent use. Subscribers receive only snapshots published after they
// subscribe; there is no backlog replay.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan model.Snapshot
	nextID int
}

// NewBroker creates an empty status broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int]chan model.Snapshot),
	}
}

// Subscribe returns a receive channel and an unsubscribe function. The
// channel is closed when the unsubscribe function runs; calling it more
// than once is a no-op.
func (b *Broker) Subscribe() (<-chan model.Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Snapshot, subscriberBufferSize)
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Publish delivers snap to every subscriber. Delivery is best-effort: when a
// subscriber's buffer is full the oldest buffered snapshot is evicted to
// make room, so a subscriber that keeps draining always eventually observes
// the latest (and in particular the terminal) snapshot.
func (b *Broker) Publish(snap model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest buffered snapshot and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
