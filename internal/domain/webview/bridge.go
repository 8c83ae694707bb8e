package webview

import (
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/offscreen/internal/shared/id"
	"github.com/GriffinCanCode/offscreen/internal/shared/types"
)

// DefaultEventBuffer is the per-subscription channel capacity
const DefaultEventBuffer = 64

// Subscription receives one instance's events until it is closed or the
// instance is destroyed, at which point C is closed.
type Subscription struct {
	ID id.SubscriptionID
	C  <-chan types.Event

	ch     chan types.Event
	bridge *Bridge
}

// Close stops delivery and closes C
func (s *Subscription) Close() {
	s.bridge.unsubscribe(s.ID)
}

// Bridge fans normalized events out to subscribers without blocking the publisher
type Bridge struct {
	mu      sync.Mutex
	subs    map[id.SubscriptionID]*Subscription
	closed  bool
	buffer  int
	dropped atomic.Uint64
	onDrop  func()
}

// NewBridge creates a bridge with the given per-subscription buffer
func NewBridge(buffer int, onDrop func()) *Bridge {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Bridge{
		subs:   make(map[id.SubscriptionID]*Subscription),
		buffer: buffer,
		onDrop: onDrop,
	}
}

// Subscribe registers a new subscriber
func (b *Bridge) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, types.ErrInstanceDestroyed
	}
	ch := make(chan types.Event, b.buffer)
	sub := &Subscription{
		ID:     id.NewSubscriptionID(),
		C:      ch,
		ch:     ch,
		bridge: b,
	}
	b.subs[sub.ID] = sub
	return sub, nil
}

// Publish delivers ev to every subscriber with room and returns the delivered count
func (b *Bridge) Publish(ev types.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	delivered := 0
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
	return delivered
}

// Subscribers returns the number of active subscriptions
func (b *Bridge) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for full subscribers
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscription. Later Subscribe calls fail.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sid, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sid)
	}
}

func (b *Bridge) unsubscribe(sid id.SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[sid]; ok {
		close(sub.ch)
		delete(b.subs, sid)
	}
}
