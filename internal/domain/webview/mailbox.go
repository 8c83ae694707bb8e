package webview

import "sync"

// mailbox is an unbounded queue of callbacks drained by the instance goroutine.
// push never blocks, so adapters may emit from any goroutine, including
// from inside an operation running on the instance goroutine.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}
