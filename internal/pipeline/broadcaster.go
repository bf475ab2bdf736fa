package pipeline

import "sync"

// eventChannelBuffer is the buffer size of each listener channel.
const eventChannelBuffer = 100

// Notification is pushed to listeners when something happens in the session.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// broadcaster provides listener management for status streaming.
type broadcaster struct {
	listeners []chan Notification
	closed    bool
	mu        sync.RWMutex
}

// AddListener adds an event listener. Once the session has ended the
// returned channel is already closed.
func (b *broadcaster) AddListener() chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Notification, eventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener and closes its channel.
func (b *broadcaster) RemoveListener(ch chan Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// send delivers n to every listener without blocking the frame cycle.
func (b *broadcaster) send(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- n:
		default:
			// Listener buffer full, skip.
		}
	}
}

// closeAll closes every listener; used when the session ends.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
	b.closed = true
}
