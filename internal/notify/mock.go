package notify

import (
	"context"
	"sync"
)

// Sent is one delivery recorded by Mock.
type Sent struct {
	UserID string
	Event  Event
}

// Mock records events in memory. Set Err to make every Notify fail.
type Mock struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// NewMock creates a Mock notifier.
func NewMock() *Mock { return &Mock{} }

// Notify implements Notifier.
func (m *Mock) Notify(_ context.Context, userID string, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Sent{UserID: userID, Event: e})
	return m.Err
}

// Sent returns a copy of every recorded delivery.
func (m *Mock) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sent, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reset clears recorded deliveries.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
