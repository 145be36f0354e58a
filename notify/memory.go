package notify

import (
	"context"
	"sync"
)

// Memory captures notifications for assertions in tests. FailWith
// makes every Notify return the given error, for exercising the
// swallow-and-log path in services.
type Memory struct {
	mu       sync.Mutex
	sent     []Notification
	failWith error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.sent = append(m.sent, n)
	return nil
}

// Notifications returns a copy of everything captured so far.
func (m *Memory) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// FailWith forces subsequent Notify calls to return err. Pass nil to
// restore normal capture.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Reset drops captured notifications.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
