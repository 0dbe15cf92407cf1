package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Queue used in tests and single-binary deployments
// without Redis. It honors the same lease semantics as RedisQueue except that
// leases do not survive a process restart.
type Memory struct {
	mu         sync.Mutex
	ready      []string
	processing map[string]struct{}
	notify     chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		processing: make(map[string]struct{}),
		notify:     make(chan struct{}, 1),
	}
}

func (m *Memory) Enqueue(_ context.Context, jobID string) error {
	m.mu.Lock()
	m.ready = append(m.ready, jobID)
	m.mu.Unlock()
	m.wake()
	return nil
}

func (m *Memory) Consume(ctx context.Context) (string, error) {
	for {
		m.mu.Lock()
		if len(m.ready) > 0 {
			id := m.ready[0]
			m.ready = m.ready[1:]
			m.processing[id] = struct{}{}
			m.mu.Unlock()
			return id, nil
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-m.notify:
		}
	}
}

func (m *Memory) Ack(_ context.Context, jobID string) error {
	m.mu.Lock()
	delete(m.processing, jobID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ScheduleRetry(_ context.Context, jobID string, delay time.Duration) error {
	m.mu.Lock()
	delete(m.processing, jobID)
	m.mu.Unlock()

	time.AfterFunc(delay, func() {
		m.Enqueue(context.Background(), jobID)
	})
	return nil
}

// Pending returns the number of refs waiting for consumption.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ready)
}

// InFlight returns the number of consumed but unacked refs.
func (m *Memory) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.processing)
}

func (m *Memory) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

var _ Queue = (*Memory)(nil)
