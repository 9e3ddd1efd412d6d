package timing

import (
	"sync"
	"time"
)

// Memory is an in-process Recorder. It keeps every event in order.
type Memory struct {
	mu       sync.Mutex
	clock    *Clock
	now      func() time.Time
	modality string
	events   []Event
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{clock: NewClock(), now: time.Now}
}

// NewMemoryFor creates an in-memory recorder that tags events with a modality.
func NewMemoryFor(modality string) *Memory {
	m := NewMemory()
	m.modality = modality
	return m
}

// Record implements Recorder.
func (m *Memory) Record(point Point, iteration int) {
	at := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{
		Seq:       m.clock.Next(),
		Modality:  m.modality,
		Point:     point,
		Iteration: iteration,
		At:        at,
	})
}

// Events returns a copy of all recorded events in record order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Keys returns the (point, iteration) key of every recorded event in order.
func (m *Memory) Keys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Key, len(m.events))
	for i, e := range m.events {
		out[i] = e.Key()
	}
	return out
}

// Len returns the number of recorded events.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
