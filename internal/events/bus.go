// Package events is a publish/subscribe bus for planner observability.
// The orchestrator publishes one event per notable step of a turn
// (remote call, tool execution, completion); the API streams them to
// websocket subscribers. Publishing on a nil *Bus is a no-op.
package events

import (
	"sync"
	"time"
)

// Sources.
const (
	SourcePlanner = "planner"
	SourceTools   = "tools"
	SourceUsage   = "usage"
)

// Kinds.
const (
	// KindTurnStart: event_id, user, message_len.
	KindTurnStart = "turn_start"
	// KindLocalResolve: event_id, path, tool.
	KindLocalResolve = "local_resolve"
	// KindRemoteCall: event_id, round, model, forced_tool.
	KindRemoteCall = "remote_call"
	// KindRemoteResponse: event_id, round, tokens, tool_calls, elapsed_ms.
	KindRemoteResponse = "remote_response"
	// KindToolCall: event_id, tool.
	KindToolCall = "tool_call"
	// KindToolDone: event_id, tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindTurnComplete: event_id, path, rounds, elapsed_ms.
	KindTurnComplete = "turn_complete"
	// KindLimitExceeded: event_id, organization_id, scope.
	KindLimitExceeded = "limit_exceeded"
)

// Event is a single published occurrence.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast bus. Slow subscribers miss events
// instead of blocking the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recv maps the receive-only view handed to callers back to the
	// channel we own, so Unsubscribe can close it.
	recv map[<-chan Event]chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs: make(map[chan Event]struct{}),
		recv: make(map[<-chan Event]chan Event),
	}
}

// Publish delivers e to every subscriber with buffer space. A zero
// Timestamp is replaced with the current time.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of published events with the given
// buffer. Callers must Unsubscribe when done.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recv[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown
// channels are ignored.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	send, ok := b.recv[ch]
	if !ok {
		return
	}
	delete(b.subs, send)
	delete(b.recv, ch)
	close(send)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
