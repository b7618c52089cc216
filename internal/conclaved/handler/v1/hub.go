package v1

import (
	"sync"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
)

// subscriberBuffer bounds undelivered events per SSE subscriber. Slow
// consumers lose events rather than stalling agent execution.
const subscriberBuffer = 256

// EventHub fans agent events out to the SSE subscribers of a session.
// It implements the output-sink side of the engine: every spawn, input,
// and resume request binds its SpawnContext writer to the session's hub
// sink.
type EventHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *entity.AgentEvent]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[string]map[chan *entity.AgentEvent]struct{}),
	}
}

// Sink returns an EventSink publishing into the given session's stream.
func (h *EventHub) Sink(sessionID string) entity.EventSink {
	return &hubSink{hub: h, sessionID: sessionID}
}

// Subscribe registers a new subscriber for sessionID. The returned
// cancel func unregisters and closes the channel.
func (h *EventHub) Subscribe(sessionID string) (<-chan *entity.AgentEvent, func()) {
	ch := make(chan *entity.AgentEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan *entity.AgentEvent]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

func (h *EventHub) publish(sessionID string, ev *entity.AgentEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			// subscriber is falling behind, drop
		}
	}
}

type hubSink struct {
	hub       *EventHub
	sessionID string
}

func (s *hubSink) Send(ev *entity.AgentEvent) {
	s.hub.publish(s.sessionID, ev)
}
