package v1

import (
	"io"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// EventsHandler streams a session's agent events over SSE.
type EventsHandler struct {
	hub *EventHub
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *EventHub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /v1/sessions/:sid/events.
//
// The stream stays open until the client disconnects. Events are the
// engine's AgentEvent payloads, with the event name set to the event
// type (start, text_delta, tool_call, agent_status, error, done).
func (h *EventsHandler) Stream(c *gin.Context) {
	sid := c.Param("sid")

	ch, cancel := h.hub.Subscribe(sid)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			_ = sse.Encode(w, sse.Event{
				Event: string(ev.Type),
				Data:  ev,
			})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
