package v1

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/service"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/pkg/errno"
	"github.com/mellis-dev/conclave/internal/pkg/core"
	"github.com/mellis-dev/conclave/pkg/errorx"
)

const defaultWaitTimeout = 60 * time.Second

// AgentHandler exposes the agent lifecycle REST endpoints.
type AgentHandler struct {
	registry *service.SessionAgentRegistry
	hub      *EventHub
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(registry *service.SessionAgentRegistry, hub *EventHub) *AgentHandler {
	return &AgentHandler{registry: registry, hub: hub}
}

func (h *AgentHandler) manager(c *gin.Context) (*service.AgentManager, string, bool) {
	sid := c.Param("sid")
	mgr := h.registry.Get(sid)
	if mgr == nil {
		core.WriteResponse(c, errorx.NewC(ErrSessionClosed, "session %q unavailable", sid), nil)
		return nil, sid, false
	}
	return mgr, sid, true
}

func (h *AgentHandler) spawnContext(sid string, parentMessageID, modelRef string) *entity.SpawnContext {
	return &entity.SpawnContext{
		SessionID:       sid,
		ParentMessageID: parentMessageID,
		ModelRef:        modelRef,
		Writer:          h.hub.Sink(sid),
	}
}

// Spawn handles POST /v1/sessions/:sid/agents.
func (h *AgentHandler) Spawn(c *gin.Context) {
	mgr, sid, ok := h.manager(c)
	if !ok {
		return
	}

	var req SpawnAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind spawn request"), nil)
		return
	}

	id, err := mgr.Spawn(c.Request.Context(), &service.SpawnRequest{
		Task:    req.Task,
		Items:   req.Items,
		Name:    req.Name,
		Context: h.spawnContext(sid, req.ParentMessageID, req.ModelRef),
	})
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, spawnCoder(err), "spawn agent in session %q", sid), nil)
		return
	}

	core.WriteResponse(c, nil, SpawnAgentResponse{AgentID: id})
}

func spawnCoder(err error) errorx.Coder {
	switch {
	case errors.Is(err, errno.ErrMaxDepthExceeded):
		return ErrSpawnDepth
	case errors.Is(err, errno.ErrConcurrencyLimit):
		return ErrSpawnCapacity
	default:
		return ErrSpawn
	}
}

// List handles GET /v1/sessions/:sid/agents.
func (h *AgentHandler) List(c *gin.Context) {
	mgr, _, ok := h.manager(c)
	if !ok {
		return
	}

	agents := mgr.List()
	resp := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, toAgentResponse(a))
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}

// Get handles GET /v1/sessions/:sid/agents/:id.
func (h *AgentHandler) Get(c *gin.Context) {
	mgr, _, ok := h.manager(c)
	if !ok {
		return
	}

	id := c.Param("id")
	agent, ok := mgr.GetAgent(id)
	if !ok {
		core.WriteResponse(c, errorx.NewC(ErrAgentNotFound, "agent %q not found", id), nil)
		return
	}
	core.WriteResponse(c, nil, toAgentResponse(agent))
}

// Input handles POST /v1/sessions/:sid/agents/:id/input.
func (h *AgentHandler) Input(c *gin.Context) {
	mgr, sid, ok := h.manager(c)
	if !ok {
		return
	}

	var req SendInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind input request"), nil)
		return
	}

	id := c.Param("id")
	sctx := h.spawnContext(sid, "", "")
	if err := mgr.SendInput(c.Request.Context(), id, req.Message, req.Interrupt, sctx); err != nil {
		coder := ErrSendInput
		if errors.Is(err, errno.ErrAgentNotFound) {
			coder = ErrAgentNotFound
		}
		core.WriteResponse(c, errorx.WrapC(err, coder, "send input to agent %q", id), nil)
		return
	}

	core.WriteResponse(c, nil, gin.H{"agent_id": id, "accepted": true})
}

// Abort handles POST /v1/sessions/:sid/agents/:id/abort.
func (h *AgentHandler) Abort(c *gin.Context) {
	mgr, _, ok := h.manager(c)
	if !ok {
		return
	}

	id := c.Param("id")
	output, err := mgr.Abort(id)
	if err != nil {
		coder := ErrAbort
		if errors.Is(err, errno.ErrAgentNotFound) {
			coder = ErrAgentNotFound
		}
		core.WriteResponse(c, errorx.WrapC(err, coder, "abort agent %q", id), nil)
		return
	}

	core.WriteResponse(c, nil, AbortResponse{AgentID: id, Output: output})
}

// Resume handles POST /v1/sessions/:sid/agents/:id/resume.
func (h *AgentHandler) Resume(c *gin.Context) {
	mgr, sid, ok := h.manager(c)
	if !ok {
		return
	}

	id := c.Param("id")
	if err := mgr.Resume(c.Request.Context(), id, h.spawnContext(sid, "", "")); err != nil {
		coder := ErrResume
		if errors.Is(err, errno.ErrAgentNotFound) {
			coder = ErrAgentNotFound
		}
		core.WriteResponse(c, errorx.WrapC(err, coder, "resume agent %q", id), nil)
		return
	}

	core.WriteResponse(c, nil, gin.H{"agent_id": id, "resumed": true})
}

// Wait handles POST /v1/sessions/:sid/wait.
func (h *AgentHandler) Wait(c *gin.Context) {
	mgr, _, ok := h.manager(c)
	if !ok {
		return
	}

	var req WaitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind wait request"), nil)
		return
	}

	timeout := defaultWaitTimeout
	if req.TimeoutSec > 0 {
		timeout = time.Duration(req.TimeoutSec) * time.Second
	}

	result, err := mgr.Wait(c.Request.Context(), req.AgentIDs, timeout)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrWait, "wait for agents"), nil)
		return
	}

	statuses := make(map[string]string, len(result.Statuses))
	for id, st := range result.Statuses {
		statuses[id] = string(st)
	}
	core.WriteResponse(c, nil, WaitResponse{TimedOut: result.TimedOut, Statuses: statuses})
}
