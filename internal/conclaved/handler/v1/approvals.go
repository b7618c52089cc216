package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/service/supervision"
	"github.com/mellis-dev/conclave/internal/pkg/core"
	"github.com/mellis-dev/conclave/pkg/errorx"
)

// ApprovalHandler resolves escalated tool-call approvals.
type ApprovalHandler struct {
	bridge *supervision.BridgeRegistry
}

// NewApprovalHandler creates a new ApprovalHandler.
func NewApprovalHandler(bridge *supervision.BridgeRegistry) *ApprovalHandler {
	return &ApprovalHandler{bridge: bridge}
}

// Resolve handles POST /v1/approvals/:call_id.
//
// Each escalated call id accepts exactly one decision; late or duplicate
// resolutions get a 404.
func (h *ApprovalHandler) Resolve(c *gin.Context) {
	var req ResolveApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind approval request"), nil)
		return
	}

	callID := c.Param("call_id")
	if err := h.bridge.Resolve(callID, req.Approved, req.Reason); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrApprovalUnknown, "resolve approval %q", callID), nil)
		return
	}

	core.WriteResponse(c, nil, gin.H{"call_id": callID, "approved": req.Approved})
}
