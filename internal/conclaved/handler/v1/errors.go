package v1

import (
	"net/http"

	"github.com/mellis-dev/conclave/pkg/errorx"
)

// Conclaved handler error codes.
// Code format: 1XXYYZ
//   - 1:  module prefix (conclaved handler)
//   - XX: resource group (00=common, 01=agent, 02=wait, 03=approval, 04=events)
//   - YY: sequential error number
//   - Z:  reserved (0)
var (
	// Common request errors.
	ErrBind          = errorx.Register(100001, http.StatusBadRequest, "Request body binding failed")
	ErrSessionClosed = errorx.Register(100002, http.StatusGone, "Session registry is closed")

	// Agent errors.
	ErrAgentNotFound  = errorx.Register(100101, http.StatusNotFound, "Agent not found")
	ErrSpawnDepth     = errorx.Register(100102, http.StatusConflict, "Nested spawn depth limit reached")
	ErrSpawnCapacity  = errorx.Register(100103, http.StatusTooManyRequests, "Concurrent agent limit reached")
	ErrSpawn          = errorx.Register(100104, http.StatusInternalServerError, "Failed to spawn agent")
	ErrSendInput      = errorx.Register(100105, http.StatusInternalServerError, "Failed to deliver input")
	ErrInputNoContext = errorx.Register(100106, http.StatusBadRequest, "Reactivating a shut-down agent requires a session context")
	ErrAbort          = errorx.Register(100107, http.StatusInternalServerError, "Failed to abort agent")
	ErrResume         = errorx.Register(100108, http.StatusInternalServerError, "Failed to resume agent")

	// Wait errors.
	ErrWait = errorx.Register(100201, http.StatusInternalServerError, "Wait failed")

	// Approval errors.
	ErrApprovalUnknown = errorx.Register(100301, http.StatusNotFound, "No pending approval for this call id")
)
