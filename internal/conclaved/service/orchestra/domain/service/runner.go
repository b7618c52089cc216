package service

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
)

// ToolLoopRunner is the opaque executor that turns a message history into
// a stream of output events. The orchestration engine consumes it, never
// implements it: concrete tool sets, prompting, and model access all live
// behind this interface.
//
// The returned stream carries text deltas and tool-call events, and ends
// with an EventDone whose Message is the assembled assistant response.
// Cancellation is cooperative through ctx.
type ToolLoopRunner interface {
	Run(ctx context.Context, agentID string, messages []*entity.Message) (*schema.StreamReader[*entity.AgentEvent], error)
}

// PrefaceGenerator produces the one-time introductory text shown before a
// fresh agent's first response. Failures degrade silently at the call site.
type PrefaceGenerator interface {
	Generate(ctx context.Context, name, task string) (string, error)
}
