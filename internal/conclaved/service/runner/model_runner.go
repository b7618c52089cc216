// Package runner provides the production tool-loop executor backed by an
// Eino chat model.
//
// Tool resolution is deliberately out of scope: the orchestration engine
// negotiates approval for whatever tool calls a runner proposes, and this
// runner proposes none. It streams the model's text response for the
// accumulated history and closes the cycle with the assembled assistant
// message. Richer runners (with real tool sets) plug in behind the same
// interface.
package runner

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra/domain/entity"
	"github.com/mellis-dev/conclave/pkg/logger"
	"github.com/mellis-dev/conclave/pkg/utils/safego"
)

const moduleName = "runner"

// streamBuffer bounds in-flight events between the model stream and the
// consuming execution cycle.
const streamBuffer = 64

// ModelRunner executes one agent cycle against a chat model.
type ModelRunner struct {
	cm model.BaseChatModel
}

// NewModelRunner creates a runner backed by cm.
func NewModelRunner(cm model.BaseChatModel) *ModelRunner {
	return &ModelRunner{cm: cm}
}

// Run streams a model response for the given history.
//
// The returned stream opens with EventStart, carries EventTextDelta
// chunks, and terminates with EventDone holding the full assistant
// message. Model errors surface as EventError followed by stream close.
func (r *ModelRunner) Run(ctx context.Context, agentID string, messages []*entity.Message) (*schema.StreamReader[*entity.AgentEvent], error) {
	in := toSchemaMessages(messages)

	out, err := r.cm.Stream(ctx, in)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*entity.AgentEvent](streamBuffer)

	safego.Go(ctx, func() {
		defer sw.Close()
		defer out.Close()

		sw.Send(&entity.AgentEvent{Type: entity.EventStart, AgentID: agentID}, nil)

		var text string
		for {
			chunk, recvErr := out.Recv()
			if errors.Is(recvErr, io.EOF) {
				break
			}
			if recvErr != nil {
				logger.WarnX(moduleName, "model stream failed for agent %s: %v", agentID, recvErr)
				sw.Send(&entity.AgentEvent{
					Type:    entity.EventError,
					AgentID: agentID,
					Error:   recvErr.Error(),
				}, nil)
				return
			}
			if chunk.Content == "" {
				continue
			}
			text += chunk.Content
			if closed := sw.Send(&entity.AgentEvent{
				Type:    entity.EventTextDelta,
				AgentID: agentID,
				Delta:   chunk.Content,
			}, nil); closed {
				return
			}
		}

		final := entity.NewAssistantMessage([]*entity.Part{
			{Type: entity.PartText, Text: text},
		})
		sw.Send(&entity.AgentEvent{
			Type:    entity.EventDone,
			AgentID: agentID,
			Message: final,
		}, nil)
	})

	return sr, nil
}

// toSchemaMessages flattens engine messages into the model's wire shape.
// Tool-call parts are skipped: this runner never issued any, and replayed
// histories may carry denied calls that the model should not re-see raw.
func toSchemaMessages(messages []*entity.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		text := m.Text()
		if text == "" {
			continue
		}
		switch m.Role {
		case entity.RoleSystem:
			out = append(out, schema.SystemMessage(text))
		case entity.RoleUser:
			out = append(out, schema.UserMessage(text))
		case entity.RoleAssistant:
			out = append(out, schema.AssistantMessage(text, nil))
		}
	}
	return out
}
