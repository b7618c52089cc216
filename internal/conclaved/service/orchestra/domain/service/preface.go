package service

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// modelPrefacer generates the introductory preface with a chat model.
type modelPrefacer struct {
	cm model.BaseChatModel
}

// NewModelPrefacer wraps a chat model as a PrefaceGenerator.
func NewModelPrefacer(cm model.BaseChatModel) PrefaceGenerator {
	return &modelPrefacer{cm: cm}
}

func (p *modelPrefacer) Generate(ctx context.Context, name, task string) (string, error) {
	resp, err := p.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage("Write one short sentence introducing a sub-agent that is about to start working. Plain text, no markdown."),
		schema.UserMessage(fmt.Sprintf("Agent %q, task: %s", name, task)),
	})
	if err != nil {
		return "", fmt.Errorf("preface generation failed: %w", err)
	}
	return resp.Content, nil
}
