package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/pkg/anthropic"
)

type anthropicClient struct {
	client anthropic.Client
	model  string
	guard  *resilience.Guard
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(client anthropic.Client, modelID string, guard *resilience.Guard) Client {
	return &anthropicClient{client: client, model: modelID, guard: guard}
}

func (c *anthropicClient) Provider() string { return ProviderAnthropic }

func (c *anthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	temp := req.Temperature
	msg := anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   req.MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.System != "" {
		msg.System = anthropic.BuildCachedSystemBlocks(req.System)
	}
	// No response_format on the Messages API; open the object instead.
	if req.JSON {
		msg.Prefill = "{"
	}

	resp, err := resilience.Call(ctx, c.guard, ProviderAnthropic, req.Agent, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, msg)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "llm: anthropic complete %s", req.Agent)
	}

	resp.Usage.LogCost(c.model, req.Agent)
	return &Response{
		Text:  resp.Text(),
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:         int(resp.Usage.InputTokens),
			OutputTokens:        int(resp.Usage.OutputTokens),
			CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
			Cost:                resp.Usage.EstimateCost(c.model),
		},
	}, nil
}
