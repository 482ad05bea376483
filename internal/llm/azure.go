package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/pkg/azureopenai"
)

type azureClient struct {
	client     azureopenai.Client
	deployment string
	guard      *resilience.Guard
}

// NewAzureOpenAI wraps an Azure OpenAI client.
func NewAzureOpenAI(client azureopenai.Client, deployment string, guard *resilience.Guard) Client {
	return &azureClient{client: client, deployment: deployment, guard: guard}
}

func (c *azureClient) Provider() string { return ProviderAzureOpenAI }

func (c *azureClient) Complete(ctx context.Context, req Request) (*Response, error) {
	temp := req.Temperature
	chat := azureopenai.ChatRequest{
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: &temp,
		JSONMode:    req.JSON,
	}

	resp, err := resilience.Call(ctx, c.guard, ProviderAzureOpenAI, req.Agent, func(ctx context.Context) (*azureopenai.ChatResponse, error) {
		return c.client.Complete(ctx, chat)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "llm: azure openai complete %s", req.Agent)
	}

	zap.L().Debug("llm: azure openai usage",
		zap.String("deployment", c.deployment),
		zap.String("agent", req.Agent),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return &Response{
		Text:  resp.Content,
		Model: resp.Model,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}
