// Package azureopenai wraps the OpenAI SDK configured for an Azure OpenAI
// deployment. It exposes the single chat completion call the extraction
// agents need.
package azureopenai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the Azure OpenAI operations used by the extraction agents.
type Client interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a single-turn chat completion request.
type ChatRequest struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature *float64
	// JSONMode asks the deployment for a JSON object response.
	JSONMode bool
}

// ChatResponse is the first choice of a chat completion.
type ChatResponse struct {
	ID           string
	Model        string
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage tracks token consumption for a completion.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type sdkClient struct {
	client     openai.Client
	deployment string
}

// NewClient creates a client for the given Azure OpenAI resource endpoint
// and deployment. Extra request options are passed through to the SDK.
func NewClient(endpoint, apiKey, apiVersion, deployment string, opts ...option.RequestOption) (Client, error) {
	if endpoint == "" || apiKey == "" || deployment == "" {
		return nil, eris.New("azureopenai: endpoint, key and deployment are required")
	}
	opts = append([]option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
	}, opts...)

	return &sdkClient{
		client:     openai.NewClient(opts...),
		deployment: deployment,
	}, nil
}

func (c *sdkClient) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		// Azure routes on the deployment name carried in the model field.
		Model:    openai.ChatModel(c.deployment),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "azureopenai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("azureopenai: no choices returned")
	}

	choice := resp.Choices[0]
	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
