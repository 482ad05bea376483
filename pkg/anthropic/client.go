// Package anthropic wraps the Messages API for the field extraction agents.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client sends one Messages request per agent call.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single agent turn.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
	// Prefill starts the assistant turn. The API leaves it out of the reply,
	// so CreateMessage puts it back in front of the first text block.
	Prefill string
}

// SystemBlock is one system prompt block. CacheControl marks a cache breakpoint.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl sets the TTL of an ephemeral cache breakpoint ("5m" or "1h").
type CacheControl struct {
	TTL string
}

// Message is a user or assistant turn. Any other role is sent as user.
type Message struct {
	Role    string
	Content string
}

// MessageResponse is the part of a Messages reply the agents read.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// Text joins the non-empty text blocks of the response.
func (r *MessageResponse) Text() string {
	var parts []string
	for _, b := range r.Content {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ContentBlock is one block of a reply. Only text blocks carry Text.
type ContentBlock struct {
	Type string
	Text string
}

// TokenUsage is the token accounting of one reply.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

type price struct {
	input, output float64 // USD per million tokens
}

// prices covers the models the extraction agents are configured with.
var prices = map[string]price{
	"claude-haiku-4-5-20251001":  {input: 0.80, output: 4.00},
	"claude-sonnet-4-5-20250929": {input: 3.00, output: 15.00},
}

const (
	cacheWriteMultiplier = 1.25
	cacheReadMultiplier  = 0.1
)

// EstimateCost prices u for model in USD. Unknown models cost 0.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	input := float64(u.InputTokens) +
		float64(u.CacheCreationInputTokens)*cacheWriteMultiplier +
		float64(u.CacheReadInputTokens)*cacheReadMultiplier
	return (input*p.input + float64(u.OutputTokens)*p.output) / 1e6
}

// LogCost records the usage of one agent call.
func (u TokenUsage) LogCost(model, agent string) {
	zap.L().Debug("anthropic: agent usage",
		zap.String("model", model),
		zap.String("agent", agent),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("cost_usd", u.EstimateCost(model)),
	)
}

type sdkClient struct {
	client sdk.Client
}

// NewClient returns a Client backed by anthropic-sdk-go. opts are passed to
// the SDK after the API key, so tests can point it at an httptest server.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(opts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
		System:    toSDKSystemBlocks(req.System),
	}
	if req.Prefill != "" {
		params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(req.Prefill)))
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	resp := fromSDKMessage(msg)
	if req.Prefill != "" {
		prependText(resp, req.Prefill)
	}
	return resp, nil
}

func prependText(resp *MessageResponse, prefix string) {
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			resp.Content[i].Text = prefix + resp.Content[i].Text
			return
		}
	}
	resp.Content = append([]ContentBlock{{Type: "text", Text: prefix}}, resp.Content...)
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, sdk.NewAssistantMessage(block))
			continue
		}
		out = append(out, sdk.NewUserMessage(block))
	}
	return out
}

func toSDKSystemBlocks(blocks []SystemBlock) []sdk.TextBlockParam {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]sdk.TextBlockParam, 0, len(blocks))
	for _, b := range blocks {
		p := sdk.TextBlockParam{Text: b.Text}
		if b.CacheControl != nil {
			p.CacheControl = sdk.NewCacheControlEphemeralParam()
			if b.CacheControl.TTL != "" {
				p.CacheControl.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
			}
		}
		out = append(out, p)
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	resp := &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Content:    make([]ContentBlock, 0, len(msg.Content)),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
	for _, b := range msg.Content {
		resp.Content = append(resp.Content, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return resp
}
