package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCachedSystemBlocks(t *testing.T) {
	text := "Extract invoice fields from the document below.\n\nINVOICE #1042 ..."

	blocks := BuildCachedSystemBlocks(text)

	require.Len(t, blocks, 1)
	assert.Equal(t, text, blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: `{"invoice_number":`},
			{Type: "tool_use"},
			{Type: "text", Text: ""},
			{Type: "text", Text: `"1042"}`},
		},
	}
	assert.Equal(t, "{\"invoice_number\":\n\"1042\"}", resp.Text())

	assert.Empty(t, (&MessageResponse{}).Text())
}

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:         "msg_test_123",
		Model:      "claude-sonnet-4-5-20250929",
		StopReason: "end_turn",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Hello world"},
			{Type: "text", Text: "Second block"},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 2000,
			CacheReadInputTokens:     3000,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "Hello world", resp.Content[0].Text)
	assert.Equal(t, int64(2000), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, int64(3000), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{ID: "msg_empty", StopReason: "max_tokens"})
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
		{Role: "system", Content: "unknown roles become user"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[2].Role)

	assert.Empty(t, toSDKMessages(nil))
}

func TestToSDKSystemBlocks(t *testing.T) {
	blocks := toSDKSystemBlocks([]SystemBlock{
		{Text: "You are an extraction agent."},
		{Text: "Document text.", CacheControl: &CacheControl{TTL: "1h"}},
		{Text: "Default TTL.", CacheControl: &CacheControl{}},
	})
	require.Len(t, blocks, 3)
	assert.Equal(t, "You are an extraction agent.", blocks[0].Text)
	assert.Equal(t, "Document text.", blocks[1].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("1h"), blocks[1].CacheControl.TTL)
	assert.Empty(t, string(blocks[2].CacheControl.TTL))
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var client Client = NewClient("test-api-key")
	require.NotNil(t, client)
}

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		model string
		usage TokenUsage
		want  float64
	}{
		{"haiku", "claude-haiku-4-5-20251001", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 4.80},
		{"sonnet", "claude-sonnet-4-5-20250929", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 18.00},
		// 0.40 in + 0.40 out + 0.20 cache write + 0.024 cache read
		{"with cache", "claude-haiku-4-5-20251001", TokenUsage{
			InputTokens:              500_000,
			OutputTokens:             100_000,
			CacheCreationInputTokens: 200_000,
			CacheReadInputTokens:     300_000,
		}, 1.024},
		{"unknown model", "unknown-model", TokenUsage{InputTokens: 1_000_000}, 0},
		{"zero tokens", "claude-haiku-4-5-20251001", TokenUsage{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 0.001)
		})
	}
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "total_amount")
		TokenUsage{}.LogCost("unknown-model", "")
	})
}

func TestPrependText(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "tool_use"},
		{Type: "text", Text: `"value": "INV-1"}`},
	}}
	prependText(resp, "{")
	assert.Equal(t, `{"value": "INV-1"}`, resp.Text())

	empty := &MessageResponse{}
	prependText(empty, "{")
	require.Len(t, empty.Content, 1)
	assert.Equal(t, "{", empty.Text())
}
