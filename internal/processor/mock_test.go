package processor

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/docrouter/internal/llm"
	"github.com/sells-group/docrouter/pkg/docintel"
	"github.com/sells-group/docrouter/pkg/mcp"
)

// --- LLM Mock ---

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *mockLLM) Provider() string { return llm.ProviderAnthropic }

// --- DocIntel Mock ---

type mockDocIntel struct {
	mock.Mock
}

func (m *mockDocIntel) Analyze(ctx context.Context, req docintel.AnalyzeRequest) (*docintel.AnalyzeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*docintel.AnalyzeResult), args.Error(1)
}

// --- MCP Mock ---

type mockMCP struct {
	mock.Mock
}

func (m *mockMCP) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	ret := m.Called(ctx, name, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*mcp.ToolResult), ret.Error(1)
}

func agentIs(name string) any {
	return mock.MatchedBy(func(req llm.Request) bool { return req.Agent == name })
}
