package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/pkg/mcp"
)

// ProviderMCP identifies results produced by the external agent.
const ProviderMCP = "mcp"

// MCP hands a document to an external agent exposed as an MCP tool. The tool
// receives the document text, metadata and any prior snapshot, and replies
// with either structured content or a JSON text block of the form
// {"fields": {...}, "confidence": 0.9}.
type MCP struct {
	client  mcp.Client
	tool    string
	guard   *resilience.Guard
	timeout time.Duration
}

// NewMCP creates the external-agent collaborator. A zero timeout disables
// the per-call deadline.
func NewMCP(client mcp.Client, tool string, guard *resilience.Guard, timeout time.Duration) *MCP {
	return &MCP{client: client, tool: tool, guard: guard, timeout: timeout}
}

// Process implements router.Processor.
func (m *MCP) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessingResult, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	args := map[string]any{
		"document_id": req.DocumentID,
		"content":     req.Content,
	}
	if len(req.Metadata) > 0 {
		args["metadata"] = map[string]any(req.Metadata)
	}
	if req.Snapshot != nil {
		args["snapshot"] = req.Snapshot
	}

	res, err := resilience.Call(ctx, m.guard, "mcp", m.tool, func(ctx context.Context) (*mcp.ToolResult, error) {
		return m.client.CallTool(ctx, m.tool, args)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "processor: mcp %s", req.DocumentID)
	}

	payload := res.StructuredContent
	text := res.Text()
	if payload == nil {
		payload, err = decodeObject(text)
		if err != nil {
			return nil, eris.Wrapf(err, "processor: decode mcp reply for %s", req.DocumentID)
		}
	}

	fields, _ := payload["fields"].(map[string]any)
	if len(fields) == 0 {
		return nil, eris.Errorf("processor: mcp tool %s returned no fields", m.tool)
	}
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		if v == nil {
			continue
		}
		key := CanonicalField(name)
		out[key] = NormalizeValue(key, v)
	}
	conf, _ := toFloat64(payload["confidence"])

	var raw json.RawMessage
	if text != "" && json.Valid([]byte(cleanJSON(text))) {
		raw = json.RawMessage(cleanJSON(text))
	}

	zap.L().Debug("processor: mcp extraction complete",
		zap.String("document_id", req.DocumentID),
		zap.String("tool", m.tool),
		zap.Int("fields", len(out)),
	)

	return &model.ProcessingResult{
		Fields:     out,
		Confidence: clamp01(conf),
		Provider:   ProviderMCP,
		Model:      m.tool,
		Raw:        raw,
	}, nil
}
