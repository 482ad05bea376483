package model

import (
	"encoding/json"
	"time"
)

// TokenUsage tracks LLM token consumption for a processing call.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.Cost += other.Cost
}

// ProcessingResult is the payload returned by a processing collaborator.
// The router treats it as opaque.
type ProcessingResult struct {
	Fields     map[string]any  `json:"fields"`
	Confidence float64         `json:"confidence"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model,omitempty"`
	Usage      TokenUsage      `json:"usage"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// RoutingOutcome is the unified envelope returned for a routed document.
type RoutingOutcome struct {
	ID                    string                `json:"id"`
	DocumentID            string                `json:"document_id"`
	ProcessingMode        ProcessingMode        `json:"processing_mode"`
	Assessment            *ComplexityAssessment `json:"complexity_assessment"`
	Result                *ProcessingResult     `json:"result"`
	ProcessingTimeSeconds float64               `json:"processing_time_seconds"`
	FallbackUsed          bool                  `json:"fallback_used"`
	Timestamp             time.Time             `json:"timestamp"`
}

// StatisticsSnapshot is a point-in-time view of the routing counters.
type StatisticsSnapshot struct {
	TraditionalCount int64   `json:"traditional_count"`
	MultiAgentCount  int64   `json:"multi_agent_count"`
	MCPCount         int64   `json:"mcp_count"`
	FallbackCount    int64   `json:"fallback_count"`
	Total            int64   `json:"total"`
	TraditionalPct   float64 `json:"traditional_pct"`
	MultiAgentPct    float64 `json:"multi_agent_pct"`
	MCPPct           float64 `json:"mcp_pct"`
	FallbackRate     float64 `json:"fallback_rate"`
}
