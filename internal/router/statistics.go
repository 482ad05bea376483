package router

import (
	"sync"

	"github.com/sells-group/docrouter/internal/model"
)

// Statistics holds running routing counters for the life of the process.
// Counters are never persisted and reset only on restart.
type Statistics struct {
	mu          sync.Mutex
	traditional int64
	multiAgent  int64
	mcp         int64
	fallback    int64
}

// NewStatistics returns zeroed counters.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Record counts one completed routing under the mode actually used.
// fallback marks a traditional attempt that was completed by multi-agent.
func (s *Statistics) Record(mode model.ProcessingMode, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case model.ModeTraditional:
		s.traditional++
	case model.ModeMultiAgent:
		s.multiAgent++
	case model.ModeMCP:
		s.mcp++
	}
	if fallback {
		s.fallback++
	}
}

// Snapshot returns the counters with derived percentages. Fallbacks are not
// part of the total: a fallback relabels an attempt, it is not an extra
// document.
func (s *Statistics) Snapshot() model.StatisticsSnapshot {
	s.mu.Lock()
	snap := model.StatisticsSnapshot{
		TraditionalCount: s.traditional,
		MultiAgentCount:  s.multiAgent,
		MCPCount:         s.mcp,
		FallbackCount:    s.fallback,
	}
	s.mu.Unlock()

	snap.Total = snap.TraditionalCount + snap.MultiAgentCount + snap.MCPCount
	if snap.Total == 0 {
		return snap
	}

	total := float64(snap.Total)
	snap.TraditionalPct = float64(snap.TraditionalCount) / total * 100
	snap.MultiAgentPct = float64(snap.MultiAgentCount) / total * 100
	snap.MCPPct = float64(snap.MCPCount) / total * 100
	snap.FallbackRate = float64(snap.FallbackCount) / total * 100
	return snap
}
