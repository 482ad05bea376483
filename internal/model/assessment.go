package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ComplexityLevel buckets a complexity score.
type ComplexityLevel string

const (
	ComplexitySimple  ComplexityLevel = "simple"
	ComplexityMedium  ComplexityLevel = "medium"
	ComplexityComplex ComplexityLevel = "complex"
)

// ProcessingMode identifies an execution path for a document.
type ProcessingMode string

const (
	// ModeTraditional is fast, deterministic prebuilt-model extraction.
	ModeTraditional ProcessingMode = "traditional"
	// ModeMultiAgent is slower, LLM-orchestrated multi-step extraction.
	ModeMultiAgent ProcessingMode = "multi_agent"
	// ModeMCP dispatches to an external agent. Only reachable when forced.
	ModeMCP ProcessingMode = "mcp"
)

// ProcessingModes lists every valid mode in dispatch order.
var ProcessingModes = []ProcessingMode{ModeTraditional, ModeMultiAgent, ModeMCP}

// ErrInvalidProcessingMode is returned for unknown processing mode values.
var ErrInvalidProcessingMode = eris.New("invalid processing mode")

// ParseProcessingMode validates a user-supplied mode string.
func ParseProcessingMode(s string) (ProcessingMode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, m := range ProcessingModes {
		if string(m) == v {
			return m, nil
		}
	}
	allowed := make([]string, len(ProcessingModes))
	for i, m := range ProcessingModes {
		allowed[i] = string(m)
	}
	return "", eris.Wrapf(ErrInvalidProcessingMode, "%q (allowed: %s)", s, strings.Join(allowed, ", "))
}

// ComplexityAssessment is the analyzer's verdict on a single document. It is
// created fresh per routing call and never mutated afterwards.
type ComplexityAssessment struct {
	Score                float64         `json:"complexity_score"`
	StructureScore       float64         `json:"structure_score"`
	QualityScore         float64         `json:"quality_score"`
	CompletenessScore    float64         `json:"completeness_score"`
	StandardizationScore float64         `json:"standardization_score"`
	Level                ComplexityLevel `json:"complexity_level"`
	RecommendedMode      ProcessingMode  `json:"recommended_mode"`
	Confidence           float64         `json:"confidence"`
	Reasons              []string        `json:"reasons"`
}
