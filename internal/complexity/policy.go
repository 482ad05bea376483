package complexity

import "github.com/sells-group/docrouter/internal/model"

// Score thresholds separating the complexity levels.
const (
	SimpleMaxScore = 30.0
	MediumMaxScore = 60.0
)

// Decide maps a complexity score to a level and a processing mode. Simple and
// medium documents go to the traditional path (medium ones are eligible for
// fallback); complex documents go straight to multi-agent.
func Decide(score float64) (model.ComplexityLevel, model.ProcessingMode) {
	switch {
	case score <= SimpleMaxScore:
		return model.ComplexitySimple, model.ModeTraditional
	case score <= MediumMaxScore:
		return model.ComplexityMedium, model.ModeTraditional
	default:
		return model.ComplexityComplex, model.ModeMultiAgent
	}
}
