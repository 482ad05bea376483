package router

import (
	"context"

	"github.com/sells-group/docrouter/internal/model"
)

// Processor is an external processing collaborator for one execution path.
type Processor interface {
	Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessingResult, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, req model.ProcessRequest) (*model.ProcessingResult, error)

// Process calls f(ctx, req).
func (f ProcessorFunc) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessingResult, error) {
	return f(ctx, req)
}

// Assessor produces complexity assessments. *complexity.Analyzer implements it.
type Assessor interface {
	Analyze(snap *model.ExtractionSnapshot, meta model.DocumentMetadata) (*model.ComplexityAssessment, error)
}
