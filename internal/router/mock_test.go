package router

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/docrouter/internal/model"
)

// --- Processor Mock ---

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessingResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcessingResult), args.Error(1)
}

// --- Assessor Mock ---

type mockAssessor struct {
	mock.Mock
}

func (m *mockAssessor) Analyze(snap *model.ExtractionSnapshot, meta model.DocumentMetadata) (*model.ComplexityAssessment, error) {
	args := m.Called(snap, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ComplexityAssessment), args.Error(1)
}

type panicAssessor struct{}

func (panicAssessor) Analyze(*model.ExtractionSnapshot, model.DocumentMetadata) (*model.ComplexityAssessment, error) {
	panic("index out of range")
}
