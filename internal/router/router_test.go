package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrouter/internal/complexity"
	"github.com/sells-group/docrouter/internal/model"
)

func simpleSnapshot() *model.ExtractionSnapshot {
	return &model.ExtractionSnapshot{
		Content:    "Microsoft Corporation invoice " + strings.Repeat("line item ", 50),
		Tables:     []model.Table{{RowCount: 5, ColumnCount: 4, Confidence: 0.99}},
		PageCount:  1,
		Confidence: 0.97,
		Fields: map[string]any{
			"invoice_number": "INV-1",
			"invoice_date":   "2024-01-01",
			"due_date":       "2024-01-31",
			"vendor_name":    "Microsoft",
			"total_amount":   110.0,
			"tax_amount":     10.0,
			"subtotal":       100.0,
		},
	}
}

func complexSnapshot() *model.ExtractionSnapshot {
	return &model.ExtractionSnapshot{
		Tables:     []model.Table{},
		PageCount:  1,
		Confidence: 0.5,
		Fields:     map[string]any{},
	}
}

type routerFixture struct {
	router      *Router
	stats       *Statistics
	traditional *mockProcessor
	multiAgent  *mockProcessor
	mcp         *mockProcessor
}

func newFixture(t *testing.T, assessor Assessor, opts ...Option) *routerFixture {
	t.Helper()
	f := &routerFixture{
		stats:       NewStatistics(),
		traditional: &mockProcessor{},
		multiAgent:  &mockProcessor{},
		mcp:         &mockProcessor{},
	}
	if assessor == nil {
		assessor = complexity.Default()
	}
	opts = append([]Option{WithStatistics(f.stats), WithMCP(f.mcp)}, opts...)
	r, err := New(assessor, f.traditional, f.multiAgent, opts...)
	require.NoError(t, err)
	f.router = r
	t.Cleanup(func() {
		f.traditional.AssertExpectations(t)
		f.multiAgent.AssertExpectations(t)
		f.mcp.AssertExpectations(t)
	})
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, &mockProcessor{}, &mockProcessor{})
	assert.Error(t, err)

	_, err = New(complexity.Default(), nil, &mockProcessor{})
	assert.Error(t, err)

	_, err = New(complexity.Default(), &mockProcessor{}, nil)
	assert.Error(t, err)
}

func TestRoute_SimpleGoesTraditional(t *testing.T) {
	f := newFixture(t, nil)
	want := &model.ProcessingResult{Provider: "docintel", Fields: map[string]any{"total_amount": 110.0}}
	f.traditional.On("Process", mock.Anything, mock.MatchedBy(func(req model.ProcessRequest) bool {
		return req.DocumentID == "doc-1" && strings.HasPrefix(req.Content, "Microsoft")
	})).Return(want, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-1", Snapshot: simpleSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, model.ModeTraditional, out.ProcessingMode)
	assert.False(t, out.FallbackUsed)
	assert.Same(t, want, out.Result)
	assert.Equal(t, "doc-1", out.DocumentID)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, model.ComplexitySimple, out.Assessment.Level)
	assert.LessOrEqual(t, out.Assessment.Score, 30.0)

	stats := f.stats.Snapshot()
	assert.Equal(t, int64(1), stats.TraditionalCount)
	assert.Equal(t, int64(0), stats.FallbackCount)
}

func TestRoute_ComplexGoesMultiAgent(t *testing.T) {
	f := newFixture(t, nil)
	want := &model.ProcessingResult{Provider: "multi_agent"}
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(want, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-2", Snapshot: complexSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, model.ModeMultiAgent, out.ProcessingMode)
	assert.False(t, out.FallbackUsed)
	assert.Equal(t, model.ComplexityComplex, out.Assessment.Level)
	assert.Greater(t, out.Assessment.Score, 60.0)
	assert.Equal(t, int64(1), f.stats.Snapshot().MultiAgentCount)
}

func TestRoute_TraditionalFailureFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.traditional.On("Process", mock.Anything, mock.Anything).Return(nil, errors.New("docintel: 503")).Once()
	want := &model.ProcessingResult{Provider: "multi_agent"}
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(want, nil).Once()

	before := f.stats.Snapshot()
	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-3", Snapshot: simpleSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, model.ModeMultiAgent, out.ProcessingMode)
	assert.True(t, out.FallbackUsed)
	assert.Same(t, want, out.Result)
	assert.Equal(t, model.ModeTraditional, out.Assessment.RecommendedMode, "assessment keeps the recommendation")

	after := f.stats.Snapshot()
	assert.Equal(t, before.FallbackCount+1, after.FallbackCount)
	assert.Equal(t, before.MultiAgentCount+1, after.MultiAgentCount)
	assert.Equal(t, before.TraditionalCount, after.TraditionalCount)
}

func TestRoute_FallbackFailurePropagates(t *testing.T) {
	f := newFixture(t, nil)
	deepErr := errors.New("llm: overloaded")
	f.traditional.On("Process", mock.Anything, mock.Anything).Return(nil, errors.New("docintel: 500")).Once()
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(nil, deepErr).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-4", Snapshot: simpleSnapshot()})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, deepErr))
	assert.Contains(t, err.Error(), "multi_agent fallback processing")

	assert.Equal(t, model.StatisticsSnapshot{}, f.stats.Snapshot(), "failed routings are not counted")
}

func TestRoute_MultiAgentFailureHasNoFallback(t *testing.T) {
	f := newFixture(t, nil)
	deepErr := errors.New("llm: timeout")
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(nil, deepErr).Once()

	_, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-5", Snapshot: complexSnapshot()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, deepErr))
	f.traditional.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestRoute_ForcedMultiAgentOverridesScore(t *testing.T) {
	f := newFixture(t, nil)
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{
		DocumentID: "doc-6",
		Snapshot:   simpleSnapshot(),
		ForceMode:  "multi_agent",
	})
	require.NoError(t, err)

	assert.Equal(t, model.ModeMultiAgent, out.ProcessingMode)
	assert.Contains(t, out.Assessment.Reasons, ForcedReason)
	assert.Equal(t, model.ComplexitySimple, out.Assessment.Level)
	assert.Equal(t, 1.0, out.Assessment.Confidence)
	assert.Zero(t, out.Assessment.Score)
}

func TestRoute_ForcedModeSkipsAnalyzer(t *testing.T) {
	assessor := &mockAssessor{}
	f := newFixture(t, assessor)
	f.traditional.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil).Once()

	_, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-7", ForceMode: "Traditional"})
	require.NoError(t, err)
	assessor.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestRoute_ForcedMCP(t *testing.T) {
	f := newFixture(t, nil)
	f.mcp.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{Provider: "mcp"}, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-8", ForceMode: "mcp"})
	require.NoError(t, err)
	assert.Equal(t, model.ModeMCP, out.ProcessingMode)
	assert.Equal(t, int64(1), f.stats.Snapshot().MCPCount)
}

func TestRoute_ForcedMCPWithoutCollaborator(t *testing.T) {
	r, err := New(complexity.Default(), &mockProcessor{}, &mockProcessor{})
	require.NoError(t, err)

	_, err = r.Route(context.Background(), RouteRequest{DocumentID: "doc-9", ForceMode: "mcp"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModeUnavailable))
}

func TestRoute_InvalidForceMode(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-10", ForceMode: "turbo"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidProcessingMode))
	assert.Contains(t, err.Error(), "traditional, multi_agent, mcp")
}

func TestRoute_MissingDocumentID(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "  "})
	assert.True(t, errors.Is(err, ErrMissingDocumentID))
}

func TestRoute_AnalyzerErrorIsFailSafe(t *testing.T) {
	assessor := &mockAssessor{}
	assessor.On("Analyze", mock.Anything, mock.Anything).Return(nil, errors.New("bad tables")).Once()
	f := newFixture(t, assessor)
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-11", Snapshot: simpleSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, model.ModeMultiAgent, out.ProcessingMode)
	assert.Equal(t, model.ComplexityComplex, out.Assessment.Level)
	assert.Equal(t, 0.5, out.Assessment.Confidence)
	require.Len(t, out.Assessment.Reasons, 1)
	assert.Contains(t, out.Assessment.Reasons[0], "bad tables")
	assessor.AssertExpectations(t)
}

func TestRoute_MalformedSnapshotIsFailSafe(t *testing.T) {
	f := newFixture(t, nil)
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{
		DocumentID: "doc-12",
		Snapshot:   &model.ExtractionSnapshot{Confidence: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ModeMultiAgent, out.ProcessingMode)
	assert.Contains(t, out.Assessment.Reasons[0], "Analysis failed")
}

func TestAnalyze_RecoversPanic(t *testing.T) {
	r, err := New(panicAssessor{}, &mockProcessor{}, &mockProcessor{})
	require.NoError(t, err)

	a := r.Analyze(nil, nil)
	assert.Equal(t, model.ModeMultiAgent, a.RecommendedMode)
	assert.Contains(t, a.Reasons[0], "index out of range")
}

func TestRoute_NoInputsDefaultsComplex(t *testing.T) {
	f := newFixture(t, nil)
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-13"})
	require.NoError(t, err)
	assert.Equal(t, model.ModeMultiAgent, out.ProcessingMode)
	assert.InDelta(t, 0.5, out.Assessment.Confidence, 1e-9)
}

func TestRoute_ElapsedAndTimestampFromClock(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return base.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
	}

	f := newFixture(t, nil, WithClock(clock))
	f.traditional.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil).Once()

	out, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc-14", Snapshot: simpleSnapshot()})
	require.NoError(t, err)
	assert.Equal(t, base, out.Timestamp)
	assert.InDelta(t, 1.5, out.ProcessingTimeSeconds, 1e-9)
}

func TestRoute_ConcurrentCallsCountEveryDocument(t *testing.T) {
	f := newFixture(t, nil)
	f.traditional.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil)
	f.multiAgent.On("Process", mock.Anything, mock.Anything).Return(&model.ProcessingResult{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap := simpleSnapshot()
			if i%2 == 1 {
				snap = complexSnapshot()
			}
			_, err := f.router.Route(context.Background(), RouteRequest{DocumentID: "doc", Snapshot: snap})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats := f.router.Statistics()
	assert.Equal(t, int64(20), stats.TraditionalCount)
	assert.Equal(t, int64(20), stats.MultiAgentCount)
	assert.Equal(t, int64(40), stats.Total)
}
