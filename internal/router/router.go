// Package router classifies documents by complexity and dispatches them to
// the traditional, multi-agent or external-agent processing path, falling
// back from traditional to multi-agent when the fast path fails.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/model"
)

// ForcedReason is the single reason attached to a forced-mode assessment.
const ForcedReason = "Mode forced by user"

var (
	// ErrMissingDocumentID is returned when a request has no document ID.
	ErrMissingDocumentID = eris.New("router: document id is required")
	// ErrModeUnavailable is returned when a mode is forced but no
	// collaborator is configured for it.
	ErrModeUnavailable = eris.New("router: processing mode unavailable")
)

// RouteRequest is the input to Route. Snapshot and Metadata are optional.
// ForceMode, when set, bypasses complexity scoring.
type RouteRequest struct {
	DocumentID string
	Snapshot   *model.ExtractionSnapshot
	Metadata   model.DocumentMetadata
	ForceMode  string
}

// Router orchestrates assessment, dispatch and fallback. Safe for
// concurrent use.
type Router struct {
	assessor    Assessor
	traditional Processor
	multiAgent  Processor
	mcp         Processor
	stats       *Statistics
	now         func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithMCP sets the external-agent collaborator used by forced mcp requests.
func WithMCP(p Processor) Option {
	return func(r *Router) {
		r.mcp = p
	}
}

// WithStatistics injects the counters the router records into.
func WithStatistics(s *Statistics) Option {
	return func(r *Router) {
		r.stats = s
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// New creates a Router. The assessor and both the traditional and
// multi-agent collaborators are required.
func New(assessor Assessor, traditional, multiAgent Processor, opts ...Option) (*Router, error) {
	if assessor == nil {
		return nil, eris.New("router: assessor is required")
	}
	if traditional == nil || multiAgent == nil {
		return nil, eris.New("router: traditional and multi-agent processors are required")
	}

	r := &Router{
		assessor:    assessor,
		traditional: traditional,
		multiAgent:  multiAgent,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.stats == nil {
		r.stats = NewStatistics()
	}
	return r, nil
}

// Statistics returns the current routing counters.
func (r *Router) Statistics() model.StatisticsSnapshot {
	return r.stats.Snapshot()
}

// Route assesses a document, dispatches it and returns the outcome. Errors
// from the last processing tier tried are returned wrapped with the tier
// name; a traditional failure is only visible as FallbackUsed.
func (r *Router) Route(ctx context.Context, req RouteRequest) (*model.RoutingOutcome, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, ErrMissingDocumentID
	}

	var forced model.ProcessingMode
	if req.ForceMode != "" {
		m, err := model.ParseProcessingMode(req.ForceMode)
		if err != nil {
			return nil, eris.Wrap(err, "router: force mode")
		}
		if m == model.ModeMCP && r.mcp == nil {
			return nil, eris.Wrapf(ErrModeUnavailable, "%s collaborator not configured", m)
		}
		forced = m
	}

	start := r.now()

	var assessment *model.ComplexityAssessment
	if forced != "" {
		assessment = forcedAssessment(forced)
	} else {
		assessment = r.Analyze(req.Snapshot, req.Metadata)
	}

	log := zap.L().With(zap.String("document_id", req.DocumentID))
	log.Debug("router: assessed document",
		zap.Float64("score", assessment.Score),
		zap.String("level", string(assessment.Level)),
		zap.String("recommended_mode", string(assessment.RecommendedMode)),
		zap.Float64("confidence", assessment.Confidence),
		zap.Strings("reasons", assessment.Reasons),
	)

	preq := model.ProcessRequest{
		DocumentID: req.DocumentID,
		Snapshot:   req.Snapshot,
		Metadata:   req.Metadata,
	}
	if req.Snapshot != nil {
		preq.Content = req.Snapshot.Content
	}

	result, used, fallback, err := r.dispatch(ctx, log, assessment.RecommendedMode, preq)
	if err != nil {
		return nil, err
	}

	elapsed := r.now().Sub(start)
	r.stats.Record(used, fallback)

	log.Info("router: document processed",
		zap.String("mode", string(used)),
		zap.Bool("fallback", fallback),
		zap.Float64("score", assessment.Score),
		zap.Duration("elapsed", elapsed),
	)

	return &model.RoutingOutcome{
		ID:                    uuid.New().String(),
		DocumentID:            req.DocumentID,
		ProcessingMode:        used,
		Assessment:            assessment,
		Result:                result,
		ProcessingTimeSeconds: elapsed.Seconds(),
		FallbackUsed:          fallback,
		Timestamp:             start.UTC(),
	}, nil
}

// Analyze returns the complexity assessment for a document without
// dispatching it. Analyzer failures never escape: they become a worst-case
// multi-agent assessment.
func (r *Router) Analyze(snap *model.ExtractionSnapshot, meta model.DocumentMetadata) *model.ComplexityAssessment {
	a, err := r.safeAnalyze(snap, meta)
	if err != nil {
		zap.L().Warn("router: complexity analysis failed, assuming complex", zap.Error(err))
		return failSafeAssessment(err)
	}
	return a
}

func (r *Router) safeAnalyze(snap *model.ExtractionSnapshot, meta model.DocumentMetadata) (a *model.ComplexityAssessment, err error) {
	defer func() {
		if p := recover(); p != nil {
			a, err = nil, eris.Errorf("analyzer panic: %v", p)
		}
	}()

	a, err = r.assessor.Analyze(snap, meta)
	if err == nil && a == nil {
		err = eris.New("analyzer returned no assessment")
	}
	return a, err
}

func (r *Router) dispatch(ctx context.Context, log *zap.Logger, mode model.ProcessingMode, req model.ProcessRequest) (*model.ProcessingResult, model.ProcessingMode, bool, error) {
	switch mode {
	case model.ModeTraditional:
		res, err := r.traditional.Process(ctx, req)
		if err == nil {
			return res, model.ModeTraditional, false, nil
		}

		log.Warn("router: traditional processing failed, falling back to multi-agent", zap.Error(err))

		res, err = r.multiAgent.Process(ctx, req)
		if err != nil {
			return nil, model.ModeMultiAgent, true, eris.Wrapf(err, "router: %s fallback processing", model.ModeMultiAgent)
		}
		return res, model.ModeMultiAgent, true, nil

	case model.ModeMultiAgent:
		res, err := r.multiAgent.Process(ctx, req)
		if err != nil {
			return nil, mode, false, eris.Wrapf(err, "router: %s processing", mode)
		}
		return res, mode, false, nil

	case model.ModeMCP:
		if r.mcp == nil {
			return nil, mode, false, eris.Wrapf(ErrModeUnavailable, "%s collaborator not configured", mode)
		}
		res, err := r.mcp.Process(ctx, req)
		if err != nil {
			return nil, mode, false, eris.Wrapf(err, "router: %s processing", mode)
		}
		return res, mode, false, nil

	default:
		return nil, mode, false, eris.Wrapf(model.ErrInvalidProcessingMode, "router: cannot dispatch %q", mode)
	}
}

func forcedAssessment(mode model.ProcessingMode) *model.ComplexityAssessment {
	return &model.ComplexityAssessment{
		Level:           model.ComplexitySimple,
		RecommendedMode: mode,
		Confidence:      1.0,
		Reasons:         []string{ForcedReason},
	}
}

func failSafeAssessment(err error) *model.ComplexityAssessment {
	return &model.ComplexityAssessment{
		Score:                100,
		StructureScore:       25,
		QualityScore:         25,
		CompletenessScore:    25,
		StandardizationScore: 25,
		Level:                model.ComplexityComplex,
		RecommendedMode:      model.ModeMultiAgent,
		Confidence:           0.5,
		Reasons:              []string{fmt.Sprintf("Analysis failed: %s - defaulting to MultiAgent", err.Error())},
	}
}
