package processor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/pkg/docintel"
)

// ProviderDocIntel identifies results produced by the traditional path.
const ProviderDocIntel = "azure_document_intelligence"

var (
	// ErrNoSource is returned when a document has neither extracted fields
	// nor a source URL to analyze.
	ErrNoSource = eris.New("processor: document has no fields and no source_url")
	// ErrNothingExtracted is returned when the prebuilt model recognized no
	// usable fields.
	ErrNothingExtracted = eris.New("processor: prebuilt model extracted no fields")
)

// Traditional extracts fields with a prebuilt Document Intelligence model.
// When the snapshot already carries recognized fields they are normalized
// directly; otherwise the document at metadata source_url is analyzed.
type Traditional struct {
	client  docintel.Client
	modelID string
	guard   *resilience.Guard
}

// NewTraditional creates the traditional collaborator. client may be nil,
// in which case only snapshot fields can be used.
func NewTraditional(client docintel.Client, modelID string, guard *resilience.Guard) *Traditional {
	return &Traditional{client: client, modelID: modelID, guard: guard}
}

// Process implements router.Processor.
func (t *Traditional) Process(ctx context.Context, req model.ProcessRequest) (*model.ProcessingResult, error) {
	if req.Snapshot != nil && len(req.Snapshot.Fields) > 0 {
		return fromFields(req.Snapshot.Fields, req.Snapshot.Confidence, t.modelID, nil)
	}

	src := req.Metadata.String(model.MetaSourceURL)
	if src == "" || t.client == nil {
		return nil, ErrNoSource
	}

	start := time.Now()
	res, err := resilience.Call(ctx, t.guard, "docintel", "analyze", func(ctx context.Context) (*docintel.AnalyzeResult, error) {
		return t.client.Analyze(ctx, docintel.AnalyzeRequest{ModelID: t.modelID, URLSource: src})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "processor: analyze %s", req.DocumentID)
	}
	zap.L().Debug("processor: prebuilt analysis complete",
		zap.String("document_id", req.DocumentID),
		zap.String("model_id", t.modelID),
		zap.Duration("elapsed", time.Since(start)),
	)

	snap := SnapshotFromResult(res)
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "processor: marshal analyze result")
	}
	return fromFields(snap.Fields, snap.Confidence, t.modelID, raw)
}

func fromFields(fields map[string]any, confidence float64, modelID string, raw json.RawMessage) (*model.ProcessingResult, error) {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		if v == nil {
			continue
		}
		key := CanonicalField(name)
		out[key] = NormalizeValue(key, v)
	}
	if len(out) == 0 {
		return nil, ErrNothingExtracted
	}
	return &model.ProcessingResult{
		Fields:     out,
		Confidence: clamp01(confidence),
		Provider:   ProviderDocIntel,
		Model:      modelID,
		Raw:        raw,
	}, nil
}
