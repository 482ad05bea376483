package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/resilience"
	"github.com/sells-group/docrouter/pkg/docintel"
)

func TestTraditional_SnapshotFields(t *testing.T) {
	di := new(mockDocIntel)
	tr := NewTraditional(di, "prebuilt-invoice", nil)

	res, err := tr.Process(context.Background(), model.ProcessRequest{
		DocumentID: "doc-1",
		Snapshot: &model.ExtractionSnapshot{
			Confidence: 0.93,
			Fields: map[string]any{
				"InvoiceId":    "INV-1",
				"InvoiceTotal": "$1,050.00",
				"InvoiceDate":  "03/01/2024",
				"DueDate":      nil,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderDocIntel, res.Provider)
	assert.Equal(t, "prebuilt-invoice", res.Model)
	assert.InDelta(t, 0.93, res.Confidence, 1e-9)
	assert.Equal(t, map[string]any{
		FieldInvoiceNumber: "INV-1",
		FieldTotalAmount:   1050.0,
		FieldInvoiceDate:   "2024-03-01",
	}, res.Fields)
	di.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestTraditional_AnalyzesSourceURL(t *testing.T) {
	di := new(mockDocIntel)
	di.On("Analyze", mock.Anything, docintel.AnalyzeRequest{
		ModelID:   "prebuilt-invoice",
		URLSource: "https://example.com/inv.pdf",
	}).Return(&docintel.AnalyzeResult{
		ModelID: "prebuilt-invoice",
		Pages:   []docintel.Page{{Words: []docintel.Word{{Content: "x", Confidence: 0.9}}}},
		Documents: []docintel.Document{{Fields: map[string]docintel.Field{
			"VendorName": {Type: "string", ValueString: strPtr("Contoso")},
		}}},
	}, nil)

	tr := NewTraditional(di, "prebuilt-invoice", nil)
	res, err := tr.Process(context.Background(), model.ProcessRequest{
		DocumentID: "doc-2",
		Metadata:   model.DocumentMetadata{model.MetaSourceURL: "https://example.com/inv.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Contoso", res.Fields[FieldVendorName])
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Contains(t, string(res.Raw), `"modelId":"prebuilt-invoice"`)
	di.AssertExpectations(t)
}

func TestTraditional_NoSource(t *testing.T) {
	tr := NewTraditional(nil, "prebuilt-invoice", nil)
	_, err := tr.Process(context.Background(), model.ProcessRequest{DocumentID: "doc-3"})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestTraditional_NothingExtracted(t *testing.T) {
	di := new(mockDocIntel)
	di.On("Analyze", mock.Anything, mock.Anything).Return(&docintel.AnalyzeResult{Content: "blurry"}, nil)

	tr := NewTraditional(di, "prebuilt-invoice", nil)
	_, err := tr.Process(context.Background(), model.ProcessRequest{
		DocumentID: "doc-4",
		Metadata:   model.DocumentMetadata{model.MetaSourceURL: "https://example.com/blurry.pdf"},
	})
	assert.ErrorIs(t, err, ErrNothingExtracted)
}

func TestTraditional_RetriesTransientErrors(t *testing.T) {
	di := new(mockDocIntel)
	di.On("Analyze", mock.Anything, mock.Anything).
		Return(nil, resilience.HTTPError("docintel", 503, "busy")).Once()
	di.On("Analyze", mock.Anything, mock.Anything).
		Return(&docintel.AnalyzeResult{Documents: []docintel.Document{{Fields: map[string]docintel.Field{
			"InvoiceId": {Type: "string", ValueString: strPtr("INV-9")},
		}}}}, nil).Once()

	guard := resilience.NewGuard(resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}, resilience.BreakerConfig{FailureThreshold: 5})

	tr := NewTraditional(di, "prebuilt-invoice", guard)
	res, err := tr.Process(context.Background(), model.ProcessRequest{
		DocumentID: "doc-5",
		Metadata:   model.DocumentMetadata{model.MetaSourceURL: "https://example.com/inv.pdf"},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-9", res.Fields[FieldInvoiceNumber])
	di.AssertNumberOfCalls(t, "Analyze", 2)
}
