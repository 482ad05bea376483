package complexity

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docrouter/internal/model"
)

func allStandardFields() map[string]any {
	return map[string]any{
		"invoice_number": "INV-1001",
		"invoice_date":   "2024-03-01",
		"due_date":       "2024-03-31",
		"vendor_name":    "Microsoft Corporation",
		"total_amount":   1210.0,
		"tax_amount":     110.0,
		"subtotal":       1100.0,
	}
}

func longContent(prefix string, n int) string {
	return prefix + strings.Repeat("x", n-len(prefix))
}

func TestAnalyze_WorstCaseSnapshot(t *testing.T) {
	snap := &model.ExtractionSnapshot{
		Tables:     []model.Table{},
		PageCount:  1,
		Confidence: 0.5,
		Content:    "",
		Fields:     map[string]any{},
	}

	got, err := Default().Analyze(snap, nil)
	require.NoError(t, err)

	assert.Equal(t, 15.0, got.StructureScore)
	assert.Equal(t, 25.0, got.QualityScore)
	assert.Equal(t, 20.0, got.CompletenessScore)
	assert.Equal(t, 25.0, got.StandardizationScore)
	assert.Equal(t, 85.0, got.Score)
	assert.Equal(t, model.ComplexityComplex, got.Level)
	assert.Equal(t, model.ModeMultiAgent, got.RecommendedMode)
	assert.Contains(t, got.Reasons, "Low extraction confidence (50%)")
	assert.Contains(t, got.Reasons, "Limited text content (0 characters)")
	assert.Contains(t, got.Reasons, "Missing 7 standard fields")
	assert.Contains(t, got.Reasons, "Unknown vendor format")
	assert.Contains(t, got.Reasons, "High complexity - MultiAgent processing required")
}

func TestAnalyze_CleanKnownVendorInvoice(t *testing.T) {
	snap := &model.ExtractionSnapshot{
		Content:    longContent("Invoice from Microsoft ", 500),
		Tables:     []model.Table{{RowCount: 4, ColumnCount: 3, Confidence: 0.98}},
		PageCount:  1,
		Confidence: 0.97,
		Fields:     allStandardFields(),
	}

	got, err := Default().Analyze(snap, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, got.Score, 30.0)
	assert.Equal(t, 10.0, got.Score)
	assert.Equal(t, model.ComplexitySimple, got.Level)
	assert.Equal(t, model.ModeTraditional, got.RecommendedMode)
	assert.Contains(t, got.Reasons, "Known vendor format detected (microsoft)")
}

func TestAnalyze_NoTablesButOtherwiseClean(t *testing.T) {
	snap := &model.ExtractionSnapshot{
		Content:    longContent("amazon web services ", 200),
		PageCount:  1,
		Confidence: 1.0,
		Fields:     allStandardFields(),
	}

	got, err := Default().Analyze(snap, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Score, 20.0)
}

func TestAnalyze_MediumAddsFallbackReason(t *testing.T) {
	snap := &model.ExtractionSnapshot{
		Content:    longContent("", 300),
		Tables:     []model.Table{{}, {}},
		PageCount:  2,
		Confidence: 0.80,
		Fields:     allStandardFields(),
	}

	got, err := Default().Analyze(snap, nil)
	require.NoError(t, err)

	// structure 10+2, quality 10, completeness 0, standardization 25
	assert.Equal(t, 47.0, got.Score)
	assert.Equal(t, model.ComplexityMedium, got.Level)
	assert.Equal(t, model.ModeTraditional, got.RecommendedMode)
	assert.Contains(t, got.Reasons, "Moderate extraction confidence (80%)")
	assert.Contains(t, got.Reasons, "Medium complexity - Traditional with MultiAgent fallback if it fails")
}

func TestStructureScore(t *testing.T) {
	tests := []struct {
		name   string
		tables int
		pages  int
		want   float64
		reason string
	}{
		{"no tables", 0, 1, 15, ""},
		{"one table", 1, 1, 5, ""},
		{"two tables", 2, 1, 10, ""},
		{"three tables", 3, 1, 10, ""},
		{"many tables", 5, 1, 15, "Complex table structure (5 tables)"},
		{"two pages", 1, 2, 7, ""},
		{"three pages", 1, 3, 9, "Multi-page document (3 pages)"},
		{"page bonus capped", 1, 40, 15, "Multi-page document (40 pages)"},
		{"total capped", 9, 40, 25, "Complex table structure (9 tables)"},
		{"zero pages treated as one", 1, 0, 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reasons []string
			snap := &model.ExtractionSnapshot{Tables: make([]model.Table, tt.tables), PageCount: tt.pages}
			assert.Equal(t, tt.want, structureScore(snap, &reasons))
			if tt.reason != "" {
				assert.Contains(t, reasons, tt.reason)
			}
		})
	}
}

func TestQualityScore(t *testing.T) {
	long := longContent("", 150)
	tests := []struct {
		name    string
		conf    float64
		content string
		want    float64
		reasons int
	}{
		{"low", 0.5, long, 20, 1},
		{"boundary 0.70 is moderate", 0.70, long, 10, 1},
		{"moderate", 0.84, long, 10, 1},
		{"boundary 0.85 is small", 0.85, long, 5, 0},
		{"small", 0.94, long, 5, 0},
		{"high", 0.95, long, 0, 0},
		{"short content only", 0.99, "short", 5, 1},
		{"low and short", 0.1, "", 25, 2},
		{"multibyte short content counts characters", 0.99, strings.Repeat("請", 40), 5, 1},
		{"multibyte long content", 0.99, strings.Repeat("é", 120), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reasons []string
			snap := &model.ExtractionSnapshot{Confidence: tt.conf, Content: tt.content}
			assert.Equal(t, tt.want, qualityScore(snap, &reasons))
			assert.Len(t, reasons, tt.reasons)
		})
	}
}

func TestQualityScore_ReportsCharacterCount(t *testing.T) {
	var reasons []string
	qualityScore(&model.ExtractionSnapshot{Confidence: 0.99, Content: strings.Repeat("請", 40)}, &reasons)
	assert.Equal(t, []string{"Limited text content (40 characters)"}, reasons)
}

func TestCompletenessScore(t *testing.T) {
	a := Default()

	withMissing := func(n int) map[string]any {
		f := allStandardFields()
		for _, k := range DefaultStandardFields[:n] {
			delete(f, k)
		}
		return f
	}

	tests := []struct {
		name   string
		fields map[string]any
		want   float64
	}{
		{"all present", withMissing(0), 0},
		{"one missing", withMissing(1), 5},
		{"two missing", withMissing(2), 10},
		{"three missing", withMissing(3), 10},
		{"four missing", withMissing(4), 20},
		{"all missing", nil, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reasons []string
			snap := &model.ExtractionSnapshot{Fields: tt.fields}
			assert.Equal(t, tt.want, a.completenessScore(snap, &reasons))
		})
	}
}

func TestCompletenessScore_KeyValueDiscovery(t *testing.T) {
	a := Default()
	snap := &model.ExtractionSnapshot{
		Fields: map[string]any{"invoice_number": "A-1", "vendor_name": nil},
		KeyValuePairs: []model.KeyValuePair{
			{Key: "Invoice_Date", Value: "2024-01-01"},
			{Key: "due_date", Value: "2024-02-01"},
			{Key: "vendor_name", Value: "Initech"},
			{Key: "total_amount", Value: "10.00"},
			{Key: "tax_amount", Value: "1.00"},
		},
	}

	var reasons []string
	// only subtotal is missing; nil field values are recovered from pairs
	assert.Equal(t, 5.0, a.completenessScore(snap, &reasons))
	assert.Empty(t, reasons)
}

func TestStandardizationScore(t *testing.T) {
	a := Default()

	t.Run("content match", func(t *testing.T) {
		var reasons []string
		snap := &model.ExtractionSnapshot{Content: "Billed by ORACLE America"}
		assert.Equal(t, 5.0, a.standardizationScore(snap, nil, &reasons))
		assert.Equal(t, []string{"Known vendor format detected (oracle)"}, reasons)
	})

	t.Run("metadata vendor match", func(t *testing.T) {
		var reasons []string
		snap := &model.ExtractionSnapshot{Content: "invoice"}
		meta := model.DocumentMetadata{"vendor": "Adobe Inc."}
		assert.Equal(t, 5.0, a.standardizationScore(snap, meta, &reasons))
		assert.Equal(t, []string{"Known vendor format detected (adobe)"}, reasons)
	})

	t.Run("first match wins", func(t *testing.T) {
		var reasons []string
		snap := &model.ExtractionSnapshot{Content: "google cloud resold by ibm and amazon"}
		assert.Equal(t, 5.0, a.standardizationScore(snap, nil, &reasons))
		assert.Equal(t, []string{"Known vendor format detected (amazon)"}, reasons)
	})

	t.Run("unknown vendor", func(t *testing.T) {
		var reasons []string
		snap := &model.ExtractionSnapshot{Content: "Initech LLC"}
		assert.Equal(t, 25.0, a.standardizationScore(snap, nil, &reasons))
		assert.Equal(t, []string{"Unknown vendor format"}, reasons)
	})

	t.Run("fullwidth text is normalized", func(t *testing.T) {
		var reasons []string
		snap := &model.ExtractionSnapshot{Content: "ＩＢＭ Japan"}
		assert.Equal(t, 5.0, a.standardizationScore(snap, nil, &reasons))
	})
}

func TestAnalyze_Confidence(t *testing.T) {
	a := Default()

	t.Run("no inputs", func(t *testing.T) {
		got, err := a.Analyze(nil, nil)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, got.Confidence, 1e-9)
		assert.Equal(t, model.ComplexityComplex, got.Level)
	})

	t.Run("snapshot and metadata", func(t *testing.T) {
		snap := &model.ExtractionSnapshot{Confidence: 0.5}
		got, err := a.Analyze(snap, model.DocumentMetadata{"vendor": "Initech"})
		require.NoError(t, err)
		assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	})

	t.Run("agreeing signals capped at one", func(t *testing.T) {
		snap := &model.ExtractionSnapshot{
			Content:    longContent("microsoft ", 200),
			Tables:     []model.Table{{}},
			PageCount:  1,
			Confidence: 0.97,
			Fields:     allStandardFields(),
		}
		got, err := a.Analyze(snap, model.DocumentMetadata{"vendor": "Microsoft"})
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.Confidence)
	})

	t.Run("empty metadata does not count", func(t *testing.T) {
		got, err := a.Analyze(nil, model.DocumentMetadata{})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, got.Confidence, 1e-9)
	})
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := Default()
	snap := &model.ExtractionSnapshot{
		Content:    "Salesforce subscription invoice",
		Tables:     []model.Table{{}, {}, {}, {}, {}},
		PageCount:  4,
		Confidence: 0.72,
		Fields:     map[string]any{"invoice_number": "SF-9", "total_amount": 12.5},
		KeyValuePairs: []model.KeyValuePair{
			{Key: "Due_Date", Value: "2024-05-01"},
		},
	}
	meta := model.DocumentMetadata{"vendor": "Salesforce", "region": "emea"}

	first, err := a.Analyze(snap, meta)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		next, err := a.Analyze(snap, meta)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestAnalyze_ScoresAlwaysInRange(t *testing.T) {
	a := Default()
	for _, tables := range []int{0, 1, 3, 50} {
		for _, pages := range []int{0, 1, 7, 1000} {
			for _, conf := range []float64{0, 0.69, 0.9, 1} {
				snap := &model.ExtractionSnapshot{Tables: make([]model.Table, tables), PageCount: pages, Confidence: conf}
				got, err := a.Analyze(snap, nil)
				require.NoError(t, err)
				for _, s := range []float64{got.StructureScore, got.QualityScore, got.CompletenessScore, got.StandardizationScore} {
					assert.GreaterOrEqual(t, s, 0.0)
					assert.LessOrEqual(t, s, SubScoreCap)
				}
				assert.GreaterOrEqual(t, got.Score, 0.0)
				assert.LessOrEqual(t, got.Score, 100.0)
			}
		}
	}
}

func TestAnalyze_MalformedSnapshot(t *testing.T) {
	a := Default()

	tests := []struct {
		name string
		snap *model.ExtractionSnapshot
	}{
		{"negative confidence", &model.ExtractionSnapshot{Confidence: -0.1}},
		{"confidence above one", &model.ExtractionSnapshot{Confidence: 1.5}},
		{"nan confidence", &model.ExtractionSnapshot{Confidence: math.NaN()}},
		{"negative pages", &model.ExtractionSnapshot{PageCount: -2}},
		{"negative table", &model.ExtractionSnapshot{Tables: []model.Table{{RowCount: -1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Analyze(tt.snap, nil)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrMalformedSnapshot))
		})
	}
}
