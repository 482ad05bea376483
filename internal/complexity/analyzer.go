// Package complexity scores how hard a document is expected to be to extract
// and recommends a processing mode for it. Scoring is pure and deterministic.
package complexity

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/docrouter/internal/model"
)

// SubScoreCap is the ceiling of each of the four sub-scores.
const SubScoreCap = 25.0

// Structure penalties.
const (
	noTablesPenalty     = 15.0
	singleTablePenalty  = 5.0
	fewTablesPenalty    = 10.0
	manyTablesPenalty   = 15.0
	perExtraPagePenalty = 2.0
	maxPagePenalty      = 10.0
)

// Quality penalties.
const (
	lowConfidence           = 0.70
	moderateConfidence      = 0.85
	highConfidence          = 0.95
	lowConfidencePenalty    = 20.0
	moderateConfidencePenal = 10.0
	highConfidencePenalty   = 5.0
	shortContentChars       = 100
	shortContentPenalty     = 5.0
)

// Completeness penalties.
const (
	manyMissingPenalty = 20.0
	someMissingPenalty = 10.0
	oneMissingPenalty  = 5.0
)

// Standardization scoring.
const (
	standardizationBaseline = 15.0
	knownVendorCredit       = 10.0
	unknownVendorPenalty    = 10.0
)

// Assessment confidence contributions.
const (
	baseConfidence     = 0.5
	snapshotConfidence = 0.3
	metadataConfidence = 0.1
	agreeConfidence    = 0.1
	agreeSpread        = 10.0
)

// ErrMalformedSnapshot is returned when a snapshot violates its invariants.
var ErrMalformedSnapshot = eris.New("malformed extraction snapshot")

type vendorPattern struct {
	name string
	re   *regexp.Regexp
}

// Analyzer computes complexity assessments. It holds only compiled rules and
// is safe for concurrent use.
type Analyzer struct {
	standardFields []string
	vendors        []vendorPattern
}

// NewAnalyzer compiles the rules into an Analyzer.
func NewAnalyzer(rules Rules) (*Analyzer, error) {
	a := &Analyzer{
		standardFields: append([]string(nil), rules.StandardFields...),
	}
	for _, p := range rules.VendorPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, eris.Wrapf(err, "complexity: compile vendor pattern %q", p)
		}
		a.vendors = append(a.vendors, vendorPattern{name: p, re: re})
	}
	return a, nil
}

// Default returns an Analyzer using the built-in rules.
func Default() *Analyzer {
	a, err := NewAnalyzer(DefaultRules())
	if err != nil {
		panic(err) // built-in patterns are literal words
	}
	return a
}

// Analyze scores a document. Either input may be nil; missing data pushes
// the score toward complex and lowers the assessment confidence.
func (a *Analyzer) Analyze(snap *model.ExtractionSnapshot, meta model.DocumentMetadata) (*model.ComplexityAssessment, error) {
	if err := validate(snap); err != nil {
		return nil, err
	}

	view := snap
	if view == nil {
		view = &model.ExtractionSnapshot{}
	}

	var reasons []string
	structure := structureScore(view, &reasons)
	quality := qualityScore(view, &reasons)
	completeness := a.completenessScore(view, &reasons)
	standardization := a.standardizationScore(view, meta, &reasons)

	total := structure + quality + completeness + standardization
	level, mode := Decide(total)

	switch level {
	case model.ComplexityMedium:
		reasons = append(reasons, "Medium complexity - Traditional with MultiAgent fallback if it fails")
	case model.ComplexityComplex:
		reasons = append(reasons, "High complexity - MultiAgent processing required")
	}

	conf := baseConfidence
	if snap != nil {
		conf += snapshotConfidence
	}
	if len(meta) > 0 {
		conf += metadataConfidence
	}
	if spread(structure, quality, completeness, standardization) < agreeSpread {
		conf += agreeConfidence
	}

	return &model.ComplexityAssessment{
		Score:                total,
		StructureScore:       structure,
		QualityScore:         quality,
		CompletenessScore:    completeness,
		StandardizationScore: standardization,
		Level:                level,
		RecommendedMode:      mode,
		Confidence:           math.Min(conf, 1.0),
		Reasons:              reasons,
	}, nil
}

func validate(snap *model.ExtractionSnapshot) error {
	if snap == nil {
		return nil
	}
	if math.IsNaN(snap.Confidence) || snap.Confidence < 0 || snap.Confidence > 1 {
		return eris.Wrapf(ErrMalformedSnapshot, "confidence %v outside [0,1]", snap.Confidence)
	}
	if snap.PageCount < 0 {
		return eris.Wrapf(ErrMalformedSnapshot, "page count %d is negative", snap.PageCount)
	}
	for i, t := range snap.Tables {
		if t.RowCount < 0 || t.ColumnCount < 0 {
			return eris.Wrapf(ErrMalformedSnapshot, "table %d has negative dimensions", i)
		}
	}
	return nil
}

func structureScore(snap *model.ExtractionSnapshot, reasons *[]string) float64 {
	var score float64
	switch n := len(snap.Tables); {
	case n == 0:
		score = noTablesPenalty
	case n == 1:
		score = singleTablePenalty
	case n <= 3:
		score = fewTablesPenalty
	default:
		score = manyTablesPenalty
		*reasons = append(*reasons, fmt.Sprintf("Complex table structure (%d tables)", n))
	}

	pages := snap.Pages()
	score += math.Min(float64(pages-1)*perExtraPagePenalty, maxPagePenalty)
	if pages > 2 {
		*reasons = append(*reasons, fmt.Sprintf("Multi-page document (%d pages)", pages))
	}

	return clamp(score)
}

func qualityScore(snap *model.ExtractionSnapshot, reasons *[]string) float64 {
	var score float64
	c := snap.Confidence
	switch {
	case c < lowConfidence:
		score = lowConfidencePenalty
		*reasons = append(*reasons, fmt.Sprintf("Low extraction confidence (%.0f%%)", c*100))
	case c < moderateConfidence:
		score = moderateConfidencePenal
		*reasons = append(*reasons, fmt.Sprintf("Moderate extraction confidence (%.0f%%)", c*100))
	case c < highConfidence:
		score = highConfidencePenalty
	}

	if n := utf8.RuneCountInString(snap.Content); n < shortContentChars {
		score += shortContentPenalty
		*reasons = append(*reasons, fmt.Sprintf("Limited text content (%d characters)", n))
	}

	return clamp(score)
}

func (a *Analyzer) completenessScore(snap *model.ExtractionSnapshot, reasons *[]string) float64 {
	kvText := snap.KeyValueText()

	missing := 0
	for _, f := range a.standardFields {
		if snap.HasField(f) {
			continue
		}
		if kvText != "" && strings.Contains(kvText, strings.ToLower(f)) {
			continue
		}
		missing++
	}

	var score float64
	switch {
	case missing >= 4:
		score = manyMissingPenalty
		*reasons = append(*reasons, fmt.Sprintf("Missing %d standard fields", missing))
	case missing >= 2:
		score = someMissingPenalty
	case missing == 1:
		score = oneMissingPenalty
	}

	return clamp(score)
}

func (a *Analyzer) standardizationScore(snap *model.ExtractionSnapshot, meta model.DocumentMetadata, reasons *[]string) float64 {
	lower := cases.Lower(language.Und)
	haystack := lower.String(norm.NFKC.String(snap.Content)) + " " + lower.String(meta.Vendor())

	score := standardizationBaseline
	for _, v := range a.vendors {
		if v.re.MatchString(haystack) {
			score = math.Max(0, score-knownVendorCredit)
			*reasons = append(*reasons, fmt.Sprintf("Known vendor format detected (%s)", v.name))
			return clamp(score)
		}
	}

	score += unknownVendorPenalty
	*reasons = append(*reasons, "Unknown vendor format")
	return clamp(score)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(v, SubScoreCap))
}

func spread(vals ...float64) float64 {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}
