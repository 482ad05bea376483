// Package report exports stored routing outcomes as an XLSX workbook.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/internal/router"
)

// Sheet names.
const (
	OutcomesSheet   = "Outcomes"
	StatisticsSheet = "Statistics"
)

var outcomeHeader = []string{
	"ID",
	"Document ID",
	"Timestamp",
	"Mode",
	"Fallback",
	"Complexity Score",
	"Complexity Level",
	"Recommended Mode",
	"Assessment Confidence",
	"Result Confidence",
	"Provider",
	"Processing Seconds",
	"Cost USD",
	"Reasons",
}

// WriteXLSX writes one row per outcome plus a statistics sheet derived from
// the same outcomes. Extracted fields become trailing columns, one per
// field name seen across all outcomes.
func WriteXLSX(w io.Writer, outcomes []model.RoutingOutcome) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(OutcomesSheet)
	if err != nil {
		return eris.Wrap(err, "report: add outcomes sheet")
	}

	fields := fieldNames(outcomes)
	addStrings(sheet.AddRow(), append(append([]string(nil), outcomeHeader...), fields...))

	for _, o := range outcomes {
		writeOutcome(sheet.AddRow(), o, fields)
	}

	stats, err := f.AddSheet(StatisticsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add statistics sheet")
	}
	writeStatistics(stats, Summarize(outcomes))

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// Summarize replays stored outcomes through fresh routing counters.
func Summarize(outcomes []model.RoutingOutcome) model.StatisticsSnapshot {
	stats := router.NewStatistics()
	for _, o := range outcomes {
		stats.Record(o.ProcessingMode, o.FallbackUsed)
	}
	return stats.Snapshot()
}

func writeOutcome(row *xlsx.Row, o model.RoutingOutcome, fields []string) {
	row.AddCell().SetString(o.ID)
	row.AddCell().SetString(o.DocumentID)
	row.AddCell().SetString(o.Timestamp.UTC().Format(time.RFC3339))
	row.AddCell().SetString(string(o.ProcessingMode))
	row.AddCell().SetBool(o.FallbackUsed)

	if a := o.Assessment; a != nil {
		row.AddCell().SetFloat(a.Score)
		row.AddCell().SetString(string(a.Level))
		row.AddCell().SetString(string(a.RecommendedMode))
		row.AddCell().SetFloat(a.Confidence)
	} else {
		addStrings(row, []string{"", "", "", ""})
	}

	var fieldValues map[string]any
	if r := o.Result; r != nil {
		row.AddCell().SetFloat(r.Confidence)
		row.AddCell().SetString(r.Provider)
		fieldValues = r.Fields
	} else {
		addStrings(row, []string{"", ""})
	}

	row.AddCell().SetFloat(o.ProcessingTimeSeconds)
	if o.Result != nil {
		row.AddCell().SetFloat(o.Result.Usage.Cost)
	} else {
		row.AddCell().SetString("")
	}

	var reasons []string
	if o.Assessment != nil {
		reasons = o.Assessment.Reasons
	}
	row.AddCell().SetString(strings.Join(reasons, "; "))

	for _, name := range fields {
		cell := row.AddCell()
		switch v := fieldValues[name].(type) {
		case nil:
			cell.SetString("")
		case float64:
			cell.SetFloat(v)
		case string:
			cell.SetString(v)
		default:
			cell.SetString(fmt.Sprint(v))
		}
	}
}

func writeStatistics(sheet *xlsx.Sheet, s model.StatisticsSnapshot) {
	addStrings(sheet.AddRow(), []string{"Metric", "Value"})
	for _, m := range []struct {
		name  string
		value float64
	}{
		{"Total", float64(s.Total)},
		{"Traditional", float64(s.TraditionalCount)},
		{"Multi-Agent", float64(s.MultiAgentCount)},
		{"MCP", float64(s.MCPCount)},
		{"Fallbacks", float64(s.FallbackCount)},
		{"Traditional %", s.TraditionalPct},
		{"Multi-Agent %", s.MultiAgentPct},
		{"MCP %", s.MCPPct},
		{"Fallback Rate %", s.FallbackRate},
	} {
		row := sheet.AddRow()
		row.AddCell().SetString(m.name)
		row.AddCell().SetFloat(m.value)
	}
}

func fieldNames(outcomes []model.RoutingOutcome) []string {
	seen := make(map[string]bool)
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		for k := range o.Result.Fields {
			seen[k] = true
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func addStrings(row *xlsx.Row, values []string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
