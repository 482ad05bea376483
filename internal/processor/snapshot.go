package processor

import (
	"github.com/sells-group/docrouter/internal/model"
	"github.com/sells-group/docrouter/pkg/docintel"
)

// SnapshotFromResult converts an analyze result into the extraction snapshot
// the complexity analyzer scores. Typed fields of the first recognized
// document are copied under their canonical keys.
func SnapshotFromResult(res *docintel.AnalyzeResult) *model.ExtractionSnapshot {
	if res == nil {
		return nil
	}

	snap := &model.ExtractionSnapshot{
		Content:    res.Content,
		PageCount:  len(res.Pages),
		Confidence: clamp01(res.Confidence()),
	}

	for _, t := range res.Tables {
		snap.Tables = append(snap.Tables, model.Table{RowCount: t.RowCount, ColumnCount: t.ColumnCount})
	}

	for _, kv := range res.KeyValuePairs {
		if kv.Key == nil {
			continue
		}
		pair := model.KeyValuePair{Key: kv.Key.Content, Confidence: kv.Confidence}
		if kv.Value != nil {
			pair.Value = kv.Value.Content
		}
		snap.KeyValuePairs = append(snap.KeyValuePairs, pair)
	}

	if len(res.Documents) > 0 {
		snap.Fields = make(map[string]any, len(res.Documents[0].Fields))
		for name, f := range res.Documents[0].Fields {
			if v := f.Value(); v != nil {
				snap.Fields[CanonicalField(name)] = v
			}
		}
	}

	return snap
}
