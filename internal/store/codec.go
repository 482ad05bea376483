package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docrouter/internal/model"
)

func toRow(o *model.RoutingOutcome) (outcomeRow, error) {
	if o == nil {
		return outcomeRow{}, eris.New("store: nil outcome")
	}
	if o.ID == "" || o.DocumentID == "" {
		return outcomeRow{}, eris.New("store: outcome id and document id are required")
	}

	row := outcomeRow{
		ID:             o.ID,
		DocumentID:     o.DocumentID,
		Mode:           string(o.ProcessingMode),
		FallbackUsed:   o.FallbackUsed,
		ProcessingSecs: o.ProcessingTimeSeconds,
		CreatedAt:      o.Timestamp.UTC(),
	}

	if o.Assessment != nil {
		row.Score = o.Assessment.Score
		row.Level = string(o.Assessment.Level)
		b, err := json.Marshal(o.Assessment)
		if err != nil {
			return outcomeRow{}, eris.Wrap(err, "store: marshal assessment")
		}
		row.Assessment = b
	}
	if o.Result != nil {
		row.Confidence = o.Result.Confidence
		b, err := json.Marshal(o.Result)
		if err != nil {
			return outcomeRow{}, eris.Wrap(err, "store: marshal result")
		}
		row.Result = b
	}
	return row, nil
}

func fromRow(row outcomeRow) (*model.RoutingOutcome, error) {
	o := &model.RoutingOutcome{
		ID:                    row.ID,
		DocumentID:            row.DocumentID,
		ProcessingMode:        model.ProcessingMode(row.Mode),
		ProcessingTimeSeconds: row.ProcessingSecs,
		FallbackUsed:          row.FallbackUsed,
		Timestamp:             row.CreatedAt.UTC(),
	}
	if len(row.Assessment) > 0 {
		o.Assessment = &model.ComplexityAssessment{}
		if err := json.Unmarshal(row.Assessment, o.Assessment); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal assessment %s", row.ID)
		}
	}
	if len(row.Result) > 0 {
		o.Result = &model.ProcessingResult{}
		if err := json.Unmarshal(row.Result, o.Result); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal result %s", row.ID)
		}
	}
	return o, nil
}
