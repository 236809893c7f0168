package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kilianp07/porttrack/core/model"
)

// DecodeBatch accepts a JSON array of reports, a single report object, or a
// {"seq": n, "reports": [...]} batch.
func DecodeBatch(payload []byte) (Batch, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Batch{}, fmt.Errorf("empty payload")
	}
	if trimmed[0] == '[' {
		var reports []model.Report
		if err := json.Unmarshal(trimmed, &reports); err != nil {
			return Batch{}, err
		}
		return Batch{Reports: reports}, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Batch{}, err
	}
	if _, ok := probe["reports"]; ok {
		var b Batch
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Batch{}, err
		}
		return b, nil
	}
	var r model.Report
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Batch{}, err
	}
	return Batch{Reports: []model.Report{r}}, nil
}
