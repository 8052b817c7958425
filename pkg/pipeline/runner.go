package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/equinor/interface-tools/pkg/dataframe"
	"github.com/equinor/interface-tools/pkg/logging"
)

// ScoreFunc produces predictions for the input table using the loaded
// artifact bundle.
type ScoreFunc func(artifacts map[string]any, table *dataframe.Table) (*dataframe.Table, error)

// TableRunner adapts a scoring function to the JSON record protocol used
// by deployed services: a JSON array of records in, a list of records
// out. Time cells are flattened to strings and non-finite floats replaced
// by their string names so the output always JSON-encodes cleanly.
type TableRunner struct {
	run     ScoreFunc
	columns []string
	log     *logging.Logger
}

// NewTableRunner creates a runner around the scoring function. columns
// fixes the column order of decoded input records.
func NewTableRunner(run ScoreFunc, columns []string) *TableRunner {
	return &TableRunner{
		run:     run,
		columns: columns,
		log:     logging.Default().WithComponent("pipeline/runner"),
	}
}

// Run scores one JSON payload
func (r *TableRunner) Run(artifacts map[string]any, payload []byte) ([]map[string]any, error) {
	table, err := dataframe.FromJSONRecords(payload, r.columns)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input records: %w", err)
	}
	r.log.Info("prediction requested", logging.Int("rows", table.NumRows()))

	out, err := r.run(artifacts, table)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	out = out.TimeColumnsToString().NormalizeNonFinite()
	records := out.Records()

	// The output must survive a JSON round trip; encoding here surfaces
	// unencodable cells at the caller with a useful error.
	if _, err := json.Marshal(records); err != nil {
		return nil, fmt.Errorf("failed to encode output records: %w", err)
	}
	return records, nil
}
