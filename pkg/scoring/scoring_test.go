package scoring

import (
	"testing"

	"github.com/equinor/interface-tools/pkg/artifact"
	"github.com/equinor/interface-tools/pkg/dataframe"
)

func thresholdScorer(artifacts map[string]any, table *dataframe.Table) (*dataframe.Table, error) {
	threshold := artifacts["threshold"].(float64)
	out := dataframe.New("name", "anomaly")
	for _, record := range table.Records() {
		out.Append(record["name"], record["score"].(float64) > threshold)
	}
	return out, nil
}

func writeBundle(t *testing.T, bundle map[string]any) string {
	t.Helper()
	dir := t.TempDir()
	handler := artifact.NewHandler(nil)
	cfg := artifact.Config{StorageType: artifact.StorageLocal, FileType: artifact.FileGob, Name: "model"}
	if err := handler.Save(bundle, cfg, dir); err != nil {
		t.Fatalf("failed to write model bundle: %v", err)
	}
	return dir
}

func TestInitRequiresModelDir(t *testing.T) {
	t.Setenv(ModelDirEnv, "")
	s := New(thresholdScorer, []string{"name", "score"})
	if err := s.Init(); err == nil {
		t.Error("expected error without MODEL_DIR")
	}
}

func TestInitRejectsNonMapBundle(t *testing.T) {
	dir := t.TempDir()
	handler := artifact.NewHandler(nil)
	cfg := artifact.Config{StorageType: artifact.StorageLocal, FileType: artifact.FileGob, Name: "model"}
	if err := handler.Save("just a string", cfg, dir); err != nil {
		t.Fatalf("failed to write bundle: %v", err)
	}
	t.Setenv(ModelDirEnv, dir)

	s := New(thresholdScorer, []string{"name", "score"})
	if err := s.Init(); err == nil {
		t.Error("expected error for non-map bundle")
	}
}

func TestRunBeforeInit(t *testing.T) {
	s := New(thresholdScorer, []string{"name", "score"})
	if _, err := s.Run([]byte(`[]`)); err == nil {
		t.Error("expected error before Init")
	}
}

func TestInitAndRun(t *testing.T) {
	dir := writeBundle(t, map[string]any{"threshold": 0.5})
	t.Setenv(ModelDirEnv, dir)

	s := New(thresholdScorer, []string{"name", "score"})
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	records, err := s.Run([]byte(`[{"name":"alpha","score":0.2},{"name":"beta","score":0.9}]`))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["anomaly"] != false || records[1]["anomaly"] != true {
		t.Errorf("unexpected predictions: %v", records)
	}
}
