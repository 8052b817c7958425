package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/equinor/interface-tools/pkg/artifact"
)

const samplePipeline = `
name: forecast
description: daily anomaly forecast
enabled: true
schedule: "0 3 * * *"
stages:
  - name: prepare
    inputs:
      - storage_type: remote_dataset
        file_type: dataframe
        name: raw-readings
    outputs:
      - storage_type: local
        file_type: dataframe
        name: features
        relative_path: outputs
  - name: train
    inputs:
      - storage_type: local
        file_type: dataframe
        name: features
        relative_path: outputs
    outputs:
      - storage_type: remote_dataset
        file_type: gob
        name: model-bundle
    params:
      epochs: 20
`

func TestParseDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(samplePipeline), 0644); err != nil {
		t.Fatalf("failed to write pipeline file: %v", err)
	}

	def, err := ParseDefinition(path)
	if err != nil {
		t.Fatalf("ParseDefinition failed: %v", err)
	}
	if def.Name != "forecast" || !def.Enabled || def.Schedule != "0 3 * * *" {
		t.Errorf("unexpected header: %+v", def)
	}
	if len(def.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(def.Stages))
	}

	prepare := def.Stages[0]
	if prepare.Inputs[0].StorageType != artifact.StorageRemoteDataset {
		t.Errorf("unexpected input storage: %q", prepare.Inputs[0].StorageType)
	}
	if prepare.Outputs[0].RelativePath != "outputs" {
		t.Errorf("unexpected output path: %q", prepare.Outputs[0].RelativePath)
	}
	if def.Stages[1].Params["epochs"] != 20 {
		t.Errorf("unexpected params: %v", def.Stages[1].Params)
	}
}

func TestParseDefinitionMissingFile(t *testing.T) {
	if _, err := ParseDefinition(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Definition {
		return &Definition{
			Name: "forecast",
			Stages: []StageConfig{
				{
					Name:    "prepare",
					Outputs: []artifact.Config{{StorageType: artifact.StorageLocal, Name: "features"}},
				},
			},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"missing name", func(d *Definition) { d.Name = "" }},
		{"no stages", func(d *Definition) { d.Stages = nil }},
		{"unnamed stage", func(d *Definition) { d.Stages[0].Name = "" }},
		{"unnamed artifact", func(d *Definition) { d.Stages[0].Outputs[0].Name = "" }},
		{"unknown storage type", func(d *Definition) { d.Stages[0].Outputs[0].StorageType = "s3" }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := valid()
			tc.mutate(def)
			if err := def.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
