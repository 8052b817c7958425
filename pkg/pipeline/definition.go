// Package pipeline defines pipeline configuration files, the table
// scoring runner, and scheduled retraining submissions.
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/equinor/interface-tools/pkg/artifact"
)

// StageConfig describes one pipeline stage and the artifacts it reads and writes
type StageConfig struct {
	Name    string            `yaml:"name"`
	Inputs  []artifact.Config `yaml:"inputs,omitempty"`
	Outputs []artifact.Config `yaml:"outputs,omitempty"`
	Params  map[string]any    `yaml:"params,omitempty"`
}

// Definition is a parsed pipeline configuration file
type Definition struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Enabled     bool          `yaml:"enabled"`
	// Schedule is a cron expression for automatic retraining; empty
	// disables scheduling.
	Schedule string        `yaml:"schedule,omitempty"`
	Stages   []StageConfig `yaml:"stages"`
}

// ParseDefinition reads and validates a pipeline definition from a YAML file
func ParseDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pipeline config: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition for structural problems
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline %q has no stages", d.Name)
	}
	for _, stage := range d.Stages {
		if stage.Name == "" {
			return fmt.Errorf("pipeline %q has a stage without a name", d.Name)
		}
		for _, cfg := range append(append([]artifact.Config{}, stage.Inputs...), stage.Outputs...) {
			if cfg.Name == "" {
				return fmt.Errorf("stage %q has an artifact without a name", stage.Name)
			}
			switch cfg.StorageType {
			case artifact.StorageLocal, artifact.StorageRemoteDataset, artifact.StorageRemoteFileshare:
			default:
				return fmt.Errorf("stage %q artifact %q: storage type of value %q not supported",
					stage.Name, cfg.Name, string(cfg.StorageType))
			}
		}
	}
	return nil
}
