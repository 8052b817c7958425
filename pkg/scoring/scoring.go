// Package scoring is the deployed-model entry point: it loads the
// artifact bundle once at startup and serves predictions through the
// table runner.
package scoring

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/equinor/interface-tools/pkg/artifact"
	"github.com/equinor/interface-tools/pkg/logging"
	"github.com/equinor/interface-tools/pkg/pipeline"
)

const (
	// ModelDirEnv points at the directory holding the deployed model bundle
	ModelDirEnv = "MODEL_DIR"

	modelFileName = "model"
)

// Service serves predictions from a loaded artifact bundle
type Service struct {
	artifacts map[string]any
	runner    *pipeline.TableRunner
	log       *logging.Logger
}

// New creates an uninitialized scoring service around the scoring
// function. columns fixes the input record column order.
func New(run pipeline.ScoreFunc, columns []string) *Service {
	return &Service{
		runner: pipeline.NewTableRunner(run, columns),
		log:    logging.Default().WithComponent("scoring"),
	}
}

// Init loads the artifact bundle from the model directory named by the
// MODEL_DIR environment variable. It must be called once before Run.
func (s *Service) Init() error {
	dir := os.Getenv(ModelDirEnv)
	if dir == "" {
		return fmt.Errorf("model path environment variable %s is not set", ModelDirEnv)
	}

	handler := artifact.NewHandler(nil)
	cfg := artifact.Config{
		StorageType: artifact.StorageLocal,
		FileType:    artifact.FileGob,
		Name:        modelFileName,
	}
	content, err := handler.Load(cfg, dir)
	if err != nil {
		return fmt.Errorf("failed to load model bundle from %s: %w", filepath.Join(dir, modelFileName), err)
	}
	bundle, ok := content.(map[string]any)
	if !ok {
		return fmt.Errorf("model bundle must be a map[string]any, got %T", content)
	}

	s.artifacts = bundle
	s.log.Info("model has been loaded successfully", logging.String("dir", dir))
	return nil
}

// Run scores one JSON payload of records
func (s *Service) Run(payload []byte) ([]map[string]any, error) {
	if s.artifacts == nil {
		return nil, fmt.Errorf("scoring service is not initialized")
	}
	return s.runner.Run(s.artifacts, payload)
}
