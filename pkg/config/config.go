// Package config locates and loads the project's configuration files.
//
// The base config (config.json) sits at or above the project root, which
// is recognized by a src/ directory. The pipeline config is a second JSON
// file pointed to by the base config's pipeline_config_file field, an
// environment variable, or an explicit option.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/equinor/interface-tools/pkg/logging"
)

const (
	baseConfigFileName = "config.json"
	sourceMarkerDir    = "src"
	// folderSearchLimit bounds the upward directory walk
	folderSearchLimit = 4

	// ConfigPathEnv overrides the pipeline config path relative to the project root
	ConfigPathEnv = "CONFIG_FILE_PATH"

	// deployEnv and deployEnvValue detect the managed deployment
	// environment, where the process starts outside the project tree and
	// the working directory has to be redirected first.
	deployEnv        = "PWD"
	deployEnvValue   = "/var/ml-app"
	deployWorkingDir = "/var/ml-app/src"
)

var (
	// ErrRootDirNotFound is returned when no directory containing src/ is
	// found within the search limit.
	ErrRootDirNotFound = errors.New("root dir was not found")

	// ErrConfigNotFound is returned when the project root was found but no
	// base config file was seen on the way there.
	ErrConfigNotFound = errors.New("config file was not found")
)

// ProjectConfig holds the two resolved configuration documents and the
// paths they came from. Relative paths in either document branch from
// RootDir.
type ProjectConfig struct {
	Base       map[string]any
	Pipeline   map[string]any
	RootDir    string
	ConfigPath string
}

// Option overrides part of the automatic resolution, primarily for tests
type Option func(*options)

type options struct {
	baseConfig     map[string]any
	pipelineConfig map[string]any
	configFilePath string
}

// WithBaseConfig uses the given document instead of reading the base config file
func WithBaseConfig(base map[string]any) Option {
	return func(o *options) { o.baseConfig = base }
}

// WithPipelineConfig uses the given document instead of reading the pipeline config file
func WithPipelineConfig(pipeline map[string]any) Option {
	return func(o *options) { o.pipelineConfig = pipeline }
}

// WithConfigFilePath reads the pipeline config from the given path,
// relative to the project root. The environment variable override still
// takes precedence.
func WithConfigFilePath(path string) Option {
	return func(o *options) { o.configFilePath = path }
}

// FindProjectPaths searches upward from the working directory for the
// project root and the base config file. The first directory containing a
// src/ entry is the root; the base config file closest to the root wins.
// In the managed deployment environment the working directory is
// redirected to the deployed source tree first.
func FindProjectPaths() (rootDir string, configPath string, err error) {
	if os.Getenv(deployEnv) == deployEnvValue {
		if err := os.Chdir(deployWorkingDir); err != nil {
			return "", "", fmt.Errorf("failed to enter deploy dir %s: %w", deployWorkingDir, err)
		}
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working dir: %w", err)
	}

	for level := 0; level < folderSearchLimit; level++ {
		candidate := filepath.Join(dir, baseConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			configPath = candidate
		}

		if info, err := os.Stat(filepath.Join(dir, sourceMarkerDir)); err == nil && info.IsDir() {
			if configPath == "" {
				return "", "", fmt.Errorf("%w: %s not found at or below %s", ErrConfigNotFound, baseConfigFileName, dir)
			}
			return dir, configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", ErrRootDirNotFound
}

// GetPipelineConfig resolves and loads the base and pipeline configs.
//
// The pipeline config path is taken from the CONFIG_FILE_PATH environment
// variable if set, then from WithConfigFilePath, then from the base
// config's pipeline_config_file field. Documents supplied via options are
// used verbatim and skip file reads.
func GetPipelineConfig(opts ...Option) (*ProjectConfig, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rootDir, configPath, err := FindProjectPaths()
	if err != nil {
		return nil, err
	}

	cfg := &ProjectConfig{RootDir: rootDir, ConfigPath: configPath}
	log := logging.Default().WithComponent("config")

	if o.baseConfig != nil {
		cfg.Base = o.baseConfig
	} else {
		base, err := readJSONFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg.Base = base
	}

	if o.pipelineConfig != nil {
		cfg.Pipeline = o.pipelineConfig
		return cfg, nil
	}

	relativePath, err := pipelineConfigPath(cfg.Base, o.configFilePath)
	if err != nil {
		return nil, err
	}
	pipelinePath := filepath.Join(rootDir, relativePath)
	pipeline, err := readJSONFile(pipelinePath)
	if err != nil {
		return nil, err
	}
	cfg.Pipeline = pipeline
	log.Info("loaded pipeline config", logging.String("path", pipelinePath))
	return cfg, nil
}

func pipelineConfigPath(base map[string]any, override string) (string, error) {
	if env := os.Getenv(ConfigPathEnv); env != "" {
		return env, nil
	}
	if override != "" {
		return override, nil
	}
	field, ok := base["pipeline_config_file"]
	if !ok {
		return "", fmt.Errorf("%w: base config has no pipeline_config_file field", ErrConfigNotFound)
	}
	path, ok := field.(string)
	if !ok || path == "" {
		return "", fmt.Errorf("%w: pipeline_config_file must be a non-empty string", ErrConfigNotFound)
	}
	return path, nil
}

func readJSONFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return doc, nil
}
