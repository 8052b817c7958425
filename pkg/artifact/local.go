package artifact

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/equinor/interface-tools/pkg/dataframe"
	"github.com/equinor/interface-tools/pkg/logging"
)

// LocalStore writes and reads named artifacts under a directory, one file
// per artifact named {name}.{ext}. The target directory is created on
// save if absent. Writes are not atomic.
type LocalStore struct {
	log *logging.Logger
}

// NewLocalStore creates a local filesystem backend
func NewLocalStore() *LocalStore {
	return &LocalStore{log: logging.Default().WithComponent("artifact/local")}
}

// Save serializes content with the serializer named by cfg.FileType and
// writes it to the resolved directory.
func (s *LocalStore) Save(content any, cfg Config, basePath string) error {
	dir, err := s.resolveDir(cfg, basePath)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", cfg.Name, cfg.FileType.Ext()))

	switch cfg.FileType {
	case FileDataframe:
		return s.saveDataframe(content, path)
	case FileTable:
		return s.saveTable(content, path)
	case FileGob:
		return s.saveGob(content, path)
	case FileJSON:
		return s.saveJSON(content, path)
	case FileMatrix:
		return s.saveMatrix(content, path)
	case FileHTML:
		return s.saveBytes(content, path)
	case FilePNG:
		return s.saveBytes(content, path)
	case FileFigure:
		return s.saveFigure(content, path)
	default:
		return &UnsupportedFileTypeError{FileType: cfg.FileType}
	}
}

// Load reads and deserializes the artifact named by cfg. HTML, PNG and
// figure artifacts are write-only.
func (s *LocalStore) Load(cfg Config, basePath string) (any, error) {
	dir := basePath
	if cfg.RelativePath != "" {
		dir = filepath.Join(basePath, cfg.RelativePath)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", cfg.Name, cfg.FileType.Ext()))

	switch cfg.FileType {
	case FileDataframe:
		return s.loadDataframe(path)
	case FileTable:
		return s.loadTable(path)
	case FileGob:
		return s.loadGob(path)
	case FileJSON:
		return s.loadJSON(path)
	case FileMatrix:
		return s.loadMatrix(path)
	default:
		return nil, &UnsupportedFileTypeError{FileType: cfg.FileType}
	}
}

// SaveFunc resolves the target path for cfg and hands it to the callback
func (s *LocalStore) SaveFunc(cfg Config, basePath string, save func(path string) error) error {
	dir, err := s.resolveDir(cfg, basePath)
	if err != nil {
		return err
	}
	return save(filepath.Join(dir, cfg.Name))
}

// LoadFunc resolves the source path for cfg and hands it to the callback
func (s *LocalStore) LoadFunc(cfg Config, basePath string, load func(path string) (any, error)) (any, error) {
	dir := basePath
	if cfg.RelativePath != "" {
		dir = filepath.Join(basePath, cfg.RelativePath)
	}
	return load(filepath.Join(dir, cfg.Name))
}

func (s *LocalStore) resolveDir(cfg Config, basePath string) (string, error) {
	dir := basePath
	if cfg.RelativePath != "" {
		dir = filepath.Join(basePath, cfg.RelativePath)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create working dir %s: %w", dir, err)
		}
		s.log.Info("created working dir", logging.String("path", dir))
	}
	return dir, nil
}

func (s *LocalStore) saveDataframe(content any, path string) error {
	table, ok := content.(*dataframe.Table)
	if !ok {
		return fmt.Errorf("dataframe artifact must be a *dataframe.Table, got %T", content)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()
	if err := table.WriteCSV(file); err != nil {
		return fmt.Errorf("failed to write dataframe to %s: %w", path, err)
	}
	s.log.Info("saved dataframe", logging.String("path", path), logging.Int("rows", table.NumRows()))
	return nil
}

func (s *LocalStore) loadDataframe(path string) (any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	table, err := dataframe.ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataframe from %s: %w", path, err)
	}
	s.log.Info("loaded dataframe", logging.String("path", path), logging.Int("rows", table.NumRows()))
	return table, nil
}

func (s *LocalStore) saveTable(content any, path string) error {
	table, ok := content.(*dataframe.Table)
	if !ok {
		return fmt.Errorf("table artifact must be a *dataframe.Table, got %T", content)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()
	if err := table.WriteGob(file); err != nil {
		return fmt.Errorf("failed to write table to %s: %w", path, err)
	}
	s.log.Info("saved table", logging.String("path", path), logging.Int("rows", table.NumRows()))
	return nil
}

func (s *LocalStore) loadTable(path string) (any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	table, err := dataframe.ReadGob(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read table from %s: %w", path, err)
	}
	return table, nil
}

func (s *LocalStore) saveGob(content any, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()
	if err := gob.NewEncoder(file).Encode(&content); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	s.log.Info("saved gob artifact", logging.String("path", path))
	return nil
}

func (s *LocalStore) loadGob(path string) (any, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	var content any
	if err := gob.NewDecoder(file).Decode(&content); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	s.log.Info("loaded gob artifact", logging.String("path", path))
	return content, nil
}

func (s *LocalStore) saveJSON(content any, path string) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.log.Info("saved JSON", logging.String("path", path))
	return nil
}

func (s *LocalStore) loadJSON(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var content any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return content, nil
}

func (s *LocalStore) saveMatrix(content any, path string) error {
	m, ok := content.(*mat.Dense)
	if !ok {
		return fmt.Errorf("matrix artifact must be a *mat.Dense, got %T", content)
	}
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal matrix for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	rows, _ := m.Dims()
	s.log.Info("saved matrix", logging.String("path", path), logging.Int("rows", rows))
	return nil
}

func (s *LocalStore) loadMatrix(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matrix from %s: %w", path, err)
	}
	rows, _ := m.Dims()
	s.log.Info("loaded matrix", logging.String("path", path), logging.Int("rows", rows))
	return &m, nil
}

func (s *LocalStore) saveBytes(content any, path string) error {
	var data []byte
	switch v := content.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("raw artifact must be a []byte or string, got %T", content)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) saveFigure(content any, path string) error {
	fig, ok := content.(Figure)
	if !ok {
		return fmt.Errorf("figure artifact must implement artifact.Figure, got %T", content)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()
	if err := fig.WritePNG(file); err != nil {
		return fmt.Errorf("failed to render figure to %s: %w", path, err)
	}
	return nil
}
