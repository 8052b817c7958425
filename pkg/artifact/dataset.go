package artifact

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/equinor/interface-tools/pkg/dataframe"
	"github.com/equinor/interface-tools/pkg/logging"
)

// Dataset blob formats understood by the registry.
const (
	// FormatCSV marks a registered dataset that materializes as a table
	FormatCSV = "csv"
	// FormatGob marks a registered dataset that decodes as a gob value
	FormatGob = "gob"
)

// DatasetRegistry is the remote registry the dataset backend delegates
// to. The production implementation lives in pkg/registry; tests supply
// in-memory fakes.
type DatasetRegistry interface {
	// RegisterDataset registers the file under name and returns the new version
	RegisterDataset(name, fromFile, format string) (int, error)
	// OpenDataset opens the latest version of the named dataset
	OpenDataset(name string) (io.ReadCloser, string, error)
}

// ConnectFunc establishes the registry connection. It is called at most
// once per DatasetStore, on first use.
type ConnectFunc func() (DatasetRegistry, error)

// DatasetStore loads and saves named artifacts through the remote dataset
// registry. The connection is established lazily on first use and cached
// on the instance; concurrent first use is not safe and callers are
// expected to serialize access.
type DatasetStore struct {
	connect  ConnectFunc
	registry DatasetRegistry
	log      *logging.Logger
}

// NewDatasetStore creates a dataset registry backend. connect may be nil
// for handlers that never touch remote storage.
func NewDatasetStore(connect ConnectFunc) *DatasetStore {
	return &DatasetStore{connect: connect, log: logging.Default().WithComponent("artifact/dataset")}
}

// Load fetches the named dataset and materializes it: CSV blobs become a
// *dataframe.Table, gob blobs decode into their original value, anything
// else is returned as raw bytes.
func (s *DatasetStore) Load(cfg Config) (any, error) {
	reg, err := s.workspace()
	if err != nil {
		return nil, err
	}
	rc, format, err := reg.OpenDataset(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %q: %w", cfg.Name, err)
	}
	defer rc.Close()

	switch format {
	case FormatCSV:
		table, err := dataframe.ReadCSV(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset %q: %w", cfg.Name, err)
		}
		s.log.Info("loaded dataset", logging.String("name", cfg.Name), logging.Int("rows", table.NumRows()))
		return table, nil
	case FormatGob:
		var content any
		if err := gob.NewDecoder(rc).Decode(&content); err != nil {
			return nil, fmt.Errorf("failed to decode dataset %q: %w", cfg.Name, err)
		}
		s.log.Info("loaded dataset", logging.String("name", cfg.Name))
		return content, nil
	default:
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset %q: %w", cfg.Name, err)
		}
		return data, nil
	}
}

// Save registers content as a dataset under cfg.Name. Only gob artifacts
// are supported: the value is serialized to a temporary file, registered,
// and the temporary file is removed. The registry owns the durable copy.
func (s *DatasetStore) Save(content any, cfg Config) error {
	if cfg.FileType != FileGob {
		return &UnsupportedFileTypeError{FileType: cfg.FileType}
	}
	reg, err := s.workspace()
	if err != nil {
		return err
	}

	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.gob", cfg.Name, uuid.NewString()))
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(&content); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode dataset %q: %w", cfg.Name, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	defer os.Remove(tmp)

	version, err := reg.RegisterDataset(cfg.Name, tmp, FormatGob)
	if err != nil {
		return fmt.Errorf("failed to register dataset %q: %w", cfg.Name, err)
	}
	s.log.Info("registered dataset", logging.String("name", cfg.Name), logging.Int("version", version))
	return nil
}

// workspace returns the cached registry handle, connecting on first use.
// Not safe for concurrent first use.
func (s *DatasetStore) workspace() (DatasetRegistry, error) {
	if s.registry != nil {
		return s.registry, nil
	}
	if s.connect == nil {
		return nil, fmt.Errorf("no dataset registry connection configured")
	}
	reg, err := s.connect()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dataset registry: %w", err)
	}
	s.registry = reg
	return s.registry, nil
}
