package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/equinor/interface-tools/pkg/dataframe"
)

// fakeRegistry keeps dataset blobs in memory.
type fakeRegistry struct {
	blobs    map[string][]byte
	formats  map[string]string
	versions map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		blobs:    make(map[string][]byte),
		formats:  make(map[string]string),
		versions: make(map[string]int),
	}
}

func (f *fakeRegistry) RegisterDataset(name, fromFile, format string) (int, error) {
	data, err := os.ReadFile(fromFile)
	if err != nil {
		return 0, err
	}
	f.blobs[name] = data
	f.formats[name] = format
	f.versions[name]++
	return f.versions[name], nil
}

func (f *fakeRegistry) OpenDataset(name string) (io.ReadCloser, string, error) {
	data, ok := f.blobs[name]
	if !ok {
		return nil, "", fmt.Errorf("dataset %q: %w", name, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), f.formats[name], nil
}

func connectTo(reg DatasetRegistry) ConnectFunc {
	return func() (DatasetRegistry, error) { return reg, nil }
}

func TestDatasetSaveLoadRoundTrip(t *testing.T) {
	reg := newFakeRegistry()
	store := NewDatasetStore(connectTo(reg))
	cfg := Config{StorageType: StorageRemoteDataset, FileType: FileGob, Name: "bundle"}

	content := map[string]any{"threshold": 0.9}
	if err := store.Save(content, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if reg.formats["bundle"] != FormatGob {
		t.Errorf("expected gob format, got %q", reg.formats["bundle"])
	}

	loaded, err := store.Load(cfg)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, ok := loaded.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", loaded)
	}
	if got["threshold"] != 0.9 {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestDatasetLoadCSVYieldsTable(t *testing.T) {
	reg := newFakeRegistry()
	reg.blobs["scores"] = []byte("name,score\nalpha,0.5\n")
	reg.formats["scores"] = FormatCSV

	store := NewDatasetStore(connectTo(reg))
	loaded, err := store.Load(Config{StorageType: StorageRemoteDataset, Name: "scores"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	table, ok := loaded.(*dataframe.Table)
	if !ok {
		t.Fatalf("expected *dataframe.Table, got %T", loaded)
	}
	if table.NumRows() != 1 || table.Cells[0][0] != "alpha" {
		t.Errorf("unexpected table: %v", table)
	}
}

func TestDatasetLoadUnknownFormatYieldsBytes(t *testing.T) {
	reg := newFakeRegistry()
	reg.blobs["raw"] = []byte("payload")
	reg.formats["raw"] = "bin"

	store := NewDatasetStore(connectTo(reg))
	loaded, err := store.Load(Config{StorageType: StorageRemoteDataset, Name: "raw"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded.([]byte)) != "payload" {
		t.Errorf("unexpected content: %v", loaded)
	}
}

func TestDatasetSaveRequiresGob(t *testing.T) {
	store := NewDatasetStore(connectTo(newFakeRegistry()))
	cfg := Config{StorageType: StorageRemoteDataset, FileType: FileDataframe, Name: "x"}

	var typeErr *UnsupportedFileTypeError
	if err := store.Save(nil, cfg); !errors.As(err, &typeErr) {
		t.Fatalf("expected UnsupportedFileTypeError, got %v", err)
	}
}

func TestDatasetSaveBumpsVersion(t *testing.T) {
	reg := newFakeRegistry()
	store := NewDatasetStore(connectTo(reg))
	cfg := Config{StorageType: StorageRemoteDataset, FileType: FileGob, Name: "bundle"}

	for i := 0; i < 2; i++ {
		if err := store.Save(map[string]any{"i": i}, cfg); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}
	if reg.versions["bundle"] != 2 {
		t.Errorf("expected version 2, got %d", reg.versions["bundle"])
	}
}

func TestDatasetConnectsLazilyAndOnce(t *testing.T) {
	reg := newFakeRegistry()
	reg.blobs["raw"] = []byte("x")
	reg.formats["raw"] = "bin"

	calls := 0
	store := NewDatasetStore(func() (DatasetRegistry, error) {
		calls++
		return reg, nil
	})
	if calls != 0 {
		t.Fatalf("connect called before first use")
	}

	cfg := Config{StorageType: StorageRemoteDataset, Name: "raw"}
	for i := 0; i < 3; i++ {
		if _, err := store.Load(cfg); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("connect called %d times, want 1", calls)
	}
}

func TestDatasetWithoutConnection(t *testing.T) {
	store := NewDatasetStore(nil)
	if _, err := store.Load(Config{Name: "x"}); err == nil {
		t.Error("expected error without a configured connection")
	}
}

func TestDatasetConnectErrorPropagates(t *testing.T) {
	wantErr := fmt.Errorf("registry unavailable")
	store := NewDatasetStore(func() (DatasetRegistry, error) { return nil, wantErr })
	if _, err := store.Load(Config{Name: "x"}); !errors.Is(err, wantErr) {
		t.Errorf("expected connect error, got %v", err)
	}
}
