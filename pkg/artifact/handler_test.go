package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHandlerDispatchesLocal(t *testing.T) {
	h := NewHandler(nil)
	dir := t.TempDir()
	cfg := Config{StorageType: StorageLocal, FileType: FileJSON, Name: "report"}

	if err := h.Save(map[string]any{"ok": true}, cfg, dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := h.Load(cfg, dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.(map[string]any)["ok"] != true {
		t.Errorf("unexpected content: %v", loaded)
	}
}

func TestHandlerFileshareNotImplemented(t *testing.T) {
	h := NewHandler(nil)
	cfg := Config{StorageType: StorageRemoteFileshare, FileType: FileGob, Name: "x"}

	if err := h.Save(nil, cfg, ""); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Save: expected ErrNotImplemented, got %v", err)
	}
	if _, err := h.Load(cfg, ""); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("Load: expected ErrNotImplemented, got %v", err)
	}
	if err := h.SaveFunc(cfg, "", nil); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("SaveFunc: expected ErrNotImplemented, got %v", err)
	}
	if _, err := h.LoadFunc(cfg, "", nil); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("LoadFunc: expected ErrNotImplemented, got %v", err)
	}
}

func TestHandlerUnknownStorageType(t *testing.T) {
	h := NewHandler(nil)
	cfg := Config{StorageType: StorageType("s3"), FileType: FileGob, Name: "x"}

	var cfgErr *InvalidConfigError
	err := h.Save(nil, cfg, "")
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected InvalidConfigError, got %v", err)
	}
	// The offending value has to show up in the message.
	want := `storage type of value "s3" not supported`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if _, err := h.Load(cfg, ""); !errors.As(err, &cfgErr) {
		t.Errorf("Load: expected InvalidConfigError, got %v", err)
	}
}

func TestHandlerSaveFuncRemoteRejected(t *testing.T) {
	h := NewHandler(nil)
	cfg := Config{StorageType: StorageRemoteDataset, Name: "x"}

	var argErr *InvalidArgumentsError
	err := h.SaveFunc(cfg, "base", func(path string) error { return nil })
	if !errors.As(err, &argErr) {
		t.Fatalf("expected InvalidArgumentsError, got %v", err)
	}
}

func TestHandlerFuncRequiresArguments(t *testing.T) {
	h := NewHandler(nil)
	cfg := Config{StorageType: StorageLocal, Name: "x"}

	var argErr *InvalidArgumentsError
	if err := h.SaveFunc(cfg, "", func(path string) error { return nil }); !errors.As(err, &argErr) {
		t.Errorf("SaveFunc without base path: expected InvalidArgumentsError, got %v", err)
	}
	if err := h.SaveFunc(cfg, "base", nil); !errors.As(err, &argErr) {
		t.Errorf("SaveFunc without callback: expected InvalidArgumentsError, got %v", err)
	}
	if _, err := h.LoadFunc(cfg, "", func(path string) (any, error) { return nil, nil }); !errors.As(err, &argErr) {
		t.Errorf("LoadFunc without base path: expected InvalidArgumentsError, got %v", err)
	}
	if _, err := h.LoadFunc(cfg, "base", nil); !errors.As(err, &argErr) {
		t.Errorf("LoadFunc without callback: expected InvalidArgumentsError, got %v", err)
	}
}

// Saving through the fixed serializer and through an equivalent callback
// must resolve to the same directory layout.
func TestHandlerFuncPathsMatchTypedPaths(t *testing.T) {
	h := NewHandler(nil)
	dir := t.TempDir()

	typed := Config{StorageType: StorageLocal, FileType: FileJSON, Name: "report", RelativePath: "outputs"}
	if err := h.Save(map[string]any{}, typed, dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var got string
	cb := Config{StorageType: StorageLocal, Name: "report.json", RelativePath: "outputs"}
	err := h.SaveFunc(cb, dir, func(path string) error {
		got = path
		return nil
	})
	if err != nil {
		t.Fatalf("SaveFunc failed: %v", err)
	}

	want := filepath.Join(dir, "outputs", "report.json")
	if got != want {
		t.Errorf("callback path %q, want %q", got, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("typed save did not produce %s: %v", want, err)
	}
}
