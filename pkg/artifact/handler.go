package artifact

// Handler routes save and load calls to the backend named by the
// configuration's storage type. It holds no state of its own beyond the
// two backend values; artifacts are never retained between calls.
type Handler struct {
	local   *LocalStore
	dataset *DatasetStore
}

// NewHandler creates a handler. The connect function establishes the
// remote dataset registry connection and is only invoked when a
// remote_dataset config is first used; pass nil for local-only use.
func NewHandler(connect ConnectFunc) *Handler {
	return &Handler{
		local:   NewLocalStore(),
		dataset: NewDatasetStore(connect),
	}
}

// Save persists content according to cfg. For local storage the artifact
// is written under basePath; the remote dataset backend resolves names
// through its own registry and ignores basePath.
func (h *Handler) Save(content any, cfg Config, basePath string) error {
	switch cfg.StorageType {
	case StorageLocal:
		return h.local.Save(content, cfg, basePath)
	case StorageRemoteDataset:
		return h.dataset.Save(content, cfg)
	case StorageRemoteFileshare:
		return ErrNotImplemented
	default:
		return &InvalidConfigError{StorageType: cfg.StorageType}
	}
}

// Load retrieves the artifact described by cfg
func (h *Handler) Load(cfg Config, basePath string) (any, error) {
	switch cfg.StorageType {
	case StorageLocal:
		return h.local.Load(cfg, basePath)
	case StorageRemoteDataset:
		return h.dataset.Load(cfg)
	case StorageRemoteFileshare:
		return nil, ErrNotImplemented
	default:
		return nil, &InvalidConfigError{StorageType: cfg.StorageType}
	}
}

// SaveFunc persists an artifact through a caller-supplied write callback
// instead of a fixed file type. The callback receives the fully resolved
// file path (directory created, name appended, no extension). Only local
// storage supports callback-mode saves.
func (h *Handler) SaveFunc(cfg Config, basePath string, save func(path string) error) error {
	switch cfg.StorageType {
	case StorageLocal:
		if basePath == "" || save == nil {
			return &InvalidArgumentsError{Reason: "base path and save callback are required for local saves"}
		}
		return h.local.SaveFunc(cfg, basePath, save)
	case StorageRemoteDataset:
		return &InvalidArgumentsError{Reason: "saving to the dataset registry is not supported in callback mode"}
	case StorageRemoteFileshare:
		return ErrNotImplemented
	default:
		return &InvalidConfigError{StorageType: cfg.StorageType}
	}
}

// LoadFunc retrieves an artifact through a caller-supplied read callback.
// Remote dataset configs are forwarded to the dataset backend and the
// callback is not used.
func (h *Handler) LoadFunc(cfg Config, basePath string, load func(path string) (any, error)) (any, error) {
	switch cfg.StorageType {
	case StorageLocal:
		if basePath == "" || load == nil {
			return nil, &InvalidArgumentsError{Reason: "base path and load callback are required for local loads"}
		}
		return h.local.LoadFunc(cfg, basePath, load)
	case StorageRemoteDataset:
		return h.dataset.Load(cfg)
	case StorageRemoteFileshare:
		return nil, ErrNotImplemented
	default:
		return nil, &InvalidConfigError{StorageType: cfg.StorageType}
	}
}
