// Package registry is the workspace-side registry for datasets, models,
// runtime environments and experiment runs. It stands in for the cloud
// platform's registry service and is backed by SQLite plus a managed blob
// directory; registering a file copies it under the registry's root.
package registry

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/equinor/interface-tools/pkg/logging"
)

// ErrNotFound is returned when a named entry does not exist in the registry
var ErrNotFound = errors.New("registry entry not found")

// Run statuses recorded for experiment runs.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Dataset describes one registered dataset version
type Dataset struct {
	ID        string
	Name      string
	Version   int
	Format    string
	Path      string
	CreatedAt time.Time
}

// Model describes one registered model version
type Model struct {
	ID         string
	Name       string
	Version    int
	Path       string
	Properties map[string]string
	CreatedAt  time.Time
}

// Environment describes a registered runtime environment
type Environment struct {
	Name      string
	Image     string
	EnvVars   map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run describes one experiment run
type Run struct {
	ID         string
	Experiment string
	Status     string
	Tags       map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Metric is one logged scalar value of a run
type Metric struct {
	RunID     string
	Key       string
	Value     float64
	CreatedAt time.Time
}

// MetricRow is one logged table row of a run
type MetricRow struct {
	RunID       string
	Series      string
	Description string
	Payload     map[string]any
	CreatedAt   time.Time
}

// Registry provides SQLite-backed persistence under a root directory
type Registry struct {
	db   *sql.DB
	root string
	log  *logging.Logger
}

// Open opens (creating if necessary) a registry rooted at dir
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", filepath.Join(dir, "registry.db"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	r := &Registry{db: db, root: dir, log: logging.Default().WithComponent("registry")}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

// Close closes the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		format TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(name, version)
	);

	CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		path TEXT NOT NULL,
		properties TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(name, version)
	);

	CREATE TABLE IF NOT EXISTS environments (
		name TEXT PRIMARY KEY,
		image TEXT NOT NULL,
		env_vars TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		experiment TEXT NOT NULL,
		status TEXT NOT NULL,
		tags TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_metrics (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value REAL NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS run_rows (
		run_id TEXT NOT NULL,
		series TEXT NOT NULL,
		description TEXT,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS run_images (
		run_id TEXT NOT NULL,
		slug TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_datasets_name ON datasets(name);
	CREATE INDEX IF NOT EXISTS idx_models_name ON models(name);
	CREATE INDEX IF NOT EXISTS idx_run_metrics_run ON run_metrics(run_id);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// RegisterDataset copies fromFile into the registry's blob directory and
// records it as the next version of the named dataset.
func (r *Registry) RegisterDataset(name, fromFile, format string) (int, error) {
	version, err := r.nextVersion("datasets", name)
	if err != nil {
		return 0, err
	}

	blob := filepath.Join(r.root, "blobs", fmt.Sprintf("dataset-%s-v%d.%s", name, version, format))
	if err := copyFile(fromFile, blob); err != nil {
		return 0, fmt.Errorf("failed to copy dataset blob: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO datasets (id, name, version, format, path, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), name, version, format, blob, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert dataset: %w", err)
	}
	r.log.Info("registered dataset", logging.String("name", name), logging.Int("version", version))
	return version, nil
}

// GetDataset returns the latest version of the named dataset
func (r *Registry) GetDataset(name string) (*Dataset, error) {
	row := r.db.QueryRow(
		`SELECT id, name, version, format, path, created_at FROM datasets WHERE name = ? ORDER BY version DESC LIMIT 1`,
		name,
	)
	var d Dataset
	if err := row.Scan(&d.ID, &d.Name, &d.Version, &d.Format, &d.Path, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("dataset %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}
	return &d, nil
}

// OpenDataset opens the latest version of the named dataset's blob
func (r *Registry) OpenDataset(name string) (io.ReadCloser, string, error) {
	d, err := r.GetDataset(name)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(d.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open dataset blob: %w", err)
	}
	return file, d.Format, nil
}

// RegisterModel copies fromFile into the blob directory and records it as
// the next version of the named model.
func (r *Registry) RegisterModel(name, fromFile string, properties map[string]string) (*Model, error) {
	version, err := r.nextVersion("models", name)
	if err != nil {
		return nil, err
	}

	blob := filepath.Join(r.root, "blobs", fmt.Sprintf("model-%s-v%d.gob", name, version))
	if err := copyFile(fromFile, blob); err != nil {
		return nil, fmt.Errorf("failed to copy model blob: %w", err)
	}

	if properties == nil {
		properties = map[string]string{}
	}
	props, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}

	m := &Model{
		ID:         uuid.New().String(),
		Name:       name,
		Version:    version,
		Path:       blob,
		Properties: properties,
		CreatedAt:  time.Now().UTC(),
	}
	_, err = r.db.Exec(
		`INSERT INTO models (id, name, version, path, properties, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Version, m.Path, string(props), m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert model: %w", err)
	}
	r.log.Info("registered model", logging.String("name", name), logging.Int("version", version))
	return m, nil
}

// GetModel returns the latest version of the named model
func (r *Registry) GetModel(name string) (*Model, error) {
	row := r.db.QueryRow(
		`SELECT id, name, version, path, properties, created_at FROM models WHERE name = ? ORDER BY version DESC LIMIT 1`,
		name,
	)
	var m Model
	var props string
	if err := row.Scan(&m.ID, &m.Name, &m.Version, &m.Path, &props, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("model %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	if err := json.Unmarshal([]byte(props), &m.Properties); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
	}
	return &m, nil
}

// SaveEnvironment creates or replaces the named runtime environment
func (r *Registry) SaveEnvironment(env *Environment) error {
	if env.EnvVars == nil {
		env.EnvVars = map[string]string{}
	}
	vars, err := json.Marshal(env.EnvVars)
	if err != nil {
		return fmt.Errorf("failed to marshal env vars: %w", err)
	}
	now := time.Now().UTC()
	env.UpdatedAt = now
	if env.CreatedAt.IsZero() {
		env.CreatedAt = now
	}
	_, err = r.db.Exec(
		`INSERT INTO environments (name, image, env_vars, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET image = excluded.image, env_vars = excluded.env_vars, updated_at = excluded.updated_at`,
		env.Name, env.Image, string(vars), env.CreatedAt, env.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save environment: %w", err)
	}
	return nil
}

// GetEnvironment returns the named runtime environment
func (r *Registry) GetEnvironment(name string) (*Environment, error) {
	row := r.db.QueryRow(`SELECT name, image, env_vars, created_at, updated_at FROM environments WHERE name = ?`, name)
	var env Environment
	var vars string
	if err := row.Scan(&env.Name, &env.Image, &vars, &env.CreatedAt, &env.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("environment %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query environment: %w", err)
	}
	if err := json.Unmarshal([]byte(vars), &env.EnvVars); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env vars: %w", err)
	}
	return &env, nil
}

// CreateRun records a new experiment run in the running state
func (r *Registry) CreateRun(experiment string, tags map[string]string) (*Run, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	now := time.Now().UTC()
	run := &Run{
		ID:         uuid.New().String(),
		Experiment: experiment,
		Status:     RunStatusRunning,
		Tags:       tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = r.db.Exec(
		`INSERT INTO runs (id, experiment, status, tags, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Experiment, run.Status, string(encoded), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// UpdateRunStatus transitions a run to the given status
func (r *Registry) UpdateRunStatus(runID, status string) error {
	result, err := r.db.Exec(
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun returns the run with the given id
func (r *Registry) GetRun(runID string) (*Run, error) {
	row := r.db.QueryRow(`SELECT id, experiment, status, tags, created_at, updated_at FROM runs WHERE id = ?`, runID)
	var run Run
	var tags string
	if err := row.Scan(&run.ID, &run.Experiment, &run.Status, &tags, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &run.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	return &run, nil
}

// LogMetric records one scalar metric value for a run
func (r *Registry) LogMetric(runID, key string, value float64) error {
	_, err := r.db.Exec(
		`INSERT INTO run_metrics (run_id, key, value, created_at) VALUES (?, ?, ?, ?)`,
		runID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	return nil
}

// Metrics returns all scalar metrics logged for a run
func (r *Registry) Metrics(runID string) ([]Metric, error) {
	rows, err := r.db.Query(
		`SELECT run_id, key, value, created_at FROM run_metrics WHERE run_id = ? ORDER BY created_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.RunID, &m.Key, &m.Value, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// LogMetricRow records one table row for a run series
func (r *Registry) LogMetricRow(runID, series, description string, payload map[string]any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO run_rows (run_id, series, description, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, series, description, string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric row: %w", err)
	}
	return nil
}

// MetricRows returns all rows logged for a run series
func (r *Registry) MetricRows(runID, series string) ([]MetricRow, error) {
	rows, err := r.db.Query(
		`SELECT run_id, series, description, payload, created_at FROM run_rows WHERE run_id = ? AND series = ? ORDER BY created_at`,
		runID, series,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric rows: %w", err)
	}
	defer rows.Close()

	var result []MetricRow
	for rows.Next() {
		var mr MetricRow
		var payload string
		var description sql.NullString
		if err := rows.Scan(&mr.RunID, &mr.Series, &description, &payload, &mr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		mr.Description = description.String
		if err := json.Unmarshal([]byte(payload), &mr.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		result = append(result, mr)
	}
	return result, rows.Err()
}

// LogImage copies an image file into the blob directory and records it for a run
func (r *Registry) LogImage(runID, slug, fromFile string) error {
	blob := filepath.Join(r.root, "blobs", fmt.Sprintf("image-%s-%s.png", slug, uuid.New().String()))
	if err := copyFile(fromFile, blob); err != nil {
		return fmt.Errorf("failed to copy image blob: %w", err)
	}
	_, err := r.db.Exec(
		`INSERT INTO run_images (run_id, slug, path, created_at) VALUES (?, ?, ?, ?)`,
		runID, slug, blob, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	return nil
}

// Images returns the blob paths of images logged for a run
func (r *Registry) Images(runID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT path FROM run_images WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func (r *Registry) nextVersion(table, name string) (int, error) {
	// table is one of the fixed identifiers "datasets" or "models"
	var version sql.NullInt64
	row := r.db.QueryRow(fmt.Sprintf(`SELECT MAX(version) FROM %s WHERE name = ?`, table), name)
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to query versions: %w", err)
	}
	return int(version.Int64) + 1, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
