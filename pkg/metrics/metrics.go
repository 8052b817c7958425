// Package metrics logs experiment metrics (scalars, tables, figures) to a
// run. Values that cannot be represented are skipped rather than failing
// the experiment.
package metrics

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/equinor/interface-tools/pkg/artifact"
	"github.com/equinor/interface-tools/pkg/dataframe"
	"github.com/equinor/interface-tools/pkg/logging"
	"github.com/equinor/interface-tools/pkg/registry"
)

// RunLogger records experiment metrics against a run
type RunLogger interface {
	// LogScalar logs one scalar value if it can be represented, with an
	// optional "prefix-" on the key.
	LogScalar(key any, value any, prefix string) error
	// LogTable logs a table column by column under slug-column series
	LogTable(table *dataframe.Table, slug, description string) error
	// LogFigure renders and stores a figure under the slug
	LogFigure(fig artifact.Figure, slug string) error
}

// PrepareScalar normalizes a key/value pair for logging. Keys may be
// strings or fmt.Stringer values (enum-like constants); values are only
// logged as float64 or int — everything else, including NaN, is skipped
// and ok is false.
func PrepareScalar(key any, value any, prefix string) (string, float64, bool) {
	var name string
	switch k := key.(type) {
	case string:
		name = k
	case fmt.Stringer:
		name = k.String()
	default:
		return "", 0, false
	}

	var v float64
	switch val := value.(type) {
	case float64:
		v = val
	case int:
		v = float64(val)
	default:
		return "", 0, false
	}
	if math.IsNaN(v) {
		return "", 0, false
	}

	if prefix != "" {
		name = fmt.Sprintf("%s-%s", prefix, name)
	}
	return name, v, true
}

// RegistryLogger records metrics against a registry run
type RegistryLogger struct {
	reg   *registry.Registry
	runID string
	log   *logging.Logger
}

// NewRegistryLogger creates a run logger writing to the given registry run
func NewRegistryLogger(reg *registry.Registry, runID string) *RegistryLogger {
	return &RegistryLogger{
		reg:   reg,
		runID: runID,
		log:   logging.Default().WithComponent("metrics"),
	}
}

// LogScalar logs one scalar value for the run. Unrepresentable values are
// skipped silently.
func (l *RegistryLogger) LogScalar(key any, value any, prefix string) error {
	name, v, ok := PrepareScalar(key, value, prefix)
	if !ok {
		l.log.Debug("skipping unrepresentable scalar", logging.String("key", fmt.Sprintf("%v", key)))
		return nil
	}
	return l.reg.LogMetric(l.runID, name, v)
}

// LogScalarFromMap looks the key up in data and logs the result
func (l *RegistryLogger) LogScalarFromMap(data map[string]any, key string, prefix string) error {
	return l.LogScalar(key, data[key], prefix)
}

// LogTable logs each column of the table as its own slug-column series,
// one row at a time. Time columns are flattened to strings first. A
// column whose rows fail to encode is skipped with a warning so the
// remaining columns still get logged.
func (l *RegistryLogger) LogTable(table *dataframe.Table, slug, description string) error {
	t := table.TimeColumnsToString().NormalizeNonFinite()
	for _, col := range t.Columns {
		values, err := t.Column(col)
		if err != nil {
			return err
		}
		series := fmt.Sprintf("%s-%s", slug, col)
		if err := l.logColumn(series, description, col, values); err != nil {
			l.log.Warn("failed to log column, skipping",
				logging.String("slug", slug), logging.String("column", col), logging.String("reason", err.Error()))
		}
	}
	return nil
}

func (l *RegistryLogger) logColumn(series, description, col string, values []any) error {
	for i, value := range values {
		payload := map[string]any{"index": i, col: value}
		if err := l.reg.LogMetricRow(l.runID, series, description, payload); err != nil {
			return err
		}
	}
	return nil
}

// LogTableStats logs summary statistics (mean, stddev, min, max) for
// every numeric column of the table, keyed slug-column-stat.
func (l *RegistryLogger) LogTableStats(table *dataframe.Table, slug string) error {
	for _, col := range table.Columns {
		values, err := table.Column(col)
		if err != nil {
			return err
		}
		floats := numericValues(values)
		if len(floats) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(floats, nil)
		if math.IsNaN(std) {
			std = 0
		}
		min, max := floats[0], floats[0]
		for _, f := range floats[1:] {
			if f < min {
				min = f
			}
			if f > max {
				max = f
			}
		}
		for name, value := range map[string]float64{"mean": mean, "std": std, "min": min, "max": max} {
			if err := l.reg.LogMetric(l.runID, fmt.Sprintf("%s-%s-%s", slug, col, name), value); err != nil {
				return err
			}
		}
	}
	return nil
}

// LogFigure renders the figure to a temporary PNG file, stores it for the
// run, and removes the temporary file.
func (l *RegistryLogger) LogFigure(fig artifact.Figure, slug string) error {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s.png", slug, uuid.NewString()))
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temporary figure file: %w", err)
	}
	if err := fig.WritePNG(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to render figure %q: %w", slug, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close figure file: %w", err)
	}
	defer os.Remove(tmp)

	if err := l.reg.LogImage(l.runID, slug, tmp); err != nil {
		return fmt.Errorf("failed to store figure %q: %w", slug, err)
	}
	return nil
}

func numericValues(values []any) []float64 {
	var floats []float64
	for _, value := range values {
		switch v := value.(type) {
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				floats = append(floats, v)
			}
		case int:
			floats = append(floats, float64(v))
		}
	}
	return floats
}

// NopLogger discards all metrics; used for offline runs and tests
type NopLogger struct{}

// LogScalar discards the value
func (NopLogger) LogScalar(key any, value any, prefix string) error { return nil }

// LogTable discards the table
func (NopLogger) LogTable(table *dataframe.Table, slug, description string) error { return nil }

// LogFigure discards the figure
func (NopLogger) LogFigure(fig artifact.Figure, slug string) error { return nil }
