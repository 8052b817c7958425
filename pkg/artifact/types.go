// Package artifact persists in-memory artifacts (tables, models, figures,
// JSON values) to a storage backend selected by configuration. The Handler
// dispatches on the storage type; backends dispatch on the file type.
package artifact

import "io"

// StorageType selects which backend handles a save/load call
type StorageType string

const (
	// StorageLocal stores artifacts on the local filesystem
	StorageLocal StorageType = "local"
	// StorageRemoteDataset stores artifacts in the remote dataset registry
	StorageRemoteDataset StorageType = "remote_dataset"
	// StorageRemoteFileshare is recognized but not implemented
	StorageRemoteFileshare StorageType = "remote_fileshare"
)

// FileType selects which serializer a backend uses for an artifact
type FileType string

const (
	// FileDataframe serializes a *dataframe.Table as CSV
	FileDataframe FileType = "dataframe"
	// FileGob serializes any gob-encodable value (model blobs, artifact bundles)
	FileGob FileType = "gob"
	// FileJSON serializes any JSON-encodable value
	FileJSON FileType = "json"
	// FileTable serializes a *dataframe.Table in its binary container form
	FileTable FileType = "table"
	// FileMatrix serializes a *mat.Dense in gonum's binary form
	FileMatrix FileType = "matrix"
	// FileHTML writes a string or byte slice as an HTML document
	FileHTML FileType = "html"
	// FilePNG writes raw image bytes
	FilePNG FileType = "png"
	// FileFigure renders a Figure to PNG
	FileFigure FileType = "figure"
)

// Ext returns the file extension for the file type, without the dot.
// Unknown file types return an empty string.
func (ft FileType) Ext() string {
	switch ft {
	case FileDataframe:
		return "csv"
	case FileGob:
		return "gob"
	case FileJSON:
		return "json"
	case FileTable:
		return "tbl"
	case FileMatrix:
		return "mtx"
	case FileHTML:
		return "html"
	case FilePNG, FileFigure:
		return "png"
	default:
		return ""
	}
}

// Config describes where and how a single artifact is stored
type Config struct {
	StorageType  StorageType `json:"storage_type" yaml:"storage_type"`
	FileType     FileType    `json:"file_type,omitempty" yaml:"file_type,omitempty"`
	Name         string      `json:"name" yaml:"name"`
	RelativePath string      `json:"relative_path,omitempty" yaml:"relative_path,omitempty"`
}

// Figure is an artifact that renders itself to PNG, such as a plot. Plot
// values from rendering libraries are adapted to this interface by callers.
type Figure interface {
	WritePNG(w io.Writer) error
}
