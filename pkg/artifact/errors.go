package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned for recognized but unbuilt backends,
	// currently only the remote file share.
	ErrNotImplemented = errors.New("file share storage is not currently implemented")

	// ErrNotFound is returned when a named artifact does not exist in the
	// backend it was requested from.
	ErrNotFound = errors.New("artifact not found")
)

// InvalidConfigError reports an unrecognized storage type value
type InvalidConfigError struct {
	StorageType StorageType
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("storage type of value %q not supported", string(e.StorageType))
}

// UnsupportedFileTypeError reports a file type the active backend cannot serialize
type UnsupportedFileTypeError struct {
	FileType FileType
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("file type of value %q not supported", string(e.FileType))
}

// InvalidArgumentsError reports a missing required argument in callback mode
type InvalidArgumentsError struct {
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return e.Reason
}
