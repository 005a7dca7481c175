// errors.go
package refdata

import (
	"errors"
	"fmt"

	"github.com/arc-language/refdata/pkg/archive"
	"github.com/arc-language/refdata/pkg/fetch"
	"github.com/arc-language/refdata/pkg/manifest"
)

var (
	// ErrConfig indicates an invalid tool setting or dependency document
	ErrConfig = errors.New("configuration error")

	// ErrNetwork indicates a request that failed after its retry budget
	ErrNetwork = errors.New("network error")

	// ErrArchive indicates an archive neither extraction path could read
	ErrArchive = errors.New("archive error")

	// ErrPackageNotFound indicates a package id missing from the document
	ErrPackageNotFound = errors.New("package not found")
)

// Error wraps an error with additional context
type Error struct {
	Op      string // Operation that failed
	Package string // Package name if applicable
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is classifies the wrapped failure. Joined errors match when any of their
// members does.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		var fe *fetch.Error
		return errors.As(e.Err, &fe)
	case ErrArchive:
		return errors.Is(e.Err, archive.ErrFormat)
	case ErrConfig:
		if errors.Is(e.Err, manifest.ErrInvalid) {
			return true
		}
		if e.Op == opConfig {
			return true
		}
		var fe *fetch.Error
		return e.Op == opLoad && !errors.As(e.Err, &fe)
	}
	return false
}

const (
	opConfig  = "config"
	opLoad    = "load"
	opInstall = "install"
	opStatus  = "status"
	opSelect  = "select"
)
