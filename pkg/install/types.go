// pkg/install/types.go
package install

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/arc-language/refdata/pkg/env"
	"github.com/arc-language/refdata/pkg/manifest"
	"github.com/arc-language/refdata/pkg/metrics"
)

// Fetcher retrieves archive payloads
type Fetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Extractor unpacks archives below a destination directory
type Extractor interface {
	ExtractStream(r io.Reader, dest string) error
	ExtractFile(path, dest string) error
}

// Config configures an Installer
type Config struct {
	Fetcher   Fetcher
	Extractor Extractor
	// Env receives every package's variable. Defaults to the process environment.
	Env env.Store
	// TempDir holds fallback downloads. Empty means os.TempDir().
	TempDir   string
	KeepGoing bool
	Logger    *log.Logger
	Debug     bool
	Metrics   metrics.Recorder
}

// Outcome is the result of one streaming attempt
type Outcome int

const (
	// OutcomeExtracted means the stream was fully extracted
	OutcomeExtracted Outcome = iota
	// OutcomeFormatIncompatible means the payload needs random access or
	// could not be parsed as a stream; the buffered path should run
	OutcomeFormatIncompatible
	// OutcomeFetchFailed covers every other failure
	OutcomeFetchFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExtracted:
		return "extracted"
	case OutcomeFormatIncompatible:
		return "format-incompatible"
	default:
		return "fetch-failed"
	}
}

// State is the resolver's verdict for a package
type State int

const (
	// StatePreset means the variable already holds a usable path
	StatePreset State = iota
	// StateInstalled means the data directory exists and is not empty
	StateInstalled
	// StateNeedsInstall means the archives must be fetched
	StateNeedsInstall
)

func (s State) String() string {
	switch s {
	case StatePreset:
		return "preset"
	case StateInstalled:
		return "installed"
	default:
		return "needs-install"
	}
}

// ResolvedInstall holds the absolute directories for one package
type ResolvedInstall struct {
	InstallDir string
	FinalDir   string
}

// Decision is what the resolver decided for one package
type Decision struct {
	Spec     manifest.DependencySpec
	State    State
	Resolved ResolvedInstall
	// Path is the value the package's variable ends up with
	Path string
}
