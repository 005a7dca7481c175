// pkg/install/installer.go
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/arc-language/refdata/pkg/archive"
	"github.com/arc-language/refdata/pkg/env"
	"github.com/arc-language/refdata/pkg/fetch"
	"github.com/arc-language/refdata/pkg/manifest"
	"github.com/arc-language/refdata/pkg/metrics"
)

// Installer resolves and installs the packages of a dependency document
type Installer struct {
	fetcher   Fetcher
	extractor Extractor
	env       env.Store
	tempDir   string
	keepGoing bool
	logger    *log.Logger
	metrics   metrics.Recorder
}

// New creates an installer, filling unset collaborators with defaults
func New(cfg *Config) *Installer {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "install", Level: log.DebugLevel})
		} else {
			logger = log.New(io.Discard)
		}
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(&fetch.Config{
			Timeout: fetch.DefaultArchiveTimeout,
			Logger:  logger.WithPrefix("fetch"),
			Metrics: rec,
		})
	}

	extractor := cfg.Extractor
	if extractor == nil {
		extractor = archive.NewExtractor(&archive.Config{Logger: logger.WithPrefix("archive"), Metrics: rec})
	}

	store := cfg.Env
	if store == nil {
		store = env.Process()
	}

	return &Installer{
		fetcher:   fetcher,
		extractor: extractor,
		env:       store,
		tempDir:   cfg.TempDir,
		keepGoing: cfg.KeepGoing,
		logger:    logger,
		metrics:   rec,
	}
}

// Decide classifies a package without touching the network. A preset
// variable wins without any filesystem access.
func (in *Installer) Decide(spec manifest.DependencySpec) (Decision, error) {
	d := Decision{Spec: spec}

	if v, ok := env.Value(in.env, spec.Variable); ok {
		d.State = StatePreset
		d.Path = v
		return d, nil
	}

	resolved, err := Resolve(spec, in.env)
	if err != nil {
		return d, err
	}
	d.Resolved = resolved
	d.Path = resolved.FinalDir

	if populated(resolved.FinalDir) {
		d.State = StateInstalled
	} else {
		d.State = StateNeedsInstall
	}
	return d, nil
}

// Plan returns the decision for every package in document order
func (in *Installer) Plan(doc *manifest.Document) ([]Decision, error) {
	decisions := make([]Decision, 0, len(doc.Specs))
	for _, spec := range doc.Specs {
		d, err := in.Decide(spec)
		if err != nil {
			return nil, &PackageError{Package: spec.Package, Err: err}
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// Install processes every package in document order. Without KeepGoing the
// first failure aborts the run and no report is returned. With KeepGoing the
// report covers the packages that succeeded and the error joins every failure.
func (in *Installer) Install(ctx context.Context, doc *manifest.Document) (*Report, error) {
	report := newReport()
	var errs []error

	for _, spec := range doc.Specs {
		entry, err := in.installPackage(ctx, spec)
		if err != nil {
			in.metrics.IncPackage("failed")
			err = &PackageError{Package: spec.Package, Err: err}
			if !in.keepGoing {
				return nil, err
			}
			in.logger.Error("package failed", "package", spec.Package, "err", err)
			errs = append(errs, err)
			continue
		}
		report.add(entry)
	}

	return report, errors.Join(errs...)
}

func (in *Installer) installPackage(ctx context.Context, spec manifest.DependencySpec) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	d, err := in.Decide(spec)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{Package: spec.Package, Variable: spec.Variable, Path: d.Path}

	switch d.State {
	case StatePreset:
		in.logger.Info("found existing path", "package", spec.Package, "var", spec.Variable, "path", d.Path)
		in.metrics.IncPackage("preset")
		entry.PreInstalled = true
		return entry, nil

	case StateInstalled:
		in.logger.Info("already installed", "package", spec.Package, "path", d.Path)
		if err := os.MkdirAll(d.Resolved.InstallDir, 0755); err != nil {
			return Entry{}, fmt.Errorf("creating install dir: %w", err)
		}
		if err := in.env.Set(spec.Variable, d.Path); err != nil {
			return Entry{}, err
		}
		in.metrics.IncPackage("installed")
		entry.PreInstalled = true
		return entry, nil
	}

	in.logger.Info("installing", "package", spec.Package, "dest", d.Resolved.InstallDir, "files", len(spec.URLs))
	if err := os.MkdirAll(d.Resolved.InstallDir, 0755); err != nil {
		return Entry{}, fmt.Errorf("creating install dir: %w", err)
	}

	for i, url := range spec.URLs {
		in.logger.Debug("fetching archive", "package", spec.Package, "n", i+1, "of", len(spec.URLs), "url", url)
		if err := in.fetchAndExtract(ctx, url, d.Resolved.InstallDir); err != nil {
			return Entry{}, fmt.Errorf("%s: %w", url, err)
		}
	}

	if err := in.env.Set(spec.Variable, d.Path); err != nil {
		return Entry{}, err
	}
	in.logger.Info("installed", "package", spec.Package, "var", spec.Variable, "path", d.Path)
	in.metrics.IncPackage("fresh")
	return entry, nil
}

// fetchAndExtract streams url into dest, falling back to a temp file when
// the payload cannot be read front to back.
func (in *Installer) fetchAndExtract(ctx context.Context, url, dest string) error {
	outcome, err := in.stream(ctx, url, dest)
	switch outcome {
	case OutcomeExtracted:
		return nil
	case OutcomeFormatIncompatible:
		in.logger.Debug("streamed read failed, falling back to temp file", "url", url, "err", err)
		in.metrics.IncFallback()
		return in.buffered(ctx, url, dest)
	default:
		return err
	}
}

func (in *Installer) stream(ctx context.Context, url, dest string) (Outcome, error) {
	body, err := in.fetcher.Open(ctx, url)
	if err != nil {
		return OutcomeFetchFailed, err
	}
	defer body.Close()

	err = in.extractor.ExtractStream(body, dest)
	var re *archive.ReadError
	switch {
	case err == nil:
		return OutcomeExtracted, nil
	case errors.Is(err, archive.ErrFormat):
		return OutcomeFormatIncompatible, err
	case errors.As(err, &re):
		// the body is the connection, so a failed read is a network failure
		return OutcomeFetchFailed, &fetch.Error{Method: http.MethodGet, URL: url, Attempts: 1, Err: err}
	default:
		return OutcomeFetchFailed, err
	}
}

func (in *Installer) buffered(ctx context.Context, url, dest string) error {
	tmp, err := os.CreateTemp(in.tempDir, "refdata-*.download")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			in.logger.Debug("failed to remove temp file", "path", tmpPath, "err", err)
		}
	}()

	_, err = in.fetcher.Download(ctx, url, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	return in.extractor.ExtractFile(tmpPath, dest)
}

// PackageError ties a failure to the package that caused it
type PackageError struct {
	Package string
	Err     error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s: %v", e.Package, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}
