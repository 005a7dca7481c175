// refdata.go
package refdata

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/arc-language/refdata/pkg/archive"
	"github.com/arc-language/refdata/pkg/core"
	"github.com/arc-language/refdata/pkg/env"
	"github.com/arc-language/refdata/pkg/fetch"
	"github.com/arc-language/refdata/pkg/install"
	"github.com/arc-language/refdata/pkg/manifest"
	"github.com/arc-language/refdata/pkg/metrics"
)

// Re-export types for convenience
type (
	Config         = core.Config
	Document       = manifest.Document
	DependencySpec = manifest.DependencySpec
	Report         = install.Report
	Entry          = install.Entry
	Decision       = install.Decision
	State          = install.State
)

// Re-export resolver states
const (
	StatePreset       = install.StatePreset
	StateInstalled    = install.StateInstalled
	StateNeedsInstall = install.StateNeedsInstall
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

// Option customizes a Manager
type Option func(*options)

type options struct {
	logger  *log.Logger
	env     env.Store
	metrics metrics.Recorder
}

// WithLogger sets the logger every component derives its own from
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEnv replaces the environment the installer reads presets from and
// records installed paths in
func WithEnv(s env.Store) Option {
	return func(o *options) { o.env = s }
}

// WithMetrics sends installer events to r instead of the metrics file
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// Manager loads dependency documents and installs their packages
type Manager struct {
	config    *core.Config
	runID     string
	logger    *log.Logger
	configGet *fetch.Client
	installer *install.Installer
	prom      *metrics.Prom
}

// NewManager creates a manager from config
func NewManager(config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, &Error{Op: opConfig, Err: err}
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	runID := uuid.NewString()

	logger := o.logger
	if logger == nil {
		if config.Debug {
			logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "refdata", Level: log.DebugLevel})
		} else {
			logger = log.New(io.Discard)
		}
	}
	logger = logger.With("run", runID)

	m := &Manager{config: config, runID: runID, logger: logger}

	rec := o.metrics
	if rec == nil && config.MetricsFile != "" {
		m.prom = metrics.NewProm("refdata")
		rec = m.prom
	}
	if rec == nil {
		rec = metrics.Noop{}
	}

	store := o.env
	if store == nil {
		store = env.Process()
		if config.EnvFile != "" {
			f, err := env.OpenFile(config.EnvFile)
			if err != nil {
				return nil, &Error{Op: opConfig, Err: err}
			}
			store = env.Overlay(store, f)
		}
	}

	policy := config.RetryPolicy()
	client := fetch.NewClient(&fetch.Config{
		Timeout:   config.ArchiveTimeout,
		UserAgent: config.UserAgent,
		Retry:     &policy,
		Logger:    logger.WithPrefix("fetch"),
		Metrics:   rec,
	})
	m.configGet = client.WithTimeout(config.ConfigTimeout)

	m.installer = install.New(&install.Config{
		Fetcher:   client,
		Extractor: archive.NewExtractor(&archive.Config{Logger: logger.WithPrefix("archive"), Metrics: rec}),
		Env:       store,
		TempDir:   config.TempDir,
		KeepGoing: config.KeepGoing,
		Logger:    logger.WithPrefix("install"),
		Metrics:   rec,
	})

	return m, nil
}

// RunID identifies this manager's run in logs
func (m *Manager) RunID() string {
	return m.runID
}

// Load reads a dependency document. An empty source uses the configured one.
func (m *Manager) Load(ctx context.Context, source string) (*Document, error) {
	if source == "" {
		source = m.config.Dependencies
	}
	m.logger.Debug("loading dependency document", "source", source)

	doc, err := manifest.Load(ctx, source, m.configGet)
	if err != nil {
		return nil, &Error{Op: opLoad, Err: err}
	}
	return doc, nil
}

// Install installs every package of doc and returns the report. With
// KeepGoing set, a partial report accompanies the error.
func (m *Manager) Install(ctx context.Context, doc *Document) (*Report, error) {
	report, err := m.installer.Install(ctx, doc)
	if err != nil {
		var pe *install.PackageError
		if errors.As(err, &pe) && pe == err {
			return report, &Error{Op: opInstall, Package: pe.Package, Err: pe.Err}
		}
		return report, &Error{Op: opInstall, Err: err}
	}
	return report, nil
}

// InstallFrom loads source and installs it
func (m *Manager) InstallFrom(ctx context.Context, source string) (*Report, error) {
	doc, err := m.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return m.Install(ctx, doc)
}

// Status reports what Install would do for each package without fetching
// any archive or changing the environment
func (m *Manager) Status(doc *Document) ([]Decision, error) {
	decisions, err := m.installer.Plan(doc)
	if err != nil {
		return nil, &Error{Op: opStatus, Err: err}
	}
	return decisions, nil
}

// Select returns a document holding only the named packages, in the order
// given. No names returns doc unchanged.
func Select(doc *Document, names ...string) (*Document, error) {
	if len(names) == 0 {
		return doc, nil
	}

	out := &Document{Source: doc.Source}
	for _, name := range names {
		spec, ok := doc.Lookup(name)
		if !ok {
			return nil, &Error{Op: opSelect, Package: name, Err: ErrPackageNotFound}
		}
		out.Specs = append(out.Specs, spec)
	}
	return out, nil
}

// Close flushes the metrics file if one is configured
func (m *Manager) Close() error {
	if m.prom == nil {
		return nil
	}
	m.logger.Debug("writing metrics", "path", m.config.MetricsFile)
	return m.prom.WriteFile(m.config.MetricsFile)
}
