// pkg/metrics/metrics.go
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives installer events. Implementations must tolerate being
// called from a single goroutine only; the installer never calls them
// concurrently.
type Recorder interface {
	// IncFetch counts a finished HTTP attempt by outcome ("ok", "status", "error").
	IncFetch(outcome string)
	// IncRetry counts a scheduled retry by reason ("connect", "read", "status").
	IncRetry(reason string)
	// IncFallback counts a switch from streaming to buffered extraction.
	IncFallback()
	// IncRejected counts an archive member dropped by the path filter.
	IncRejected()
	// IncPackage counts a resolved package by state ("preset", "installed", "fresh", "failed").
	IncPackage(state string)
}

// Noop implements Recorder without emitting anything.
type Noop struct{}

func (Noop) IncFetch(string)   {}
func (Noop) IncRetry(string)   {}
func (Noop) IncFallback()      {}
func (Noop) IncRejected()      {}
func (Noop) IncPackage(string) {}

// Prom implements Recorder backed by Prometheus counters on a private registry.
type Prom struct {
	registry  *prometheus.Registry
	fetches   *prometheus.CounterVec
	retries   *prometheus.CounterVec
	fallbacks prometheus.Counter
	rejected  prometheus.Counter
	packages  *prometheus.CounterVec
	once      sync.Once
}

// NewProm creates counters under the given namespace.
func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP attempts by outcome",
		}, []string{"outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "HTTP retries by reason",
		}, []string{"reason"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_fallbacks_total",
			Help:      "Streaming extractions retried through a temporary file",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_members_rejected_total",
			Help:      "Archive members dropped because their path escapes the destination",
		}),
		packages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_total",
			Help:      "Packages resolved by install state",
		}, []string{"state"}),
	}
	p.register()
	return p
}

func (p *Prom) register() {
	p.once.Do(func() {
		p.registry.MustRegister(p.fetches, p.retries, p.fallbacks, p.rejected, p.packages)
	})
}

func (p *Prom) IncFetch(outcome string) {
	p.fetches.WithLabelValues(outcome).Inc()
}

func (p *Prom) IncRetry(reason string) {
	p.retries.WithLabelValues(reason).Inc()
}

func (p *Prom) IncFallback() {
	p.fallbacks.Inc()
}

func (p *Prom) IncRejected() {
	p.rejected.Inc()
}

func (p *Prom) IncPackage(state string) {
	p.packages.WithLabelValues(state).Inc()
}

// Gatherer exposes the private registry.
func (p *Prom) Gatherer() prometheus.Gatherer {
	return p.registry
}

// WriteFile writes all counters in the text exposition format, suitable for
// the node_exporter textfile collector. The file is replaced atomically.
func (p *Prom) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
