// pkg/fetch/types.go
package fetch

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/arc-language/refdata/pkg/metrics"
)

// Config configures a Client
type Config struct {
	Timeout   time.Duration     // Total per-call budget, retries and body included (0 = none)
	UserAgent string            // Default: refdata/<version>
	Retry     *RetryPolicy      // Default: DefaultRetryPolicy()
	Transport http.RoundTripper // Optional custom transport
	Debug     bool              // Enable debug logging
	Logger    *log.Logger       // Custom logger (optional)
	Metrics   metrics.Recorder  // Optional metrics sink
}

// Client issues idempotent HTTP requests with a bounded retry budget
type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	policy     RetryPolicy
	logger     *log.Logger
	metrics    metrics.Recorder
}

// RetryPolicy bounds how often and how fast failed requests are repeated.
// Connect and read retries are budgeted independently of each other, and
// all of them together never exceed MaxAttempts-1.
type RetryPolicy struct {
	MaxAttempts     int           // Total attempts including the first one
	ConnectRetries  int           // Retries after failing to establish a connection
	ReadRetries     int           // Retries after a transport failure on an established connection
	BackoffFactor   time.Duration // First retry delay; doubles on every further retry
	MaxBackoff      time.Duration // Upper bound for any single delay
	StatusForcelist []int         // Response codes that are retried
	Methods         []string      // Methods that may be retried
}
