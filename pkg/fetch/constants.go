// pkg/fetch/constants.go
package fetch

import (
	"net/http"
	"time"
)

const (
	// DefaultUserAgent is sent with every request
	DefaultUserAgent = "refdata/0.1.0"

	// DefaultArchiveTimeout bounds a single archive download
	DefaultArchiveTimeout = 30 * time.Minute

	// DefaultConfigTimeout bounds the fetch of a dependency document
	DefaultConfigTimeout = 60 * time.Second

	// copyBufferSize is the chunk size used when copying response bodies
	copyBufferSize = 1 << 20
)

// Retry reasons, also used as metric labels
const (
	reasonConnect = "connect"
	reasonRead    = "read"
	reasonStatus  = "status"
)

// DefaultRetryPolicy retries GET and HEAD up to five attempts with a
// 0.6s, 1.2s, 2.4s, ... backoff capped at two minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		ConnectRetries: 5,
		ReadRetries:    5,
		BackoffFactor:  600 * time.Millisecond,
		MaxBackoff:     120 * time.Second,
		StatusForcelist: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
		Methods: []string{http.MethodGet, http.MethodHead},
	}
}
