package fetch

import (
	"errors"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retriesMethod reports whether requests with this method may be repeated
func (p RetryPolicy) retriesMethod(method string) bool {
	return slices.ContainsFunc(p.Methods, func(m string) bool {
		return strings.EqualFold(m, method)
	})
}

// retriesStatus reports whether a response code is worth another attempt
func (p RetryPolicy) retriesStatus(code int) bool {
	return slices.Contains(p.StatusForcelist, code)
}

// newBackOff builds the delay schedule: factor, 2*factor, 4*factor, ... capped at MaxBackoff.
func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BackoffFactor,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.MaxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// budget tracks the per-phase retry counters of one logical request
type budget struct {
	policy  RetryPolicy
	connect int
	read    int
	status  int

	attempts int
	reason   string
	// hint is a server-provided delay (Retry-After) for the next wait
	hint time.Duration
}

// spend consumes one retry for reason and reports whether it was available.
func (b *budget) spend(reason string) bool {
	b.reason = reason
	switch reason {
	case reasonConnect:
		b.connect++
		return b.connect <= b.policy.ConnectRetries
	case reasonRead:
		b.read++
		return b.read <= b.policy.ReadRetries
	default:
		b.status++
		return true
	}
}

// hintedBackOff lets a Retry-After header override the computed delay once.
type hintedBackOff struct {
	backoff.BackOff
	budget *budget
	max    time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if h.budget.hint > 0 {
		next = h.budget.hint
		h.budget.hint = 0
		if h.max > 0 && next > h.max {
			next = h.max
		}
	}
	return next
}

// classify decides whether a transport error happened while connecting or
// after the connection was established.
func classify(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return reasonConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return reasonConnect
	}
	return reasonRead
}

// retryAfter parses a Retry-After header given either in seconds or as an HTTP date.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
