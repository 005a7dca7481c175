package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fastPolicy keeps the default budget but shrinks the delays for tests
func fastPolicy() *RetryPolicy {
	p := DefaultRetryPolicy()
	p.BackoffFactor = time.Millisecond
	p.MaxBackoff = 5 * time.Millisecond
	return &p
}

func TestClientGetBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
			t.Errorf("unexpected User-Agent: %s", got)
		}
		if _, err := w.Write([]byte("install_files: {}")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(&Config{Retry: fastPolicy()})
	body, err := client.GetBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	if string(body) != "install_files: {}" {
		t.Errorf("body = %q", body)
	}
}

func TestClientRetriesRetryableStatus(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		status       int
		wantErr      bool
		wantAttempts int32
	}{
		{name: "no_failures", failures: 0, status: http.StatusServiceUnavailable, wantAttempts: 1},
		{name: "one_503", failures: 1, status: http.StatusServiceUnavailable, wantAttempts: 2},
		{name: "four_429", failures: 4, status: http.StatusTooManyRequests, wantAttempts: 5},
		{name: "three_502", failures: 3, status: http.StatusBadGateway, wantAttempts: 4},
		{name: "exceeds_cap_500", failures: 5, status: http.StatusInternalServerError, wantErr: true, wantAttempts: 5},
		{name: "always_504", failures: 100, status: http.StatusGatewayTimeout, wantErr: true, wantAttempts: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				if _, err := w.Write([]byte("payload")); err != nil {
					t.Errorf("failed to write response: %v", err)
				}
			}))
			defer server.Close()

			client := NewClient(&Config{Retry: fastPolicy()})
			body, err := client.GetBytes(context.Background(), server.URL)

			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("server saw %d attempts, want %d", got, tt.wantAttempts)
			}

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				code, ok := StatusCode(err)
				if !ok || code != tt.status {
					t.Errorf("StatusCode(err) = %d, %v; want %d", code, ok, tt.status)
				}
				var fe *Error
				if !errors.As(err, &fe) || fe.Attempts != int(tt.wantAttempts) {
					t.Errorf("expected *Error with %d attempts, got %#v", tt.wantAttempts, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(body) != "payload" {
				t.Errorf("body = %q", body)
			}
		})
	}
}

func TestClientDoesNotRetryUnlistedStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusNotImplemented} {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(status)
		}))

		client := NewClient(&Config{Retry: fastPolicy()})
		_, err := client.GetBytes(context.Background(), server.URL)
		server.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if code, _ := StatusCode(err); code != status {
			t.Errorf("status %d: got code %d", status, code)
		}
		if got := attempts.Load(); got != 1 {
			t.Errorf("status %d: %d attempts, want 1", status, got)
		}
	}
}

func TestClientDoesNotRetryNonIdempotentMethods(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(&Config{Retry: fastPolicy()})
	_, err := client.Do(context.Background(), http.MethodPost, server.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("POST was attempted %d times, want 1", got)
	}
}

func TestClientRetriesHeadRequests(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Config{Retry: fastPolicy()})
	resp, err := client.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	resp.Body.Close()
	if got := attempts.Load(); got != 2 {
		t.Errorf("HEAD attempts = %d, want 2", got)
	}
}

func TestClientRetriesDroppedConnection(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("server does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
			return
		}
		if _, err := w.Write([]byte("recovered")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(&Config{Retry: fastPolicy()})
	body, err := client.GetBytes(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected recovery after dropped connection, got: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("body = %q", body)
	}
	if attempts.Load() < 2 {
		t.Errorf("expected at least 2 attempts, got %d", attempts.Load())
	}
}

func TestClientConnectRetryBudget(t *testing.T) {
	// A closed listener refuses connections, which is a connect-phase failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	policy := fastPolicy()
	policy.ConnectRetries = 1

	client := NewClient(&Config{Retry: policy})
	_, err := client.GetBytes(context.Background(), url)
	if err == nil {
		t.Fatal("expected connection error")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if fe.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one connect retry)", fe.Attempts)
	}
	if _, ok := StatusCode(err); ok {
		t.Error("connection failure should not carry a status code")
	}
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient(&Config{Retry: fastPolicy(), Timeout: 50 * time.Millisecond})
	_, err := client.GetBytes(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var fe *Error
	if !errors.As(err, &fe) || !fe.Timeout() {
		t.Errorf("expected timeout *Error, got %v", err)
	}
}

func TestClientOpenStreamsBody(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<14)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write(payload); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(&Config{Retry: fastPolicy(), Timeout: 10 * time.Second})
	body, err := client.Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body after Open returned: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("streamed %d bytes, want %d", len(got), len(payload))
	}
}

func TestClientDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("archive bytes")); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	var buf bytes.Buffer
	n, err := NewClient(nil).Download(context.Background(), server.URL, &buf)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if n != int64(len("archive bytes")) || buf.String() != "archive bytes" {
		t.Errorf("Download wrote %d bytes: %q", n, buf.String())
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "missing", header: "", want: 0},
		{name: "seconds", header: "3", want: 3 * time.Second},
		{name: "negative", header: "-1", want: 0},
		{name: "http_date", header: now.Add(10 * time.Second).Format(http.TimeFormat), want: 10 * time.Second},
		{name: "past_date", header: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
		{name: "garbage", header: "soon", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			if got := retryAfter(h, now); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestBackOffSchedule(t *testing.T) {
	p := DefaultRetryPolicy()
	b := p.newBackOff()

	want := []time.Duration{
		600 * time.Millisecond,
		1200 * time.Millisecond,
		2400 * time.Millisecond,
		4800 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("delay %d = %v, want %v", i+1, got, w)
		}
	}
}

func TestHintedBackOffCapsServerDelay(t *testing.T) {
	p := fastPolicy()
	state := &budget{policy: *p, hint: time.Hour}
	h := &hintedBackOff{BackOff: p.newBackOff(), budget: state, max: p.MaxBackoff}

	if got := h.NextBackOff(); got != p.MaxBackoff {
		t.Errorf("hinted delay = %v, want cap %v", got, p.MaxBackoff)
	}
	if state.hint != 0 {
		t.Error("hint should be consumed after one use")
	}
}
