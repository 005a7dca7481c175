package refdata

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/arc-language/refdata/pkg/env"
)

func testArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	body := "reference data\n"
	if err := tw.WriteHeader(&tar.Header{Name: "pkg/readme.txt", Mode: 0644, Size: int64(len(body))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// newServer serves a dependency document at /deps.yaml pointing at an
// archive at /pkg.tar.gz
func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	archive := testArchive(t)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		switch r.URL.Path {
		case "/deps.yaml":
			body = []byte(fmt.Sprintf(`install_files:
  pkg:
    environment_variable: REFDATA
    data_url: %s/pkg.tar.gz
    install_path: ${HOME}/data
    data_path: pkg
`, srv.URL))
		case "/pkg.tar.gz":
			body = archive
		case "/cut.tar.gz":
			w.Header().Set("Content-Length", strconv.Itoa(len(archive)))
			if _, err := w.Write(archive[:len(archive)/2]); err != nil {
				t.Errorf("failed to write response: %v", err)
			}
			w.(http.Flusher).Flush()
			panic(http.ErrAbortHandler)
		default:
			http.NotFound(w, r)
			return
		}
		if _, err := w.Write(body); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Retry.Attempts = 2
	cfg.Retry.BackoffFactor = time.Millisecond
	cfg.Retry.MaxBackoff = time.Millisecond
	return cfg
}

func TestManagerInstallFrom(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	srv := newServer(t)

	cfg := testConfig()
	cfg.MetricsFile = filepath.Join(t.TempDir(), "refdata.prom")

	store := env.NewMap(nil)
	m, err := NewManager(cfg, WithEnv(store))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.RunID() == "" {
		t.Error("expected a run id")
	}

	report, err := m.InstallFrom(context.Background(), srv.URL+"/deps.yaml")
	if err != nil {
		t.Fatalf("InstallFrom: %v", err)
	}

	want := filepath.Join(home, "data", "pkg")
	e, ok := report.Get("REFDATA")
	if !ok || e.Path != want || e.PreInstalled {
		t.Errorf("entry = %+v, want path %q", e, want)
	}
	if v, _ := store.Lookup("REFDATA"); v != want {
		t.Errorf("REFDATA = %q", v)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	if !strings.Contains(string(data), `refdata_packages_total{state="fresh"} 1`) {
		t.Errorf("metrics file missing package counter:\n%s", data)
	}
}

func TestManagerEnvFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("REFDATA", "")
	srv := newServer(t)

	cfg := testConfig()
	cfg.EnvFile = filepath.Join(t.TempDir(), "env.json")

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.InstallFrom(context.Background(), srv.URL+"/deps.yaml"); err != nil {
		t.Fatalf("InstallFrom: %v", err)
	}

	f, err := env.OpenFile(cfg.EnvFile)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := f.Lookup("REFDATA"); v != filepath.Join(home, "data", "pkg") {
		t.Errorf("env file REFDATA = %q", v)
	}
}

func TestManagerStatus(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newServer(t)

	m, err := NewManager(testConfig(), WithEnv(env.NewMap(nil)))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := m.Load(context.Background(), srv.URL+"/deps.yaml")
	if err != nil {
		t.Fatal(err)
	}

	decisions, err := m.Status(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(decisions) != 1 || decisions[0].State != StateNeedsInstall {
		t.Errorf("decisions = %+v", decisions)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newServer(t)
	ctx := context.Background()

	m, err := NewManager(testConfig(), WithEnv(env.NewMap(nil)))
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Load(ctx, srv.URL+"/missing.yaml")
	if !errors.Is(err, ErrNetwork) || errors.Is(err, ErrConfig) {
		t.Errorf("missing document: expected ErrNetwork only, got %v", err)
	}

	local := filepath.Join(t.TempDir(), "deps.yaml")
	if err := os.WriteFile(local, []byte("install_files:\n  pkg:\n    install_path: /tmp\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err = m.Load(ctx, local)
	if !errors.Is(err, ErrConfig) {
		t.Errorf("invalid document: expected ErrConfig, got %v", err)
	}

	doc := &Document{Specs: []DependencySpec{{
		Package:     "pkg",
		Variable:    "REFDATA",
		URLs:        []string{srv.URL + "/gone.tar.gz"},
		InstallPath: "${HOME}/data",
		DataPath:    "pkg",
	}}}
	_, err = m.Install(ctx, doc)
	var re *Error
	if !errors.As(err, &re) || re.Package != "pkg" || re.Op != "install" {
		t.Errorf("expected install error for pkg, got %v", err)
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}

	doc.Specs[0].URLs = []string{srv.URL + "/cut.tar.gz"}
	_, err = m.Install(ctx, doc)
	if !errors.Is(err, ErrNetwork) || errors.Is(err, ErrArchive) {
		t.Errorf("dropped connection: expected ErrNetwork only, got %v", err)
	}

	cfg := testConfig()
	cfg.ArchiveTimeout = 0
	if _, err := NewManager(cfg); !errors.Is(err, ErrConfig) {
		t.Errorf("expected ErrConfig for bad settings, got %v", err)
	}
}

func TestErrorClassifiesJoinedFailures(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newServer(t)

	cfg := testConfig()
	cfg.KeepGoing = true
	m, err := NewManager(cfg, WithEnv(env.NewMap(nil)))
	if err != nil {
		t.Fatal(err)
	}

	doc := &Document{Specs: []DependencySpec{
		{Package: "gone", Variable: "GONE", URLs: []string{srv.URL + "/gone.tar.gz"}, InstallPath: "${HOME}/data", DataPath: "gone"},
		{Package: "pkg", Variable: "REFDATA", URLs: []string{srv.URL + "/pkg.tar.gz"}, InstallPath: "${HOME}/data", DataPath: "pkg"},
	}}

	report, err := m.Install(context.Background(), doc)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected ErrNetwork through joined errors, got %v", err)
	}
	if report == nil || report.Len() != 1 {
		t.Errorf("expected partial report, got %v", report)
	}
}

func TestSelect(t *testing.T) {
	doc := &Document{Specs: []DependencySpec{
		{Package: "a", Variable: "A"},
		{Package: "b", Variable: "B"},
		{Package: "c", Variable: "C"},
	}}

	got, err := Select(doc, "c", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Specs) != 2 || got.Specs[0].Package != "c" || got.Specs[1].Package != "a" {
		t.Errorf("Select = %+v", got.Specs)
	}

	if same, _ := Select(doc); same != doc {
		t.Error("no names should return the document unchanged")
	}

	_, err = Select(doc, "missing")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("expected ErrPackageNotFound, got %v", err)
	}
}
