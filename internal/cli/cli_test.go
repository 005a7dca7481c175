package cli

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func archiveBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	if err := tw.WriteHeader(&tar.Header{Name: "pkg/a.txt", Mode: 0644, Size: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("a")); err != nil {
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

// setup isolates HOME and the variable the test document installs, and
// writes a dependency document pointing at a local archive server
func setup(t *testing.T) (home, docPath string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("REFDATA", "")

	payload := archiveBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write(payload); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	docPath = filepath.Join(t.TempDir(), "deps.yaml")
	doc := fmt.Sprintf(`install_files:
  pkg:
    version: "1.0"
    environment_variable: REFDATA
    data_url: [%s/pkg.tar.gz]
    install_path: ${HOME}/data
    data_path: pkg
`, srv.URL)
	if err := os.WriteFile(docPath, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	return home, docPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestInstallJSON(t *testing.T) {
	home, doc := setup(t)

	out, err := run(t, "install", doc, "--json")
	if err != nil {
		t.Fatalf("install: %v", err)
	}

	var report map[string]struct {
		Path         string `json:"path"`
		PreInstalled bool   `json:"pre_installed"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	got := report["REFDATA"]
	if got.Path != filepath.Join(home, "data", "pkg") || got.PreInstalled {
		t.Errorf("report = %+v", report)
	}
}

func TestInstallShell(t *testing.T) {
	home, doc := setup(t)

	out, err := run(t, "install", doc, "--shell")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	want := "export REFDATA='" + filepath.Join(home, "data", "pkg") + "'\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestInstallEnvFile(t *testing.T) {
	home, doc := setup(t)
	envFile := filepath.Join(t.TempDir(), "env.json")

	if _, err := run(t, "install", doc, "--env-file", envFile); err != nil {
		t.Fatalf("install: %v", err)
	}

	data, err := os.ReadFile(envFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), filepath.Join(home, "data", "pkg")) {
		t.Errorf("env file missing path: %s", data)
	}
}

func TestInstallRejectsConflictingOutputs(t *testing.T) {
	_, doc := setup(t)
	if _, err := run(t, "install", doc, "--json", "--shell"); err == nil {
		t.Error("expected error for --json with --shell")
	}
}

func TestInstallUnknownPackage(t *testing.T) {
	_, doc := setup(t)
	_, err := run(t, "install", doc, "-p", "nope")
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected package not found error, got %v", err)
	}
}

func TestStatusAndList(t *testing.T) {
	_, doc := setup(t)

	out, err := run(t, "status", doc)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "needs-install") {
		t.Errorf("status before install:\n%s", out)
	}

	if _, err := run(t, "install", doc); err != nil {
		t.Fatalf("install: %v", err)
	}
	// install sets REFDATA in the process, which makes it a preset
	t.Setenv("REFDATA", "")

	out, err = run(t, "status", doc)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "installed") || strings.Contains(out, "needs-install") {
		t.Errorf("status after install:\n%s", out)
	}

	out, err = run(t, "list", doc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"pkg", "1.0", "REFDATA", "${HOME}/data/pkg"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitAndShow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := run(t, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	path := filepath.Join(home, ".config", "refdata", "config.yaml")
	if !strings.Contains(out, path) {
		t.Errorf("init output = %q", out)
	}
	if _, err := run(t, "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := run(t, "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	t.Setenv("REFDATA_ARCHIVE_TIMEOUT", "10m")
	out, err = run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "archive_timeout: 10m0s") {
		t.Errorf("config show did not apply override:\n%s", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("REFDATA_RETRY_ATTEMPTS", "0")

	if _, err := run(t, "config", "show"); err == nil {
		t.Error("expected validation error")
	}
	if _, err := run(t, "version"); err != nil {
		t.Errorf("version should not need a valid config: %v", err)
	}
}
