package install

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/refdata/pkg/env"
	"github.com/arc-language/refdata/pkg/manifest"
)

// Resolve turns a spec's path templates into absolute directories. ${HOME}
// is replaced first, then other $VAR and ${VAR} references are expanded from
// store (unknown ones are kept as written), then a leading ~ becomes the home
// directory.
func Resolve(spec manifest.DependencySpec, store env.Store) (ResolvedInstall, error) {
	home, err := homeDir(store)
	if err != nil {
		return ResolvedInstall{}, err
	}

	p := strings.ReplaceAll(spec.InstallPath, "${HOME}", home)
	p = expandVars(p, store.Lookup)
	p = expandTilde(p, home)

	installDir, err := filepath.Abs(p)
	if err != nil {
		return ResolvedInstall{}, fmt.Errorf("resolving install path %q: %w", spec.InstallPath, err)
	}

	dataPath := filepath.FromSlash(spec.DataPath)
	finalDir := filepath.Join(installDir, dataPath)
	if filepath.IsAbs(dataPath) {
		finalDir = filepath.Clean(dataPath)
	}

	return ResolvedInstall{InstallDir: installDir, FinalDir: finalDir}, nil
}

func homeDir(store env.Store) (string, error) {
	if home, ok := store.Lookup("HOME"); ok && home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return home, nil
}

func expandTilde(p, home string) string {
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		return filepath.Join(home, p[2:])
	}
	return p
}

// expandVars replaces $name and ${name} with values from lookup. References
// lookup does not know are copied through unchanged.
func expandVars(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "$") {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '$' {
			b.WriteByte(s[i])
			i++
			continue
		}

		name, width := scanVar(s[i+1:])
		if name == "" {
			b.WriteByte('$')
			i++
			continue
		}
		if v, ok := lookup(name); ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+1+width])
		}
		i += 1 + width
	}
	return b.String()
}

func scanVar(s string) (name string, width int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end <= 1 {
			return "", 0
		}
		return s[1:end], end + 1
	}

	n := 0
	for n < len(s) && isVarChar(s[n]) {
		n++
	}
	return s[:n], n
}

func isVarChar(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// populated reports whether dir exists and has at least one entry
func populated(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	return err == nil && len(names) > 0
}
