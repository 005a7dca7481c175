// pkg/archive/extract.go
package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/arc-language/refdata/pkg/metrics"
)

// Config configures an Extractor
type Config struct {
	Logger  *log.Logger
	Debug   bool
	Metrics metrics.Recorder

	// OnReject is called with the original name of every member that is
	// not written because it would land outside the destination.
	OnReject func(name string)
}

// Extractor writes archive members below a destination directory
type Extractor struct {
	logger   *log.Logger
	metrics  metrics.Recorder
	onReject func(name string)
}

// NewExtractor creates an extractor
func NewExtractor(cfg *Config) *Extractor {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "archive", Level: log.DebugLevel})
		} else {
			logger = log.New(io.Discard)
		}
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}

	return &Extractor{logger: logger, metrics: rec, onReject: cfg.OnReject}
}

// ExtractStream reads a tar archive (plain, gzip, bzip2, xz or zstd) from r
// in a single forward pass and writes it below dest. Zip input, corrupt data
// and truncated data return an error matching ErrFormat. Members written
// before a failure are left in place.
func (e *Extractor) ExtractStream(r io.Reader, dest string) error {
	src, err := openStream(r)
	if err != nil {
		return err
	}
	defer src.Close()

	return e.extract(src, dest)
}

// ExtractFile extracts an archive stored on disk. Besides every format
// ExtractStream accepts, it reads zip archives through their central directory.
func (e *Extractor) ExtractFile(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	c, err := Detect(bufio.NewReader(f))
	if err != nil {
		return err
	}

	if c == CompressionZip {
		zs, err := openZip(archivePath)
		if err != nil {
			return err
		}
		defer zs.Close()
		return e.extract(zs, dest)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}
	return e.ExtractStream(f, dest)
}

func (e *Extractor) extract(src Source, dest string) error {
	dest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	safe := Filter(src, e.reject)
	written := 0
	for {
		m, err := safe.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		ok, err := e.write(dest, m)
		if err != nil {
			return err
		}
		if ok {
			written++
		}
	}

	e.logger.Debug("extracted archive", "dest", dest, "members", written)
	return nil
}

func (e *Extractor) reject(name string) {
	e.metrics.IncRejected()
	e.logger.Debug("skipping member outside destination", "name", name)
	if e.onReject != nil {
		e.onReject(name)
	}
}

// write materializes one member and reports whether anything was written
func (e *Extractor) write(dest string, m *Member) (bool, error) {
	switch m.Kind {
	case KindDir:
		target, err := securejoin.SecureJoin(dest, m.Name)
		if err != nil {
			return false, fmt.Errorf("resolve %s: %w", m.Name, err)
		}
		if err := os.MkdirAll(target, 0755); err != nil {
			return false, fmt.Errorf("create directory %s: %w", m.Name, err)
		}
		return true, nil

	case KindFile:
		target, err := place(dest, m.Name)
		if err != nil {
			return false, err
		}
		return true, writeFile(target, m)

	case KindSymlink:
		if !linkStaysInside(m.Name, m.Linkname) {
			e.reject(m.Name)
			return false, nil
		}
		parent, err := resolveParent(dest, m.Name)
		if err != nil {
			return false, err
		}
		// the parent may sit behind an earlier symlink
		if !resolvedLinkInside(dest, parent, m.Linkname) {
			e.reject(m.Name)
			return false, nil
		}
		target, err := replaceable(parent, m.Name)
		if err != nil {
			return false, err
		}
		if err := os.Symlink(m.Linkname, target); err != nil {
			return false, fmt.Errorf("create symlink %s: %w", m.Name, err)
		}
		return true, nil

	case KindHardlink:
		linkname, ok := SanitizePath(m.Linkname)
		if !ok {
			e.reject(m.Name)
			return false, nil
		}
		source, err := securejoin.SecureJoin(dest, linkname)
		if err != nil {
			return false, fmt.Errorf("resolve %s: %w", m.Linkname, err)
		}
		target, err := place(dest, m.Name)
		if err != nil {
			return false, err
		}
		if err := os.Link(source, target); err != nil {
			// the link source may itself have been skipped
			e.logger.Debug("skipping hard link", "name", m.Name, "target", m.Linkname, "err", err)
			return false, nil
		}
		return true, nil

	default:
		e.logger.Debug("skipping special member", "name", m.Name, "mode", m.Mode)
		return false, nil
	}
}

// place returns the on-disk path for name with its parent directory created
// and any previous entry at that path removed.
func place(dest, name string) (string, error) {
	parent, err := resolveParent(dest, name)
	if err != nil {
		return "", err
	}
	return replaceable(parent, name)
}

// resolveParent returns the real directory name's parent lives in, following
// symlinks without leaving dest, and creates it.
func resolveParent(dest, name string) (string, error) {
	parent, err := securejoin.SecureJoin(dest, path.Dir(name))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	if err := os.MkdirAll(parent, 0755); err != nil {
		return "", fmt.Errorf("create parent dir for %s: %w", name, err)
	}
	return parent, nil
}

func replaceable(parent, name string) (string, error) {
	target := filepath.Join(parent, path.Base(name))
	if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
		if err := os.Remove(target); err != nil {
			return "", fmt.Errorf("replace %s: %w", name, err)
		}
	}
	return target, nil
}

func writeFile(target string, m *Member) error {
	perm := m.Mode.Perm()
	if perm == 0 {
		perm = 0644
	}

	body, err := m.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create file %s: %w", m.Name, err)
	}

	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if errors.Is(err, ErrFormat) {
			return err
		}
		return fmt.Errorf("write file %s: %w", m.Name, err)
	}
	if n != m.Size {
		return formatError("%s: wrote %d of %d bytes", m.Name, n, m.Size)
	}
	return nil
}

// linkStaysInside reports whether a symlink at name pointing to target
// resolves below the archive root. A ".." after a named component is refused
// because the OS resolves that component, possibly another link, first.
func linkStaysInside(name, target string) bool {
	target = strings.ReplaceAll(target, `\`, "/")
	if target == "" || path.IsAbs(target) || hasDriveLetter(target) {
		return false
	}
	named := false
	for _, part := range strings.Split(target, "/") {
		switch part {
		case "", ".":
		case "..":
			if named {
				return false
			}
		default:
			named = true
		}
	}
	clean := path.Clean(path.Join(path.Dir(name), target))
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// resolvedLinkInside reports whether a link created in parent pointing to
// target stays below dest.
func resolvedLinkInside(dest, parent, target string) bool {
	target = filepath.FromSlash(strings.ReplaceAll(target, `\`, "/"))
	rel, err := filepath.Rel(dest, filepath.Join(parent, target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
