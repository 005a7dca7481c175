package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
)

const maxLinkTarget = 4096

// zipSource walks the central directory of a zip file
type zipSource struct {
	rc    *zip.ReadCloser
	files []*zip.File
	next  int
}

func openZip(path string) (*zipSource, error) {
	rc, err := zip.OpenReader(path)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && rc != nil) {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) {
			return nil, formatError("%v", err)
		}
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	return &zipSource{rc: rc, files: rc.File}, nil
}

func (s *zipSource) Next() (*Member, error) {
	if s.next >= len(s.files) {
		return nil, io.EOF
	}
	f := s.files[s.next]
	s.next++

	mode := f.Mode()
	m := &Member{
		Name: f.Name,
		Size: int64(f.UncompressedSize64),
		Mode: mode,
	}

	switch {
	case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
		m.Kind = KindDir
	case mode&fs.ModeSymlink != 0:
		m.Kind = KindSymlink
		target, err := readLinkTarget(f)
		if err != nil {
			return nil, err
		}
		m.Linkname = target
	case mode.IsRegular():
		m.Kind = KindFile
		m.open = func() (io.ReadCloser, error) {
			rc, err := f.Open()
			if err != nil {
				return nil, formatError("%s: %v", f.Name, err)
			}
			return &zipBody{ReadCloser: rc}, nil
		}
	default:
		m.Kind = KindOther
	}
	return m, nil
}

func (s *zipSource) Close() error {
	return s.rc.Close()
}

// zip stores a symlink's target as the entry's contents
func readLinkTarget(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", formatError("%s: %v", f.Name, err)
	}
	defer rc.Close()

	target, err := io.ReadAll(io.LimitReader(rc, maxLinkTarget))
	if err != nil {
		return "", formatError("%s: %v", f.Name, err)
	}
	return string(target), nil
}

// zipBody reports checksum and decompression failures as format errors
type zipBody struct {
	io.ReadCloser
}

func (b *zipBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = formatError("%v", err)
	}
	return n, err
}
