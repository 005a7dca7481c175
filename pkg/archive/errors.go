package archive

import (
	"errors"
	"fmt"
	"io"
)

// ErrFormat is returned when the input is not an archive this package can read
// in the requested mode, or when it is corrupt or truncated.
var ErrFormat = errors.New("unsupported or corrupt archive")

func formatError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// ReadError reports that the reader an archive was streamed from failed,
// as opposed to the archive itself being unreadable.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading archive stream: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// sourceReader remembers the first failure of the underlying reader so that
// decoder errors caused by it are not reported as format errors.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// classify converts a decoder error into either an I/O error or ErrFormat.
func (s *sourceReader) classify(err error) error {
	if err == nil || err == io.EOF || errors.Is(err, ErrFormat) {
		return err
	}
	if s.err != nil {
		return &ReadError{Err: s.err}
	}
	return formatError("%v", err)
}
