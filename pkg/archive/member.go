// pkg/archive/member.go
package archive

import (
	"io"
	"io/fs"
)

// Kind classifies an archive member
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindHardlink
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindHardlink:
		return "hardlink"
	default:
		return "other"
	}
}

// Member is one entry of an archive. It is only valid until the next call
// to Next on the source that produced it.
type Member struct {
	Name     string
	Kind     Kind
	Size     int64
	Mode     fs.FileMode
	Linkname string

	open func() (io.ReadCloser, error)
}

// Open returns the member's contents. Non-file members read as empty.
func (m *Member) Open() (io.ReadCloser, error) {
	if m.open == nil {
		return io.NopCloser(eofReader{}), nil
	}
	return m.open()
}

// Source yields archive members in order and returns io.EOF when exhausted.
type Source interface {
	Next() (*Member, error)
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
