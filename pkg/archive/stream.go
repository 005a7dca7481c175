// pkg/archive/stream.go
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Compression identifies the outer encoding of a stream
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionBzip2
	CompressionXz
	CompressionZstd
	CompressionZip
)

var magics = []struct {
	prefix []byte
	c      Compression
}{
	{[]byte{0x1f, 0x8b}, CompressionGzip},
	{[]byte("BZh"), CompressionBzip2},
	{[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, CompressionXz},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, CompressionZstd},
	{[]byte("PK\x03\x04"), CompressionZip},
	{[]byte("PK\x05\x06"), CompressionZip},
}

// Detect identifies the compression of a stream from its magic bytes
// without consuming them.
func Detect(br *bufio.Reader) (Compression, error) {
	head, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return CompressionNone, err
	}
	if len(head) == 0 {
		return CompressionNone, formatError("empty input")
	}
	for _, m := range magics {
		if bytes.HasPrefix(head, m.prefix) {
			return m.c, nil
		}
	}
	return CompressionNone, nil
}

// streamSource reads a tar archive, optionally compressed, front to back.
type streamSource struct {
	in    *sourceReader
	tr    *tar.Reader
	close func() error
}

func openStream(r io.Reader) (*streamSource, error) {
	in := &sourceReader{r: r}
	br := bufio.NewReaderSize(in, 64<<10)

	c, err := Detect(br)
	if err != nil {
		return nil, in.classify(err)
	}

	var (
		body   io.Reader = br
		closer           = func() error { return nil }
	)

	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, in.classify(err)
		}
		body, closer = zr, zr.Close
	case CompressionBzip2:
		body = bzip2.NewReader(br)
	case CompressionXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, in.classify(err)
		}
		body = xr
	case CompressionZstd:
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, in.classify(err)
		}
		body = dec
		closer = func() error {
			dec.Close()
			return nil
		}
	case CompressionZip:
		return nil, formatError("zip archives need random access")
	}

	return &streamSource{in: in, tr: tar.NewReader(body), close: closer}, nil
}

func (s *streamSource) Next() (*Member, error) {
	hdr, err := s.tr.Next()
	if err != nil && !(errors.Is(err, tar.ErrInsecurePath) && hdr != nil) {
		return nil, s.in.classify(err)
	}

	m := &Member{
		Name:     hdr.Name,
		Size:     hdr.Size,
		Mode:     hdr.FileInfo().Mode(),
		Linkname: hdr.Linkname,
	}

	switch hdr.Typeflag {
	case tar.TypeReg, '\x00':
		m.Kind = KindFile
		m.open = func() (io.ReadCloser, error) {
			return io.NopCloser(&tarBody{src: s}), nil
		}
	case tar.TypeDir:
		m.Kind = KindDir
	case tar.TypeSymlink:
		m.Kind = KindSymlink
	case tar.TypeLink:
		m.Kind = KindHardlink
	default:
		m.Kind = KindOther
	}
	return m, nil
}

func (s *streamSource) Close() error {
	return s.close()
}

// tarBody reads the current member, classifying failures like Next does
type tarBody struct {
	src *streamSource
}

func (b *tarBody) Read(p []byte) (int, error) {
	n, err := b.src.tr.Read(p)
	if err != nil && err != io.EOF {
		err = b.src.in.classify(err)
	}
	return n, err
}
