package cipher

import (
	"bytes"
	"io"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
)

// MemSink is the terminal push-discipline transform: it accumulates
// whatever reaches it and exposes the result via Bytes. Every encrypt and
// decrypt chain ends in one of these.
type MemSink struct {
	chain.Base
	buf bytes.Buffer
}

func NewMemSink() *MemSink { return &MemSink{} }

func (s *MemSink) Write(p []byte) (int, error) {
	s.MarkRunning()
	return s.buf.Write(p)
}

func (s *MemSink) Flush() error { s.MarkFinalized(); return nil }

func (s *MemSink) Read(p []byte) (int, error) { return 0, io.EOF }
func (s *MemSink) Close() error                { return nil }

// Bytes returns the accumulated output. The caller takes ownership; the
// sink is not reused after this.
func (s *MemSink) Bytes() []byte {
	return s.buf.Bytes()
}

// URISource is a pull-discipline transform over an already-opened reader.
// It exposes the reader's bytes through the chain.Transform Read contract.
// EncryptURI drains it into memory before the encrypt chain runs; it is
// not linked into that chain, and the chain is not driven by pulling.
type URISource struct {
	chain.Base
	r   io.Reader
	eof bool
}

// NewURISource wraps an already-opened reader (the resolver has already
// dereferenced the URI against the configured schemes) as a pull source.
func NewURISource(r io.Reader) *URISource {
	return &URISource{r: r}
}

func (s *URISource) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe // URISource is pull-only
}

func (s *URISource) Flush() error { return nil }

func (s *URISource) Read(p []byte) (int, error) {
	s.MarkRunning()
	if s.eof {
		return 0, io.EOF
	}
	n, err := s.r.Read(p)
	if err == io.EOF {
		s.eof = true
	}
	return n, err
}

func (s *URISource) Close() error {
	s.MarkFinalized()
	if closer, ok := s.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
