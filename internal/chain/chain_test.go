package chain

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// upperTransform uppercases bytes as they pass through; used to exercise
// forwarding without depending on internal/cipher.
type upperTransform struct {
	Base
}

func (u *upperTransform) Write(p []byte) (int, error) {
	u.MarkRunning()
	out := bytes.ToUpper(p)
	if _, err := u.forwardWrite(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (u *upperTransform) Flush() error {
	u.MarkFinalized()
	return u.forwardFlush()
}

func (u *upperTransform) Read(p []byte) (int, error) { return 0, io.EOF }
func (u *upperTransform) Close() error                { return nil }

// sinkTransform accumulates whatever it's given.
type sinkTransform struct {
	Base
	buf bytes.Buffer
}

func (s *sinkTransform) Write(p []byte) (int, error) {
	s.MarkRunning()
	return s.buf.Write(p)
}

func (s *sinkTransform) Flush() error { s.MarkFinalized(); return nil }

func (s *sinkTransform) Read(p []byte) (int, error) { return 0, io.EOF }
func (s *sinkTransform) Close() error                { return nil }

// nonBinaryTransform reports a non-binary Kind to exercise rejection.
type nonBinaryTransform struct {
	upperTransform
}

func (n *nonBinaryTransform) Kind() Kind { return KindXML }

func TestChainPushForwardsThroughStages(t *testing.T) {
	c := New()
	sink := &sinkTransform{}
	require.NoError(t, c.AddTail(&upperTransform{}))
	require.NoError(t, c.AddTail(sink))

	_, err := c.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	require.Equal(t, "HELLO", sink.buf.String())
}

func TestChainRejectsNonBinaryTransform(t *testing.T) {
	c := New()
	err := c.AddTail(&nonBinaryTransform{})
	require.ErrorIs(t, err, ErrInvalidTransform)
	require.True(t, c.Empty())
}

func TestChainAddHeadPrepends(t *testing.T) {
	c := New()
	sink := &sinkTransform{}
	require.NoError(t, c.AddTail(sink))
	require.NoError(t, c.AddHead(&upperTransform{}))

	_, err := c.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())
	require.Equal(t, "WORLD", sink.buf.String())
}

func TestChainDestroyEmptiesChain(t *testing.T) {
	c := New()
	require.NoError(t, c.AddTail(&sinkTransform{}))
	require.False(t, c.Empty())
	require.NoError(t, c.Destroy())
	require.True(t, c.Empty())
}

func TestChainTransformsPreservesOrder(t *testing.T) {
	c := New()
	a := &upperTransform{}
	b := &sinkTransform{}
	require.NoError(t, c.AddTail(a))
	require.NoError(t, c.AddTail(b))

	ts := c.Transforms()
	require.Len(t, ts, 2)
	require.Same(t, Transform(a), ts[0])
	require.Same(t, Transform(b), ts[1])
}
