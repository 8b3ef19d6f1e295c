package cipher

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
)

// encodeBase64/decodeBase64 implement the default CipherValue encoding.
func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 string: %w", err)
	}
	return data, nil
}

// DecodeBase64 decodes a standalone base64 Transform step, for callers
// outside this package (the CipherReference read path).
func DecodeBase64(data []byte) ([]byte, error) {
	return decodeBase64(string(data))
}

// base64Encoder is a push-discipline chain.Transform that base64-encodes
// whatever it's written and forwards the encoded text downstream. Used
// only on the encrypt path, appended after the cipher transform.
type base64Encoder struct {
	chain.Base
	pending bytes.Buffer
}

func NewBase64Encoder() chain.Transform { return &base64Encoder{} }

func (b *base64Encoder) Write(p []byte) (int, error) {
	b.MarkRunning()
	b.pending.Write(p)
	return len(p), nil
}

func (b *base64Encoder) Flush() error {
	b.MarkFinalized()
	encoded := encodeBase64(b.pending.Bytes())
	b.pending.Reset()
	if b.Next() == nil {
		return nil
	}
	if _, err := b.Next().Write([]byte(encoded)); err != nil {
		return err
	}
	return b.Next().Flush()
}

func (b *base64Encoder) Read(p []byte) (int, error) { return 0, io.EOF }
func (b *base64Encoder) Close() error                { return nil }

// base64Decoder is a push-discipline chain.Transform that base64-decodes
// whatever it's written. Prepended to the chain head on decrypt, per the
// CipherData driver (C6) read path.
type base64Decoder struct {
	chain.Base
	pending bytes.Buffer
}

func NewBase64Decoder() chain.Transform { return &base64Decoder{} }

func (b *base64Decoder) Write(p []byte) (int, error) {
	b.MarkRunning()
	b.pending.Write(p)
	return len(p), nil
}

func (b *base64Decoder) Flush() error {
	b.MarkFinalized()
	decoded, err := decodeBase64(b.pending.String())
	b.pending.Reset()
	if err != nil {
		return err
	}
	if b.Next() == nil {
		return nil
	}
	if _, werr := b.Next().Write(decoded); werr != nil {
		return werr
	}
	return b.Next().Flush()
}

func (b *base64Decoder) Read(p []byte) (int, error) { return 0, io.EOF }
func (b *base64Decoder) Close() error                { return nil }
