package cipher

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
)

// rsaTransform implements key-transport via RSA-OAEP or RSA-v1.5.
// Key material is a DER-encoded public key (encrypt/wrap) or private key
// (decrypt/unwrap), set via SetKey.
type rsaTransform struct {
	chain.Base
	oaep    bool
	pub     *rsa.PublicKey
	priv    *rsa.PrivateKey
	pending bytes.Buffer
}

func newRSATransform(oaep bool) *rsaTransform { return &rsaTransform{oaep: oaep} }

func (t *rsaTransform) Descriptor() Descriptor {
	alg := AlgRSA15
	if t.oaep {
		alg = AlgRSAOAEP
	}
	return Descriptor{Algorithm: alg, KeyTypeEnc: KeyTypeAsymmetricPublic, KeyTypeDec: KeyTypeAsymmetricPrivate}
}

// SetKey accepts either a DER-encoded PKIX public key (for encrypt) or a
// PKCS#8 private key (for decrypt); the caller's key manager supplies
// whichever is appropriate for the configured Direction.
func (t *rsaTransform) SetKey(key []byte) error {
	if pub, err := x509.ParsePKIXPublicKey(key); err == nil {
		rpub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("cipher: rsa: key is not an RSA public key")
		}
		t.pub = rpub
		return nil
	}
	priv, err := x509.ParsePKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("cipher: rsa: %w", err)
	}
	rpriv, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("cipher: rsa: key is not an RSA private key")
	}
	t.priv = rpriv
	return nil
}

func (t *rsaTransform) Write(p []byte) (int, error) {
	t.MarkRunning()
	return t.pending.Write(p)
}

func (t *rsaTransform) Flush() error {
	defer t.MarkFinalized()
	var out []byte
	var err error

	switch t.Direction() {
	case chain.DirectionEncrypt:
		if t.pub == nil {
			return fmt.Errorf("cipher: rsa: no public key set")
		}
		if t.oaep {
			out, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, t.pub, t.pending.Bytes(), nil)
		} else {
			out, err = rsa.EncryptPKCS1v15(rand.Reader, t.pub, t.pending.Bytes())
		}
	case chain.DirectionDecrypt:
		if t.priv == nil {
			return fmt.Errorf("cipher: rsa: no private key set")
		}
		if t.oaep {
			out, err = rsa.DecryptOAEP(sha1.New(), rand.Reader, t.priv, t.pending.Bytes(), nil)
		} else {
			out, err = rsa.DecryptPKCS1v15(rand.Reader, t.priv, t.pending.Bytes())
		}
	default:
		return fmt.Errorf("cipher: rsa: direction not set")
	}
	if err != nil {
		return fmt.Errorf("cipher: rsa: %w", err)
	}
	t.pending.Reset()

	if t.Next() == nil {
		return nil
	}
	if _, werr := t.Next().Write(out); werr != nil {
		return werr
	}
	return t.Next().Flush()
}

func (t *rsaTransform) Read(p []byte) (int, error) { return 0, io.EOF }
func (t *rsaTransform) Close() error                { t.MarkFinalized(); return nil }
