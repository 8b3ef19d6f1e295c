package cipher

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
)

// aesCBC implements AES-CBC as a push-discipline chain.Transform. It
// accumulates the whole message and transforms it in one pass on Flush,
// rather than streaming block-by-block — every cipher transform in this
// registry buffers a full element this way.
type aesCBC struct {
	chain.Base
	keyLen  int
	key     []byte
	pending bytes.Buffer
}

func newAESCBC(keyLen int) *aesCBC { return &aesCBC{keyLen: keyLen} }

func (t *aesCBC) Descriptor() Descriptor {
	alg := map[int]string{16: AlgAES128CBC, 24: AlgAES192CBC, 32: AlgAES256CBC}[t.keyLen]
	return Descriptor{Algorithm: alg, KeySizeLen: t.keyLen, KeyTypeEnc: KeyTypeSymmetric, KeyTypeDec: KeyTypeSymmetric}
}

func (t *aesCBC) SetKey(key []byte) error {
	if len(key) != t.keyLen {
		return fmt.Errorf("cipher: aes-cbc requires a %d-byte key, got %d", t.keyLen, len(key))
	}
	t.key = key
	return nil
}

func (t *aesCBC) Write(p []byte) (int, error) {
	t.MarkRunning()
	return t.pending.Write(p)
}

func (t *aesCBC) Flush() error {
	defer t.MarkFinalized()
	block, err := aes.NewCipher(t.key)
	if err != nil {
		return fmt.Errorf("cipher: aes-cbc: %w", err)
	}

	var out []byte
	switch t.Direction() {
	case chain.DirectionEncrypt:
		plaintext := pkcs7Pad(t.pending.Bytes(), aes.BlockSize)
		bufp := getBuffer()
		defer putBuffer(bufp)
		iv := (*bufp)[:aes.BlockSize]
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return fmt.Errorf("cipher: aes-cbc: generating iv: %w", err)
		}
		ciphertext := make([]byte, len(plaintext))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
		out = append(append([]byte(nil), iv...), ciphertext...)
	case chain.DirectionDecrypt:
		buf := t.pending.Bytes()
		if len(buf) < aes.BlockSize || (len(buf)-aes.BlockSize)%aes.BlockSize != 0 {
			return fmt.Errorf("cipher: aes-cbc: ciphertext is not a valid length")
		}
		iv, ciphertext := buf[:aes.BlockSize], buf[aes.BlockSize:]
		plaintext := make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
		out, err = pkcs7Unpad(plaintext, aes.BlockSize)
		if err != nil {
			return fmt.Errorf("cipher: aes-cbc: %w", err)
		}
	default:
		return fmt.Errorf("cipher: aes-cbc: direction not set")
	}
	t.pending.Reset()

	if t.Next() == nil {
		return nil
	}
	if _, err := t.Next().Write(out); err != nil {
		return err
	}
	return t.Next().Flush()
}

func (t *aesCBC) Read(p []byte) (int, error) { return 0, io.EOF }

func (t *aesCBC) Close() error {
	t.MarkFinalized()
	for i := range t.key {
		t.key[i] = 0
	}
	return nil
}

// aesGCM implements the xmlenc11 AES-GCM algorithms.
type aesGCM struct {
	chain.Base
	keyLen  int
	key     []byte
	pending bytes.Buffer
}

func newAESGCM(keyLen int) *aesGCM { return &aesGCM{keyLen: keyLen} }

func (t *aesGCM) Descriptor() Descriptor {
	alg := map[int]string{16: AlgAES128GCM, 24: AlgAES192GCM, 32: AlgAES256GCM}[t.keyLen]
	return Descriptor{Algorithm: alg, KeySizeLen: t.keyLen, KeyTypeEnc: KeyTypeSymmetric, KeyTypeDec: KeyTypeSymmetric}
}

func (t *aesGCM) SetKey(key []byte) error {
	if len(key) != t.keyLen {
		return fmt.Errorf("cipher: aes-gcm requires a %d-byte key, got %d", t.keyLen, len(key))
	}
	t.key = key
	return nil
}

func (t *aesGCM) Write(p []byte) (int, error) {
	t.MarkRunning()
	return t.pending.Write(p)
}

func (t *aesGCM) Flush() error {
	defer t.MarkFinalized()
	block, err := aes.NewCipher(t.key)
	if err != nil {
		return fmt.Errorf("cipher: aes-gcm: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("cipher: aes-gcm: %w", err)
	}

	var out []byte
	switch t.Direction() {
	case chain.DirectionEncrypt:
		bufp := getBuffer()
		defer putBuffer(bufp)
		nonce := (*bufp)[:gcm.NonceSize()]
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return fmt.Errorf("cipher: aes-gcm: generating nonce: %w", err)
		}
		sealed := gcm.Seal(nil, nonce, t.pending.Bytes(), nil)
		out = append(append([]byte(nil), nonce...), sealed...)
	case chain.DirectionDecrypt:
		buf := t.pending.Bytes()
		if len(buf) < gcm.NonceSize() {
			return fmt.Errorf("cipher: aes-gcm: ciphertext shorter than nonce")
		}
		nonce, sealed := buf[:gcm.NonceSize()], buf[gcm.NonceSize():]
		out, err = gcm.Open(nil, nonce, sealed, nil)
		if err != nil {
			return fmt.Errorf("cipher: aes-gcm: %w", err)
		}
	default:
		return fmt.Errorf("cipher: aes-gcm: direction not set")
	}
	t.pending.Reset()

	if t.Next() == nil {
		return nil
	}
	if _, err := t.Next().Write(out); err != nil {
		return err
	}
	return t.Next().Flush()
}

func (t *aesGCM) Read(p []byte) (int, error) { return 0, io.EOF }

func (t *aesGCM) Close() error {
	t.MarkFinalized()
	for i := range t.key {
		t.key[i] = 0
	}
	return nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded data length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
