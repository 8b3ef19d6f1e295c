package cipher

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
)

// tripleDESCBC implements the legacy tripledes-cbc (three-key, 24-byte
// 3DES) algorithm, registered alongside AES-CBC for interoperability
// with older encryptors even though newer documents should prefer AES.
type tripleDESCBC struct {
	chain.Base
	key     []byte
	pending bytes.Buffer
}

func newTripleDESCBC() *tripleDESCBC { return &tripleDESCBC{} }

func (t *tripleDESCBC) Descriptor() Descriptor {
	return Descriptor{Algorithm: AlgTripleDESCBC, KeySizeLen: 24, KeyTypeEnc: KeyTypeSymmetric, KeyTypeDec: KeyTypeSymmetric}
}

func (t *tripleDESCBC) SetKey(key []byte) error {
	if len(key) != 24 {
		return fmt.Errorf("cipher: 3des-cbc requires a 24-byte key, got %d", len(key))
	}
	t.key = key
	return nil
}

func (t *tripleDESCBC) Write(p []byte) (int, error) {
	t.MarkRunning()
	return t.pending.Write(p)
}

func (t *tripleDESCBC) Flush() error {
	defer t.MarkFinalized()
	block, err := des.NewTripleDESCipher(t.key)
	if err != nil {
		return fmt.Errorf("cipher: 3des-cbc: %w", err)
	}

	var out []byte
	switch t.Direction() {
	case chain.DirectionEncrypt:
		plaintext := pkcs7Pad(t.pending.Bytes(), des.BlockSize)
		iv := make([]byte, des.BlockSize)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return fmt.Errorf("cipher: 3des-cbc: generating iv: %w", err)
		}
		ciphertext := make([]byte, len(plaintext))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
		out = append(iv, ciphertext...)
	case chain.DirectionDecrypt:
		buf := t.pending.Bytes()
		if len(buf) < des.BlockSize || (len(buf)-des.BlockSize)%des.BlockSize != 0 {
			return fmt.Errorf("cipher: 3des-cbc: ciphertext is not a valid length")
		}
		iv, ciphertext := buf[:des.BlockSize], buf[des.BlockSize:]
		plaintext := make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
		out, err = pkcs7Unpad(plaintext, des.BlockSize)
		if err != nil {
			return fmt.Errorf("cipher: 3des-cbc: %w", err)
		}
	default:
		return fmt.Errorf("cipher: 3des-cbc: direction not set")
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

func (t *tripleDESCBC) Read(p []byte) (int, error) { return 0, io.EOF }

func (t *tripleDESCBC) Close() error {
	t.MarkFinalized()
	for i := range t.key {
		t.key[i] = 0
	}
	return nil
}
