package cipher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
)

func roundTrip(t *testing.T, algID string, key, plaintext []byte) []byte {
	t.Helper()

	enc, err := Create(algID)
	require.NoError(t, err)
	require.NoError(t, enc.SetDirection(chain.DirectionEncrypt))
	require.NoError(t, enc.SetKey(key))
	encSink := NewMemSink()
	enc.SetNext(encSink)
	_, err = enc.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, enc.Flush())
	ciphertext := encSink.Bytes()
	require.NotEqual(t, plaintext, ciphertext)

	dec, err := Create(algID)
	require.NoError(t, err)
	require.NoError(t, dec.SetDirection(chain.DirectionDecrypt))
	require.NoError(t, dec.SetKey(key))
	decSink := NewMemSink()
	dec.SetNext(decSink)
	_, err = dec.Write(ciphertext)
	require.NoError(t, err)
	require.NoError(t, dec.Flush())
	return decSink.Bytes()
}

func TestAES128CBCRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	got := roundTrip(t, AlgAES128CBC, key, []byte("hello"))
	require.Equal(t, "hello", string(got))
}

func TestAES256GCMRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	got := roundTrip(t, AlgAES256GCM, key, []byte("the quick brown fox"))
	require.Equal(t, "the quick brown fox", string(got))
}

func TestTripleDESCBCRoundTrip(t *testing.T) {
	key := make([]byte, 24)
	for i := range key {
		key[i] = byte(i + 1)
	}
	got := roundTrip(t, AlgTripleDESCBC, key, []byte("legacy payload"))
	require.Equal(t, "legacy payload", string(got))
}

func TestCreateUnknownAlgorithm(t *testing.T) {
	_, err := Create("http://example.org/unknown-alg")
	require.Error(t, err)
}

func TestAESCBCRejectsWrongKeyLength(t *testing.T) {
	tr, err := Create(AlgAES128CBC)
	require.NoError(t, err)
	require.Error(t, tr.SetKey(make([]byte, 5)))
}

func TestSupported(t *testing.T) {
	require.True(t, Supported(AlgAES128CBC))
	require.False(t, Supported("nope"))
}
