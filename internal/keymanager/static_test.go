package keymanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticKeyringWrapUnwrap(t *testing.T) {
	kr := NewStaticKeyring(nil)
	env, err := kr.WrapKey(context.Background(), []byte("dek-bytes"), nil)
	require.NoError(t, err)

	got, err := kr.UnwrapKey(context.Background(), env, nil)
	require.NoError(t, err)
	require.Equal(t, "dek-bytes", string(got))
}

func TestStaticKeyringResolverByID(t *testing.T) {
	kr := NewStaticKeyring(map[string][]byte{"k1": []byte("0123456789abcdef")})
	resolve := kr.Resolver()

	got, err := resolve(context.Background(), Hint{KeyID: "k1", Usage: UsageEncrypt})
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef", string(got))

	_, err = resolve(context.Background(), Hint{KeyID: "missing"})
	require.Error(t, err)
}
