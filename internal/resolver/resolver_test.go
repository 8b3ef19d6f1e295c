package resolver

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDataURI(t *testing.T) {
	r := New(nil)
	payload := base64.StdEncoding.EncodeToString([]byte("hello ciphertext"))
	got, err := r.Resolve(context.Background(), "data:application/octet-stream;base64,"+payload)
	require.NoError(t, err)
	require.Equal(t, "hello ciphertext", string(got))
}

func TestResolveFileURI(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ct.bin")
	require.NoError(t, os.WriteFile(path, []byte("file contents"), 0o600))

	r := New(nil)
	got, err := r.Resolve(context.Background(), "file://"+path)
	require.NoError(t, err)
	require.Equal(t, "file contents", string(got))
}

func TestResolveHTTPURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("remote ciphertext"))
	}))
	defer srv.Close()

	r := New(nil)
	got, err := r.Resolve(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "remote ciphertext", string(got))
}

func TestResolveUnsupportedScheme(t *testing.T) {
	r := New(nil)
	_, err := r.Resolve(context.Background(), "ftp://example.org/ct")
	require.Error(t, err)
}

func TestResolveS3WithoutClientFails(t *testing.T) {
	r := New(nil)
	_, err := r.Resolve(context.Background(), "s3://bucket/key")
	require.Error(t, err)
}
