// Package resolver dereferences a CipherReference/KeyInfo RetrievalMethod
// URI into the bytes it names. Four schemes are recognized: data:, file:,
// http(s):, and s3:. Everything else is rejected before any I/O happens.
package resolver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kenneth/xmlenc-gateway/internal/s3"
)

// Resolver dereferences URIs against the configured backends. The zero
// value resolves data: and file: URIs only; S3Client and HTTPClient are
// optional and enable their respective schemes.
type Resolver struct {
	S3Client   s3.Client
	HTTPClient *http.Client
}

// New returns a Resolver with the given optional backends. Pass a nil
// s3Client to disable the s3: scheme.
func New(s3Client s3.Client) *Resolver {
	return &Resolver{
		S3Client:   s3Client,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Resolve dereferences uri and returns its full contents. The whole
// resource is buffered in memory — CipherReference targets are expected
// to be single ciphertext blobs, not streams.
func (r *Resolver) Resolve(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("resolver: parsing uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "data":
		return resolveData(uri)
	case "file":
		return os.ReadFile(u.Path)
	case "http", "https":
		return r.resolveHTTP(ctx, uri)
	case "s3":
		return r.resolveS3(ctx, u)
	default:
		return nil, fmt.Errorf("resolver: unsupported URI scheme %q", u.Scheme)
	}
}

// resolveData decodes a data: URI of the form data:[mediatype][;base64],data.
// Only the base64 variant is supported, matching the CipherReference
// examples in the wire format.
func resolveData(uri string) ([]byte, error) {
	const prefix = "data:"
	body := strings.TrimPrefix(uri, prefix)
	idx := strings.IndexByte(body, ',')
	if idx < 0 {
		return nil, fmt.Errorf("resolver: malformed data URI")
	}
	meta, payload := body[:idx], body[idx+1:]
	if !strings.HasSuffix(meta, ";base64") && meta != "" {
		return nil, fmt.Errorf("resolver: only base64 data URIs are supported")
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("resolver: decoding data URI payload: %w", err)
	}
	return decoded, nil
}

func (r *Resolver) resolveHTTP(ctx context.Context, uri string) ([]byte, error) {
	if r.HTTPClient == nil {
		return nil, fmt.Errorf("resolver: http(s) scheme used but no HTTP client configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("resolver: building request for %q: %w", uri, err)
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver: fetching %q: %w", uri, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver: %q returned status %d", uri, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// resolveS3 parses an s3://bucket/key URI and fetches the object.
func (r *Resolver) resolveS3(ctx context.Context, u *url.URL) ([]byte, error) {
	if r.S3Client == nil {
		return nil, fmt.Errorf("resolver: s3 scheme used but no S3 client configured")
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("resolver: s3 uri must be s3://bucket/key")
	}
	body, _, err := r.S3Client.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("resolver: fetching s3://%s/%s: %w", bucket, key, err)
	}
	defer body.Close()
	return io.ReadAll(body)
}
