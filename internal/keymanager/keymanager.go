// Package keymanager provides the pluggable key-resolution component that
// sits outside the core XML-Enc engine's scope. internal/xmlenc never
// talks to KMIP or a static keyring directly — only to the Resolver
// function type this package exposes.
package keymanager

import "context"

// KeyManager abstracts an external KMS that wraps and unwraps per-document
// data encryption keys (DEKs) using envelope encryption.
type KeyManager interface {
	// Provider returns a short identifier (e.g. "cosmian-kmip", "static")
	// used for diagnostics and recorded on each KeyEnvelope.
	Provider() string

	// WrapKey encrypts the provided plaintext DEK and returns an
	// envelope suitable for persisting as KeyInfo/RetrievalMethod
	// metadata alongside the EncryptedData element.
	WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error)

	// UnwrapKey decrypts the ciphertext contained in the given envelope
	// and returns the plaintext DEK.
	UnwrapKey(ctx context.Context, envelope *KeyEnvelope, metadata map[string]string) ([]byte, error)

	// ActiveKeyVersion returns the version identifier of the primary
	// wrapping key.
	ActiveKeyVersion(ctx context.Context) (int, error)

	// HealthCheck verifies that the KMS is accessible and operational.
	HealthCheck(ctx context.Context) error

	// Close releases any underlying resources.
	Close(ctx context.Context) error
}

// KeyEnvelope captures the information required to unwrap a DEK.
type KeyEnvelope struct {
	KeyID      string
	KeyVersion int
	Provider   string
	Ciphertext []byte
}

// MetaKeyVersion is the metadata key name for recording which wrapping key
// version protected the DEK. No code in this repository writes or reads it.
const MetaKeyVersion = "xmlenc-key-version"

// Usage distinguishes which direction a requested key will be used for.
type Usage int

const (
	UsageEncrypt Usage = iota
	UsageDecrypt
)

// Hint carries the selection inputs needed to resolve a key: keyType,
// keyUsage, keyId, plus the optional KeyInfo element serialized as XML
// (left as a string so this package stays independent of
// internal/template).
type Hint struct {
	KeyType  string // algorithm's required key type for the current direction
	Usage    Usage
	KeyID    string
	KeyInfo  string // serialized KeyInfo element, if present
}

// Resolver is the key-lookup callback: given a Hint, return the resolved
// key material or an error. internal/xmlenc's Ctx holds one of these; it
// never imports this package's concrete managers directly.
type Resolver func(ctx context.Context, hint Hint) ([]byte, error)
