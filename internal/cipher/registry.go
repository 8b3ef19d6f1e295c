// Package cipher provides the concrete Transform implementations the
// xmlenc engine's transform chain is built from: base64 codecs, symmetric
// and asymmetric cipher transforms, a memory-buffer sink, and a URI-input
// source — plus the algorithm-id registry that looks them up by the
// EncryptionMethod Algorithm URI. The core engine only ever talks to
// chain.Transform, never to an algorithm name directly.
package cipher

import (
	"fmt"

	"github.com/kenneth/xmlenc-gateway/internal/chain"
)

// Algorithm URIs recognized by the registry, matching the W3C XML
// Encryption Core Recommendation's defined identifiers.
const (
	AlgAES128CBC    = "http://www.w3.org/2001/04/xmlenc#aes128-cbc"
	AlgAES192CBC    = "http://www.w3.org/2001/04/xmlenc#aes192-cbc"
	AlgAES256CBC    = "http://www.w3.org/2001/04/xmlenc#aes256-cbc"
	AlgAES128GCM    = "http://www.w3.org/2009/xmlenc11#aes128-gcm"
	AlgAES192GCM    = "http://www.w3.org/2009/xmlenc11#aes192-gcm"
	AlgAES256GCM    = "http://www.w3.org/2009/xmlenc11#aes256-gcm"
	AlgTripleDESCBC = "http://www.w3.org/2001/04/xmlenc#tripledes-cbc"
	AlgRSA15        = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
	AlgRSAOAEP      = "http://www.w3.org/2001/04/xmlenc#rsa-oaep-mgf1p"
)

// KeyType distinguishes symmetric from asymmetric key material.
type KeyType int

const (
	KeyTypeSymmetric KeyType = iota
	KeyTypeAsymmetricPublic
	KeyTypeAsymmetricPrivate
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeAsymmetricPublic:
		return "asymmetric-public"
	case KeyTypeAsymmetricPrivate:
		return "asymmetric-private"
	default:
		return "symmetric"
	}
}

// Descriptor is the static id every cipher Transform carries: its
// canonical algorithm URI, required key size (symmetric only, 0 if n/a),
// and key type needed for encrypt vs decrypt.
type Descriptor struct {
	Algorithm  string
	KeySizeLen int // bytes; 0 for RSA (key-size driven by the RSA key itself)
	KeyTypeEnc KeyType
	KeyTypeDec KeyType
}

// CipherTransform is a chain.Transform that additionally accepts key
// material — the capability the EncryptedData driver (C5) installs a key
// onto after key resolution.
type CipherTransform interface {
	chain.Transform
	SetKey(key []byte) error
	Descriptor() Descriptor
}

// factory builds a fresh, unkeyed instance of a registered algorithm.
type factory func() CipherTransform

var registry = map[string]factory{
	AlgAES128CBC:    func() CipherTransform { return newAESCBC(16) },
	AlgAES192CBC:    func() CipherTransform { return newAESCBC(24) },
	AlgAES256CBC:    func() CipherTransform { return newAESCBC(32) },
	AlgAES128GCM:    func() CipherTransform { return newAESGCM(16) },
	AlgAES192GCM:    func() CipherTransform { return newAESGCM(24) },
	AlgAES256GCM:    func() CipherTransform { return newAESGCM(32) },
	AlgTripleDESCBC: func() CipherTransform { return newTripleDESCBC() },
	AlgRSA15:        func() CipherTransform { return newRSATransform(false) },
	AlgRSAOAEP:      func() CipherTransform { return newRSATransform(true) },
}

// Create instantiates the transform registered for algID.
func Create(algID string) (CipherTransform, error) {
	f, ok := registry[algID]
	if !ok {
		return nil, fmt.Errorf("cipher: unknown algorithm %q", algID)
	}
	return f(), nil
}

// Supported reports whether algID is a registered algorithm.
func Supported(algID string) bool {
	_, ok := registry[algID]
	return ok
}
