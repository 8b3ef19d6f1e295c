package keymanager

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
)

// StaticKeyring is a KeyManager backed by an in-memory map of key-id to
// key bytes, configured directly (no external KMS round trip). Used in
// tests and for the CLI's simplest mode, where the caller already has key
// material and just needs the Resolver adapter shape.
type StaticKeyring struct {
	mu      sync.RWMutex
	keys    map[string][]byte
	version int
}

// NewStaticKeyring builds a keyring seeded with the given key-id → key map.
func NewStaticKeyring(keys map[string][]byte) *StaticKeyring {
	clone := make(map[string][]byte, len(keys))
	for k, v := range keys {
		clone[k] = append([]byte(nil), v...)
	}
	return &StaticKeyring{keys: clone, version: 1}
}

func (s *StaticKeyring) Provider() string { return "static" }

// WrapKey "wraps" by storing the plaintext under a freshly generated
// key-id and returning that id as the envelope's KeyID, with a copy of the
// plaintext as its Ciphertext — there is no external KMS to perform real
// envelope encryption, so the plaintext is the ciphertext; callers needing confidentiality for a
// static keyring should not use it for wrapping in production.
func (s *StaticKeyring) WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error) {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("keymanager: static: generating key id: %w", err)
	}
	keyID := fmt.Sprintf("%x", id)

	s.mu.Lock()
	s.keys[keyID] = append([]byte(nil), plaintext...)
	s.mu.Unlock()

	return &KeyEnvelope{
		KeyID:      keyID,
		KeyVersion: s.version,
		Provider:   s.Provider(),
		Ciphertext: append([]byte(nil), plaintext...),
	}, nil
}

func (s *StaticKeyring) UnwrapKey(ctx context.Context, envelope *KeyEnvelope, metadata map[string]string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.keys[envelope.KeyID]; ok {
		return append([]byte(nil), key...), nil
	}
	if len(envelope.Ciphertext) > 0 {
		return append([]byte(nil), envelope.Ciphertext...), nil
	}
	return nil, fmt.Errorf("keymanager: static: unknown key id %q", envelope.KeyID)
}

func (s *StaticKeyring) ActiveKeyVersion(ctx context.Context) (int, error) {
	return s.version, nil
}

func (s *StaticKeyring) HealthCheck(ctx context.Context) error { return nil }

func (s *StaticKeyring) Close(ctx context.Context) error { return nil }

// Resolver adapts the keyring's direct key-id lookup to the Resolver
// callback shape internal/xmlenc expects.
func (s *StaticKeyring) Resolver() Resolver {
	return func(ctx context.Context, hint Hint) ([]byte, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		key, ok := s.keys[hint.KeyID]
		if !ok {
			return nil, fmt.Errorf("keymanager: static: no key registered for id %q", hint.KeyID)
		}
		return append([]byte(nil), key...), nil
	}
}

// Put registers a key under id directly, bypassing WrapKey — used when
// the caller already holds the cryptographic key material and supplies
// it rather than having it resolved.
func (s *StaticKeyring) Put(id string, key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = append([]byte(nil), key...)
}
