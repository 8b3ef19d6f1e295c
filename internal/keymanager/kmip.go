package keymanager

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/ovh/kmip-go"
	"github.com/ovh/kmip-go/kmipclient"
	"github.com/ovh/kmip-go/payloads"
)

// KMIPKeyReference names one wrapping key known to the KMIP server, by its
// unique identifier and version. UnwrapKey accepts envelopes for any
// version listed in KMIPOptions.Keys; KMIPOptions.DualReadWindow is not
// read by NewCosmianKMIPManager and sets no grace period.
type KMIPKeyReference struct {
	ID      string
	Version int
}

// KMIPOptions configures a KMIP-backed KeyManager.
type KMIPOptions struct {
	Endpoint       string
	Keys           []KMIPKeyReference
	TLSConfig      *tls.Config
	Timeout        time.Duration
	Provider       string
	DualReadWindow int
}

// CosmianKMIPManager wraps/unwraps DEKs through a KMIP 1.4-speaking server,
// targeting a Cosmian KMS deployment.
type CosmianKMIPManager struct {
	mu       sync.RWMutex
	client   *kmipclient.Client
	keys     []KMIPKeyReference
	provider string
	timeout  time.Duration
}

// NewCosmianKMIPManager dials the configured KMIP endpoint and returns a
// manager ready to wrap/unwrap against the first (most recent) key in
// opts.Keys.
func NewCosmianKMIPManager(opts KMIPOptions) (*CosmianKMIPManager, error) {
	if len(opts.Keys) == 0 {
		return nil, fmt.Errorf("keymanager: kmip: at least one key reference is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Provider == "" {
		opts.Provider = "cosmian-kmip"
	}

	client, err := kmipclient.Dial(opts.Endpoint, kmipclient.WithTLSConfig(opts.TLSConfig))
	if err != nil {
		return nil, fmt.Errorf("keymanager: kmip: dial %s: %w", opts.Endpoint, err)
	}

	return &CosmianKMIPManager{
		client:   client,
		keys:     opts.Keys,
		provider: opts.Provider,
		timeout:  opts.Timeout,
	}, nil
}

func (m *CosmianKMIPManager) Provider() string { return m.provider }

func (m *CosmianKMIPManager) activeKey() KMIPKeyReference {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keys[0]
}

func (m *CosmianKMIPManager) keyByVersion(version int) (KMIPKeyReference, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range m.keys {
		if k.Version == version {
			return k, true
		}
	}
	return KMIPKeyReference{}, false
}

// WrapKey encrypts plaintext under the active wrapping key via a KMIP
// Encrypt operation.
func (m *CosmianKMIPManager) WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	key := m.activeKey()
	resp, err := m.client.Request(ctx, kmip.OperationEncrypt, &payloads.EncryptRequestPayload{
		UniqueIdentifier: key.ID,
		Data:             plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("keymanager: kmip: encrypt: %w", err)
	}
	out, ok := resp.(*payloads.EncryptResponsePayload)
	if !ok {
		return nil, fmt.Errorf("keymanager: kmip: unexpected encrypt response type %T", resp)
	}

	return &KeyEnvelope{
		KeyID:      key.ID,
		KeyVersion: key.Version,
		Provider:   m.provider,
		Ciphertext: out.Data,
	}, nil
}

// UnwrapKey decrypts envelope.Ciphertext via a KMIP Decrypt operation,
// falling back to version lookup when the envelope carries no KeyID.
func (m *CosmianKMIPManager) UnwrapKey(ctx context.Context, envelope *KeyEnvelope, metadata map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	keyID := envelope.KeyID
	if keyID == "" {
		key, ok := m.keyByVersion(envelope.KeyVersion)
		if !ok {
			return nil, fmt.Errorf("keymanager: kmip: no key registered for version %d", envelope.KeyVersion)
		}
		keyID = key.ID
	}

	resp, err := m.client.Request(ctx, kmip.OperationDecrypt, &payloads.DecryptRequestPayload{
		UniqueIdentifier: keyID,
		Data:             envelope.Ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("keymanager: kmip: decrypt: %w", err)
	}
	out, ok := resp.(*payloads.DecryptResponsePayload)
	if !ok {
		return nil, fmt.Errorf("keymanager: kmip: unexpected decrypt response type %T", resp)
	}
	return out.Data, nil
}

func (m *CosmianKMIPManager) ActiveKeyVersion(ctx context.Context) (int, error) {
	return m.activeKey().Version, nil
}

// HealthCheck performs a lightweight KMIP Get against the active key to
// confirm the server is reachable, without performing any cryptographic
// operation.
func (m *CosmianKMIPManager) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	key := m.activeKey()
	_, err := m.client.Request(ctx, kmip.OperationGet, &payloads.GetRequestPayload{
		UniqueIdentifier: key.ID,
	})
	if err != nil {
		return fmt.Errorf("keymanager: kmip: health check: %w", err)
	}
	return nil
}

func (m *CosmianKMIPManager) Close(ctx context.Context) error {
	return m.client.Close()
}

// Resolver adapts UnwrapKey to the Resolver callback shape: envelopeForHint
// maps each hint (whose KeyInfo field holds the serialized KeyInfo
// element, if any) to the envelope to unwrap. Only decrypt-usage hints are
// served; any other usage returns an error.
func (m *CosmianKMIPManager) Resolver(envelopeForHint func(Hint) (*KeyEnvelope, error)) Resolver {
	return func(ctx context.Context, hint Hint) ([]byte, error) {
		env, err := envelopeForHint(hint)
		if err != nil {
			return nil, err
		}
		switch hint.Usage {
		case UsageDecrypt:
			return m.UnwrapKey(ctx, env, nil)
		default:
			return nil, fmt.Errorf("keymanager: kmip: resolver only supports decrypt-time unwrap")
		}
	}
}
