// Package xmlenc is the core XML Encryption engine: the EncryptedData
// driver, CipherData driver, and the three public encrypt entry points
// plus Decrypt. It ties internal/chain, internal/cipher,
// internal/template, and internal/keymanager together behind four
// operations and a template-builder package; callers never construct a
// transform chain by hand.
package xmlenc
