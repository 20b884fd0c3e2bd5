package materials

import (
	"errors"
)

// AlgorithmSuite identifies the data-key algorithm a set of materials is bound to.
// All keyrings participating in one operation must support the same suite.
type AlgorithmSuite string

const (
	// AlgAES256GCM is a 256-bit data key used with AES-GCM payload encryption
	AlgAES256GCM AlgorithmSuite = "AES_256_GCM"
)

// DataKeyBytes returns the data key length in bytes for the suite
func (a AlgorithmSuite) DataKeyBytes() int {
	switch a {
	case AlgAES256GCM:
		return 32
	default:
		return 32
	}
}

// ErrDataKeyAlreadySet is returned when a keyring attempts to overwrite an
// existing plaintext data key. The key slot is write-once.
var ErrDataKeyAlreadySet = errors.New("plaintext data key already set")

// EncryptedDataKey is a wrapped form of the data key plus provider metadata
// identifying which keyring produced it, and can attempt to unwrap it.
type EncryptedDataKey struct {
	// ProviderID identifies the keyring family that produced this EDK
	ProviderID string `json:"provider_id"`
	// ProviderInfo carries provider-specific key identity (key ARN, key name, ...)
	ProviderInfo string `json:"provider_info"`
	// Ciphertext is the opaque key-wrapping ciphertext
	Ciphertext []byte `json:"ciphertext"`
}

// EncryptionMaterials accumulates the outputs of an encrypt operation: at most
// one plaintext data key and an ordered, append-only list of encrypted data
// keys. Keyrings receive the same instance, mutate it in place and return it;
// the instance is never replaced mid-operation.
type EncryptionMaterials struct {
	suite             AlgorithmSuite
	encryptionContext EncryptionContext
	plaintextDataKey  []byte
	encryptedDataKeys []EncryptedDataKey
}

// NewEncryptionMaterials creates materials for a single encrypt operation
func NewEncryptionMaterials(suite AlgorithmSuite, ec EncryptionContext) *EncryptionMaterials {
	return &EncryptionMaterials{
		suite:             suite,
		encryptionContext: ec.Clone(),
	}
}

// Suite returns the algorithm suite the materials are bound to
func (m *EncryptionMaterials) Suite() AlgorithmSuite {
	return m.suite
}

// EncryptionContext returns the context the materials are bound to
func (m *EncryptionMaterials) EncryptionContext() EncryptionContext {
	return m.encryptionContext
}

// PlaintextDataKey returns the unencrypted data key, or nil when none has been
// generated yet
func (m *EncryptionMaterials) PlaintextDataKey() []byte {
	return m.plaintextDataKey
}

// HasPlaintextDataKey reports whether a data key has been generated
func (m *EncryptionMaterials) HasPlaintextDataKey() bool {
	return len(m.plaintextDataKey) > 0
}

// SetPlaintextDataKey stores the generated data key. The slot is write-once;
// a second call fails with ErrDataKeyAlreadySet.
func (m *EncryptionMaterials) SetPlaintextDataKey(key []byte) error {
	if m.HasPlaintextDataKey() {
		return ErrDataKeyAlreadySet
	}
	m.plaintextDataKey = key
	return nil
}

// AddEncryptedDataKey appends a wrapped data key. EDKs are never removed or
// reordered.
func (m *EncryptionMaterials) AddEncryptedDataKey(edk EncryptedDataKey) {
	m.encryptedDataKeys = append(m.encryptedDataKeys, edk)
}

// EncryptedDataKeys returns the EDKs appended so far, in append order
func (m *EncryptionMaterials) EncryptedDataKeys() []EncryptedDataKey {
	return m.encryptedDataKeys
}

// DecryptionMaterials accumulates the output of a decrypt operation: a single
// optional plaintext data key slot. Once the slot is populated the materials
// are resolved and no keyring may overwrite it.
type DecryptionMaterials struct {
	suite             AlgorithmSuite
	encryptionContext EncryptionContext
	plaintextDataKey  []byte
}

// NewDecryptionMaterials creates materials for a single decrypt operation
func NewDecryptionMaterials(suite AlgorithmSuite, ec EncryptionContext) *DecryptionMaterials {
	return &DecryptionMaterials{
		suite:             suite,
		encryptionContext: ec.Clone(),
	}
}

// Suite returns the algorithm suite the materials are bound to
func (m *DecryptionMaterials) Suite() AlgorithmSuite {
	return m.suite
}

// EncryptionContext returns the context the materials are bound to
func (m *DecryptionMaterials) EncryptionContext() EncryptionContext {
	return m.encryptionContext
}

// PlaintextDataKey returns the unwrapped data key, or nil while unresolved
func (m *DecryptionMaterials) PlaintextDataKey() []byte {
	return m.plaintextDataKey
}

// Valid reports whether a keyring has successfully unwrapped a data key
func (m *DecryptionMaterials) Valid() bool {
	return len(m.plaintextDataKey) > 0
}

// SetPlaintextDataKey stores the unwrapped data key. Resolved materials are
// terminal; a second call fails with ErrDataKeyAlreadySet.
func (m *DecryptionMaterials) SetPlaintextDataKey(key []byte) error {
	if m.Valid() {
		return ErrDataKeyAlreadySet
	}
	m.plaintextDataKey = key
	return nil
}
