package keyring

import (
	"context"
	"errors"

	"keyring-sa/multi-keyring/materials"
)

// Keyring is a provider of cryptographic key material able to participate in
// encryption and/or decryption of a data key.
//
// Both operations mutate the materials they receive in place and return the
// same instance; a keyring must never replace the materials with a new
// instance. This is a contract invariant shared by every implementation,
// inside or outside this module.
type Keyring interface {
	// OnEncrypt generates and/or wraps a data key. A keyring acting as a
	// generator sets the plaintext data key when none exists; every keyring
	// appends zero or more encrypted data keys.
	OnEncrypt(ctx context.Context, m *materials.EncryptionMaterials) (*materials.EncryptionMaterials, error)

	// OnDecrypt attempts to unwrap one of the encrypted data keys and
	// populate the plaintext key slot. Implementations should leave the
	// materials untouched when no EDK is recognized.
	OnDecrypt(ctx context.Context, m *materials.DecryptionMaterials, edks []materials.EncryptedDataKey) (*materials.DecryptionMaterials, error)
}

var (
	// ErrInvalidKeyringConfig is returned when keyring construction is
	// rejected. The keyring is never created.
	ErrInvalidKeyringConfig = errors.New("invalid keyring configuration")

	// ErrNoPlaintextDataKey is returned by OnEncrypt when no data key is
	// available: either the generator failed to produce one, or no generator
	// is configured and the incoming materials carry none.
	ErrNoPlaintextDataKey = errors.New("no plaintext data key")
)
