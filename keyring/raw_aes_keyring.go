package keyring

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"keyring-sa/multi-keyring/materials"
)

const rawAESProviderID = "raw-aes"

// RawAESOptions contains configuration options for RawAESKeyring
type RawAESOptions struct {
	// KeyName identifies the wrapping key in EDK provider info
	KeyName string

	// WrappingKey is the local 256-bit key-encryption key
	WrappingKey []byte
}

// RawAESKeyring wraps and unwraps data keys with a locally held AES-256-GCM
// key. It can act as a generator: when the incoming materials carry no data
// key it generates a fresh one.
type RawAESKeyring struct {
	keyName     string
	wrappingKey []byte
}

// NewRawAESKeyring creates a keyring around a local 256-bit wrapping key
func NewRawAESKeyring(options RawAESOptions) (*RawAESKeyring, error) {
	if options.KeyName == "" {
		return nil, fmt.Errorf("%w: raw AES keyring requires a key name", ErrInvalidKeyringConfig)
	}
	if len(options.WrappingKey) != 32 {
		return nil, fmt.Errorf("%w: raw AES wrapping key must be 32 bytes, got %d", ErrInvalidKeyringConfig, len(options.WrappingKey))
	}

	return &RawAESKeyring{
		keyName:     options.KeyName,
		wrappingKey: options.WrappingKey,
	}, nil
}

// OnEncrypt generates a data key when none exists, then wraps it into an EDK
func (k *RawAESKeyring) OnEncrypt(ctx context.Context, em *materials.EncryptionMaterials) (*materials.EncryptionMaterials, error) {
	if !em.HasPlaintextDataKey() {
		dataKey := make([]byte, em.Suite().DataKeyBytes())
		if _, err := io.ReadFull(rand.Reader, dataKey); err != nil {
			return nil, fmt.Errorf("failed to generate data key: %v", err)
		}
		if err := em.SetPlaintextDataKey(dataKey); err != nil {
			return nil, err
		}
	}

	wrapped, err := k.wrap(em.PlaintextDataKey(), em.EncryptionContext())
	if err != nil {
		return nil, fmt.Errorf("failed to wrap data key: %v", err)
	}

	em.AddEncryptedDataKey(materials.EncryptedDataKey{
		ProviderID:   rawAESProviderID,
		ProviderInfo: k.keyName,
		Ciphertext:   wrapped,
	})

	return em, nil
}

// OnDecrypt tries each EDK this keyring produced until one unwraps
func (k *RawAESKeyring) OnDecrypt(ctx context.Context, dm *materials.DecryptionMaterials, edks []materials.EncryptedDataKey) (*materials.DecryptionMaterials, error) {
	if dm.Valid() {
		return dm, nil
	}

	var lastErr error
	for _, edk := range edks {
		if edk.ProviderID != rawAESProviderID || edk.ProviderInfo != k.keyName {
			continue
		}

		dataKey, err := k.unwrap(edk.Ciphertext, dm.EncryptionContext())
		if err != nil {
			lastErr = err
			continue
		}

		if err := dm.SetPlaintextDataKey(dataKey); err != nil {
			return nil, err
		}
		return dm, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to unwrap data key: %v", lastErr)
	}
	return dm, nil
}

func (k *RawAESKeyring) wrap(dataKey []byte, ec materials.EncryptionContext) ([]byte, error) {
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Encrypt with context as additional authenticated data
	authData := materials.ContextToBytes(ec)
	return gcm.Seal(nonce, nonce, dataKey, authData), nil
}

func (k *RawAESKeyring) unwrap(wrapped []byte, ec materials.EncryptionContext) ([]byte, error) {
	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(wrapped) < nonceSize {
		return nil, fmt.Errorf("wrapped key too short")
	}

	authData := materials.ContextToBytes(ec)
	nonce, ciphertext := wrapped[:nonceSize], wrapped[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, authData)
}

func (k *RawAESKeyring) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.wrappingKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
