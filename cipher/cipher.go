package cipher

import (
	"context"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"keyring-sa/multi-keyring/keyring"
	"keyring-sa/multi-keyring/materials"
	"keyring-sa/multi-keyring/metrics"
)

// EncryptInput represents the data and context for encryption operations
type EncryptInput struct {
	// Plaintext is the data to be encrypted
	Plaintext []byte
	// EncryptionContext binds the data key and authenticates the payload
	EncryptionContext materials.EncryptionContext
}

// DecryptInput represents the data and context for decryption operations
type DecryptInput struct {
	// Envelope is the encrypted payload plus its encrypted data keys
	Envelope *Envelope
}

// Cipher encrypts and decrypts payloads with per-message data keys obtained
// from a keyring
type Cipher struct {
	keyring        keyring.Keyring
	metricsHandler metrics.Handler
}

// NewCipher creates a new Cipher with the specified keyring
func NewCipher(kr keyring.Keyring, metricsHandler metrics.Handler) *Cipher {
	if metricsHandler == nil {
		metricsHandler = metrics.NopHandler
	}
	return &Cipher{
		keyring:        kr,
		metricsHandler: metricsHandler,
	}
}

// Encrypt runs the keyring to obtain a data key, then seals the payload with
// AES-GCM using the encryption context as additional authenticated data
func (c *Cipher) Encrypt(ctx context.Context, input *EncryptInput) (*Envelope, error) {
	start := time.Now()
	c.metricsHandler.Counter(metrics.EncryptRequests).Inc(1)

	envelope, err := c.encrypt(ctx, input)

	c.metricsHandler.Timer(metrics.EncryptLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.EncryptErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.EncryptSuccess).Inc(1)

	return envelope, nil
}

func (c *Cipher) encrypt(ctx context.Context, input *EncryptInput) (*Envelope, error) {
	em := materials.NewEncryptionMaterials(materials.AlgAES256GCM, input.EncryptionContext)

	em, err := c.keyring.OnEncrypt(ctx, em)
	if err != nil {
		return nil, fmt.Errorf("failed to get encryption materials: %v", err)
	}

	if len(em.EncryptedDataKeys()) == 0 {
		return nil, fmt.Errorf("keyring returned no encrypted data keys")
	}

	block, err := aes.NewCipher(em.PlaintextDataKey())
	if err != nil {
		return nil, err
	}

	gcm, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Encrypt with context as additional authenticated data
	authData := materials.ContextToBytes(em.EncryptionContext())
	ciphertext := gcm.Seal(nonce, nonce, input.Plaintext, authData)

	return &Envelope{
		Suite:             em.Suite(),
		EncryptionContext: em.EncryptionContext(),
		EncryptedDataKeys: em.EncryptedDataKeys(),
		Ciphertext:        ciphertext,
	}, nil
}

// Decrypt runs the keyring over the envelope's encrypted data keys, then
// opens the payload. An envelope no keyring member can unwrap fails with
// ErrUnresolvedMaterials.
func (c *Cipher) Decrypt(ctx context.Context, input *DecryptInput) ([]byte, error) {
	start := time.Now()
	c.metricsHandler.Counter(metrics.DecryptRequests).Inc(1)

	plaintext, err := c.decrypt(ctx, input)

	c.metricsHandler.Timer(metrics.DecryptLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.DecryptErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.DecryptSuccess).Inc(1)

	return plaintext, nil
}

func (c *Cipher) decrypt(ctx context.Context, input *DecryptInput) ([]byte, error) {
	envelope := input.Envelope

	dm := materials.NewDecryptionMaterials(envelope.Suite, envelope.EncryptionContext)

	dm, err := c.keyring.OnDecrypt(ctx, dm, envelope.EncryptedDataKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to get decryption materials: %v", err)
	}

	// The keyring reports provider failures by leaving the materials
	// unresolved rather than returning an error.
	if !dm.Valid() {
		return nil, ErrUnresolvedMaterials
	}

	block, err := aes.NewCipher(dm.PlaintextDataKey())
	if err != nil {
		return nil, err
	}

	gcm, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(envelope.Ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	authData := materials.ContextToBytes(dm.EncryptionContext())

	nonce, ciphertextData := envelope.Ciphertext[:nonceSize], envelope.Ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertextData, authData)
}
