package cipher

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyring-sa/multi-keyring/keyring"
	"keyring-sa/multi-keyring/materials"
)

func newTestKeyring(t *testing.T, keyByte byte) keyring.Keyring {
	t.Helper()
	kr, err := keyring.NewRawAESKeyring(keyring.RawAESOptions{
		KeyName:     "test-key",
		WrappingKey: bytes.Repeat([]byte{keyByte}, 32),
	})
	require.NoError(t, err)
	return kr
}

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name              string
		plaintext         []byte
		encryptionContext materials.EncryptionContext
		decryptionContext materials.EncryptionContext
		shouldFail        bool
	}{
		{
			name:              "basic encryption and decryption",
			plaintext:         []byte("This is a test message"),
			encryptionContext: materials.EncryptionContext{"purpose": "test"},
			decryptionContext: materials.EncryptionContext{"purpose": "test"},
			shouldFail:        false,
		},
		{
			name:              "empty plaintext",
			plaintext:         []byte{},
			encryptionContext: materials.EncryptionContext{"purpose": "test"},
			decryptionContext: materials.EncryptionContext{"purpose": "test"},
			shouldFail:        false,
		},
		{
			name:              "nil context",
			plaintext:         []byte("message without context"),
			encryptionContext: nil,
			decryptionContext: nil,
			shouldFail:        false,
		},
		{
			name:              "mismatched context",
			plaintext:         []byte("message with different contexts"),
			encryptionContext: materials.EncryptionContext{"tenant": "alpha"},
			decryptionContext: materials.EncryptionContext{"tenant": "beta"},
			shouldFail:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCipher(newTestKeyring(t, 1), nil)
			ctx := context.Background()

			envelope, err := c.Encrypt(ctx, &EncryptInput{
				Plaintext:         tt.plaintext,
				EncryptionContext: tt.encryptionContext,
			})
			require.NoError(t, err, "Failed to encrypt")
			require.NotEmpty(t, envelope.EncryptedDataKeys)
			assert.Equal(t, materials.AlgAES256GCM, envelope.Suite)

			// Simulate a different decryption context by rewriting the envelope
			envelope.EncryptionContext = tt.decryptionContext

			plaintext, err := c.Decrypt(ctx, &DecryptInput{Envelope: envelope})
			if tt.shouldFail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err, "Failed to decrypt")
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestDecrypt_UnresolvedMaterials(t *testing.T) {
	ctx := context.Background()

	producer := NewCipher(newTestKeyring(t, 1), nil)
	envelope, err := producer.Encrypt(ctx, &EncryptInput{Plaintext: []byte("secret")})
	require.NoError(t, err)

	// A multi keyring whose only member holds the wrong wrapping key
	// suppresses the unwrap failure and leaves the materials unresolved
	mk, err := keyring.NewMultiKeyring(keyring.MultiKeyringOptions{
		Children: []keyring.Keyring{newTestKeyring(t, 2)},
	})
	require.NoError(t, err)

	consumer := NewCipher(mk, nil)
	_, err = consumer.Decrypt(ctx, &DecryptInput{Envelope: envelope})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedMaterials)
}

func TestDecrypt_MultiKeyringFallback(t *testing.T) {
	ctx := context.Background()

	// Encrypt under two keyrings, decrypt holding only the second
	first := newTestKeyring(t, 1)
	second := newTestKeyring(t, 2)

	encryptRing, err := keyring.NewMultiKeyring(keyring.MultiKeyringOptions{
		Generator: first,
		Children:  []keyring.Keyring{second},
	})
	require.NoError(t, err)

	envelope, err := NewCipher(encryptRing, nil).Encrypt(ctx, &EncryptInput{
		Plaintext:         []byte("fallback test"),
		EncryptionContext: materials.EncryptionContext{"purpose": "test"},
	})
	require.NoError(t, err)
	require.Len(t, envelope.EncryptedDataKeys, 2)

	decryptRing, err := keyring.NewMultiKeyring(keyring.MultiKeyringOptions{
		Children: []keyring.Keyring{second},
	})
	require.NoError(t, err)

	plaintext, err := NewCipher(decryptRing, nil).Decrypt(ctx, &DecryptInput{Envelope: envelope})
	require.NoError(t, err)
	assert.Equal(t, []byte("fallback test"), plaintext)
}

func TestEnvelope_MarshalRoundtrip(t *testing.T) {
	ctx := context.Background()

	c := NewCipher(newTestKeyring(t, 1), nil)
	envelope, err := c.Encrypt(ctx, &EncryptInput{
		Plaintext:         []byte("serialized message"),
		EncryptionContext: materials.EncryptionContext{"purpose": "test"},
	})
	require.NoError(t, err)

	data, err := envelope.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEnvelope(data)
	require.NoError(t, err)

	plaintext, err := c.Decrypt(ctx, &DecryptInput{Envelope: restored})
	require.NoError(t, err)
	assert.Equal(t, []byte("serialized message"), plaintext)
}

func TestUnmarshalEnvelope_Invalid(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte("not json"))
	require.Error(t, err)

	// An envelope without EDKs can never be decrypted
	_, err = UnmarshalEnvelope([]byte(`{"suite":"AES_256_GCM","ciphertext":"AAAA"}`))
	require.Error(t, err)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	ctx := context.Background()

	c := NewCipher(newTestKeyring(t, 1), nil)
	envelope, err := c.Encrypt(ctx, &EncryptInput{Plaintext: []byte("integrity test")})
	require.NoError(t, err)

	envelope.Ciphertext[len(envelope.Ciphertext)-1] ^= 0xFF

	_, err = c.Decrypt(ctx, &DecryptInput{Envelope: envelope})
	require.Error(t, err)
}
