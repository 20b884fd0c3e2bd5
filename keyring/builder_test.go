package keyring

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyring-sa/multi-keyring/config"
	"keyring-sa/multi-keyring/materials"
)

func testRawAESConfig(t *testing.T, keyName string) *config.KeyringConfig {
	t.Helper()
	return &config.KeyringConfig{
		Type: config.KeyringTypeRawAES,
		RawAES: &config.RawAESConfig{
			KeyName: keyName,
			Key:     base64.StdEncoding.EncodeToString(testWrappingKey(7)),
		},
	}
}

func TestBuilder_Build_RawAESTopology(t *testing.T) {
	cfg := &config.Config{
		Keyrings: config.KeyringsConfig{
			Generator: testRawAESConfig(t, "gen-key"),
			Children:  []config.KeyringConfig{*testRawAESConfig(t, "child-key")},
		},
	}

	kr, err := NewBuilder(nil, nil).Build(context.Background(), cfg)
	require.NoError(t, err)

	em := materials.NewEncryptionMaterials(materials.AlgAES256GCM, materials.EncryptionContext{"purpose": "test"})
	em, err = kr.OnEncrypt(context.Background(), em)
	require.NoError(t, err)

	require.Len(t, em.EncryptedDataKeys(), 2)
	assert.Equal(t, "gen-key", em.EncryptedDataKeys()[0].ProviderInfo)
	assert.Equal(t, "child-key", em.EncryptedDataKeys()[1].ProviderInfo)
}

func TestBuilder_Build_WithCaching(t *testing.T) {
	cfg := &config.Config{
		Encryption: config.EncryptionConfig{
			Caching: config.CachingConfig{
				MaxCache: 10,
				MaxAge:   "5m",
				MaxUsage: 5,
			},
		},
		Keyrings: config.KeyringsConfig{
			Generator: testRawAESConfig(t, "gen-key"),
		},
	}

	kr, err := NewBuilder(nil, nil).Build(context.Background(), cfg)
	require.NoError(t, err)

	_, ok := kr.(*CachingKeyring)
	assert.True(t, ok, "expected a caching keyring when caching bounds are set")
}

func TestBuilder_Build_InvalidMaxAge(t *testing.T) {
	cfg := &config.Config{
		Encryption: config.EncryptionConfig{
			Caching: config.CachingConfig{
				MaxCache: 10,
				MaxAge:   "not-a-duration",
			},
		},
		Keyrings: config.KeyringsConfig{
			Generator: testRawAESConfig(t, "gen-key"),
		},
	}

	_, err := NewBuilder(nil, nil).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid caching max_age")
}

func TestBuilder_Build_RawAESKeyFromEnv(t *testing.T) {
	t.Setenv("MKR_TEST_WRAPPING_KEY", base64.StdEncoding.EncodeToString(testWrappingKey(3)))

	cfg := &config.Config{
		Keyrings: config.KeyringsConfig{
			Generator: &config.KeyringConfig{
				Type: config.KeyringTypeRawAES,
				RawAES: &config.RawAESConfig{
					KeyName: "env-key",
					EnvVar:  "MKR_TEST_WRAPPING_KEY",
				},
			},
		},
	}

	kr, err := NewBuilder(nil, nil).Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, kr)
}

func TestBuilder_Build_RawAESMissingKey(t *testing.T) {
	cfg := &config.Config{
		Keyrings: config.KeyringsConfig{
			Generator: &config.KeyringConfig{
				Type: config.KeyringTypeRawAES,
				RawAES: &config.RawAESConfig{
					KeyName: "missing",
					EnvVar:  "MKR_TEST_UNSET_VAR",
				},
			},
		},
	}

	_, err := NewBuilder(nil, nil).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyringConfig)
}

func TestBuilder_Build_UnsupportedType(t *testing.T) {
	cfg := &config.Config{
		Keyrings: config.KeyringsConfig{
			Generator: &config.KeyringConfig{Type: "vault"},
		},
	}

	_, err := NewBuilder(nil, nil).Build(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyringConfig)
}
