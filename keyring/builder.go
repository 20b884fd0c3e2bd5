package keyring

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	gcpkms "cloud.google.com/go/kms/apiv1"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"go.uber.org/zap"

	"keyring-sa/multi-keyring/config"
	"keyring-sa/multi-keyring/metrics"
)

// Builder assembles a multi keyring from configuration
type Builder struct {
	logger         *zap.Logger
	metricsHandler metrics.Handler
}

// NewBuilder creates a keyring builder
func NewBuilder(logger *zap.Logger, metricsHandler metrics.Handler) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metricsHandler == nil {
		metricsHandler = metrics.NopHandler
	}
	return &Builder{
		logger:         logger,
		metricsHandler: metricsHandler,
	}
}

// Build turns the configured topology into a multi keyring, optionally
// wrapped in a caching keyring when caching bounds are configured
func (b *Builder) Build(ctx context.Context, cfg *config.Config) (Keyring, error) {
	opts := MultiKeyringOptions{Logger: b.logger}

	if cfg.Keyrings.Generator != nil {
		generator, err := b.buildMember(ctx, cfg.Keyrings.Generator)
		if err != nil {
			return nil, fmt.Errorf("failed to build generator keyring: %w", err)
		}
		opts.Generator = generator
	}

	for i := range cfg.Keyrings.Children {
		child, err := b.buildMember(ctx, &cfg.Keyrings.Children[i])
		if err != nil {
			return nil, fmt.Errorf("failed to build child keyring %d: %w", i, err)
		}
		opts.Children = append(opts.Children, child)
	}

	multi, err := NewMultiKeyring(opts)
	if err != nil {
		return nil, err
	}

	caching := cfg.Encryption.Caching
	if caching.MaxCache > 0 {
		cachingConfig := CachingConfig{
			MaxCache:        caching.MaxCache,
			MaxMessagesUsed: caching.MaxUsage,
		}
		if caching.MaxAge != "" {
			duration, err := time.ParseDuration(caching.MaxAge)
			if err != nil {
				return nil, fmt.Errorf("invalid caching max_age: %w", err)
			}
			cachingConfig.MaxAge = duration
		}
		return NewCachingKeyring(multi, cachingConfig, b.metricsHandler)
	}

	return multi, nil
}

func (b *Builder) buildMember(ctx context.Context, kc *config.KeyringConfig) (Keyring, error) {
	switch kc.Type {
	case config.KeyringTypeAWSKMS:
		return NewAWSKMSKeyring(createAWSKMSClient(kc.AWSKMS.Region), AWSKMSOptions{
			KeyID:   kc.AWSKMS.KeyID,
			KeySpec: kc.AWSKMS.KeySpec,
		})

	case config.KeyringTypeGCPKMS:
		client, err := gcpkms.NewKeyManagementClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP KMS client: %w", err)
		}
		return NewGCPKMSKeyring(client, GCPKMSOptions{
			KeyName: kc.GCPKMS.KeyName,
		})

	case config.KeyringTypeRawAES:
		wrappingKey, err := resolveRawAESKey(kc.RawAES)
		if err != nil {
			return nil, err
		}
		return NewRawAESKeyring(RawAESOptions{
			KeyName:     kc.RawAES.KeyName,
			WrappingKey: wrappingKey,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported keyring type: %s", ErrInvalidKeyringConfig, kc.Type)
	}
}

// createAWSKMSClient creates an AWS KMS client
func createAWSKMSClient(region string) *kms.KMS {
	// Use the region from config or environment variable
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-west-2" // Default region
	}

	sess := session.Must(session.NewSession(&aws.Config{
		Region: aws.String(region),
	}))

	return kms.New(sess)
}

func resolveRawAESKey(rc *config.RawAESConfig) ([]byte, error) {
	encoded := rc.Key
	if encoded == "" && rc.EnvVar != "" {
		encoded = os.Getenv(rc.EnvVar)
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: raw AES keyring %s has no wrapping key", ErrInvalidKeyringConfig, rc.KeyName)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw AES wrapping key: %w", err)
	}
	return key, nil
}
