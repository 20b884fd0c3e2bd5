package keyring

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"

	"keyring-sa/multi-keyring/materials"
)

const awsKMSProviderID = "aws-kms"

// AWSKMSOptions contains configuration options for AWSKMSKeyring
type AWSKMSOptions struct {
	// KeyID is the ARN or ID of the KMS key to use
	KeyID string

	// KeySpec is the type of key to generate (defaults to AES_256 if empty)
	KeySpec string
}

// AWSKMSKeyring wraps and unwraps data keys with an AWS KMS key. As a
// generator it asks KMS to generate the data key; as a child it wraps the
// key the generator already produced.
type AWSKMSKeyring struct {
	kmsClient kmsiface.KMSAPI
	keyID     string
	keySpec   string
}

// NewAWSKMSKeyring creates a new KMS-backed keyring
func NewAWSKMSKeyring(kmsClient kmsiface.KMSAPI, options AWSKMSOptions) (*AWSKMSKeyring, error) {
	if kmsClient == nil {
		return nil, fmt.Errorf("%w: AWS KMS keyring requires a KMS client", ErrInvalidKeyringConfig)
	}
	if options.KeyID == "" {
		return nil, fmt.Errorf("%w: AWS KMS keyring requires a key id", ErrInvalidKeyringConfig)
	}

	// Set default keySpec if not provided
	keySpec := options.KeySpec
	if keySpec == "" {
		keySpec = "AES_256"
	}

	return &AWSKMSKeyring{
		kmsClient: kmsClient,
		keyID:     options.KeyID,
		keySpec:   keySpec,
	}, nil
}

// OnEncrypt generates a data key via KMS when none exists, otherwise wraps
// the existing key with this keyring's KMS key
func (k *AWSKMSKeyring) OnEncrypt(ctx context.Context, em *materials.EncryptionMaterials) (*materials.EncryptionMaterials, error) {
	encryptionContext := kmsEncryptionContext(em.EncryptionContext())

	if !em.HasPlaintextDataKey() {
		input := &kms.GenerateDataKeyInput{
			KeyId:             aws.String(k.keyID),
			KeySpec:           aws.String(k.keySpec),
			EncryptionContext: encryptionContext,
		}

		result, err := k.kmsClient.GenerateDataKeyWithContext(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to generate data key: %v", err)
		}

		if err := em.SetPlaintextDataKey(result.Plaintext); err != nil {
			return nil, err
		}
		em.AddEncryptedDataKey(materials.EncryptedDataKey{
			ProviderID:   awsKMSProviderID,
			ProviderInfo: k.keyID,
			Ciphertext:   result.CiphertextBlob,
		})
		return em, nil
	}

	input := &kms.EncryptInput{
		KeyId:             aws.String(k.keyID),
		Plaintext:         em.PlaintextDataKey(),
		EncryptionContext: encryptionContext,
	}

	result, err := k.kmsClient.EncryptWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt data key: %v", err)
	}

	em.AddEncryptedDataKey(materials.EncryptedDataKey{
		ProviderID:   awsKMSProviderID,
		ProviderInfo: k.keyID,
		Ciphertext:   result.CiphertextBlob,
	})
	return em, nil
}

// OnDecrypt attempts to unwrap each EDK produced under this keyring's key
func (k *AWSKMSKeyring) OnDecrypt(ctx context.Context, dm *materials.DecryptionMaterials, edks []materials.EncryptedDataKey) (*materials.DecryptionMaterials, error) {
	if dm.Valid() {
		return dm, nil
	}

	encryptionContext := kmsEncryptionContext(dm.EncryptionContext())

	var lastErr error
	for _, edk := range edks {
		if edk.ProviderID != awsKMSProviderID || edk.ProviderInfo != k.keyID {
			continue
		}

		input := &kms.DecryptInput{
			KeyId:             aws.String(k.keyID),
			CiphertextBlob:    edk.Ciphertext,
			EncryptionContext: encryptionContext,
		}

		result, err := k.kmsClient.DecryptWithContext(ctx, input)
		if err != nil {
			lastErr = err
			continue
		}

		if err := dm.SetPlaintextDataKey(result.Plaintext); err != nil {
			return nil, err
		}
		return dm, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to decrypt key: %v", lastErr)
	}
	return dm, nil
}

// kmsEncryptionContext converts an EncryptionContext to a KMS encryption context
func kmsEncryptionContext(ec materials.EncryptionContext) map[string]*string {
	encryptionContext := make(map[string]*string)
	for key, value := range ec {
		valueCopy := value // Create a copy to avoid issues with loop variable
		encryptionContext[key] = &valueCopy
	}
	return encryptionContext
}
