package keyring

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/googleapis/gax-go/v2"

	"keyring-sa/multi-keyring/materials"
)

const gcpKMSProviderID = "gcp-kms"

// GCPKMSOptions contains configuration options for GCPKMSKeyring
type GCPKMSOptions struct {
	// KeyName is the fully qualified name of the GCP KMS key to use
	// Format: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	KeyName string
}

// GCPKMSClient defines the interface for GCP KMS operations
type GCPKMSClient interface {
	GenerateRandomBytes(ctx context.Context, req *kmspb.GenerateRandomBytesRequest, opts ...gax.CallOption) (*kmspb.GenerateRandomBytesResponse, error)
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

// GCPKMSKeyring wraps and unwraps data keys with a Google Cloud KMS key
type GCPKMSKeyring struct {
	kmsClient GCPKMSClient
	keyName   string
}

// NewGCPKMSKeyring creates a new GCP KMS-backed keyring
func NewGCPKMSKeyring(kmsClient GCPKMSClient, options GCPKMSOptions) (*GCPKMSKeyring, error) {
	if kmsClient == nil {
		return nil, fmt.Errorf("%w: GCP KMS keyring requires a KMS client", ErrInvalidKeyringConfig)
	}
	if options.KeyName == "" {
		return nil, fmt.Errorf("%w: GCP KMS keyring requires a key name", ErrInvalidKeyringConfig)
	}

	return &GCPKMSKeyring{
		kmsClient: kmsClient,
		keyName:   options.KeyName,
	}, nil
}

// OnEncrypt generates a data key from KMS HSM randomness when none exists,
// then wraps the key with the configured KMS key
func (g *GCPKMSKeyring) OnEncrypt(ctx context.Context, em *materials.EncryptionMaterials) (*materials.EncryptionMaterials, error) {
	// Convert the encryption context to additional authenticated data
	aad := materials.ContextToBytes(em.EncryptionContext())

	if !em.HasPlaintextDataKey() {
		req := &kmspb.GenerateRandomBytesRequest{
			Location:        extractLocationFromKeyName(g.keyName),
			LengthBytes:     int32(em.Suite().DataKeyBytes()),
			ProtectionLevel: kmspb.ProtectionLevel_HSM,
		}

		randomResp, err := g.kmsClient.GenerateRandomBytes(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to generate random bytes: %v", err)
		}

		if err := em.SetPlaintextDataKey(randomResp.Data); err != nil {
			return nil, err
		}
	}

	encryptReq := &kmspb.EncryptRequest{
		Name:                        g.keyName,
		Plaintext:                   em.PlaintextDataKey(),
		AdditionalAuthenticatedData: aad,
	}

	encryptResp, err := g.kmsClient.Encrypt(ctx, encryptReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt data key: %v", err)
	}

	em.AddEncryptedDataKey(materials.EncryptedDataKey{
		ProviderID:   gcpKMSProviderID,
		ProviderInfo: g.keyName,
		Ciphertext:   encryptResp.Ciphertext,
	})
	return em, nil
}

// OnDecrypt attempts to unwrap each EDK produced under this keyring's key
func (g *GCPKMSKeyring) OnDecrypt(ctx context.Context, dm *materials.DecryptionMaterials, edks []materials.EncryptedDataKey) (*materials.DecryptionMaterials, error) {
	if dm.Valid() {
		return dm, nil
	}

	aad := materials.ContextToBytes(dm.EncryptionContext())

	var lastErr error
	for _, edk := range edks {
		if edk.ProviderID != gcpKMSProviderID || edk.ProviderInfo != g.keyName {
			continue
		}

		req := &kmspb.DecryptRequest{
			Name:                        g.keyName,
			Ciphertext:                  edk.Ciphertext,
			AdditionalAuthenticatedData: aad,
		}

		resp, err := g.kmsClient.Decrypt(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}

		if err := dm.SetPlaintextDataKey(resp.Plaintext); err != nil {
			return nil, err
		}
		return dm, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to decrypt key: %v", lastErr)
	}
	return dm, nil
}

// Helper function to extract location from key name
func extractLocationFromKeyName(keyName string) string {
	// Format: projects/{project}/locations/{location}/keyRings/{keyRing}/cryptoKeys/{cryptoKey}
	parts := strings.Split(keyName, "/")
	var projectID, location string

	for i, part := range parts {
		if part == "projects" && i+1 < len(parts) {
			projectID = parts[i+1]
		}
		if part == "locations" && i+1 < len(parts) {
			location = parts[i+1]
		}
	}

	if projectID != "" && location != "" {
		return fmt.Sprintf("projects/%s/locations/%s", projectID, location)
	}

	return "projects/default-project/locations/global" // Default location
}
