package cipher

import (
	"encoding/json"
	"errors"
	"fmt"

	"keyring-sa/multi-keyring/materials"
)

// ErrUnresolvedMaterials is returned when no keyring member could unwrap any
// of the envelope's encrypted data keys
var ErrUnresolvedMaterials = errors.New("no keyring was able to decrypt the data key")

// Envelope is the at-rest form of an encrypted payload: the sealed data plus
// every wrapped copy of its data key
type Envelope struct {
	Suite             materials.AlgorithmSuite     `json:"suite"`
	EncryptionContext materials.EncryptionContext  `json:"encryption_context,omitempty"`
	EncryptedDataKeys []materials.EncryptedDataKey `json:"encrypted_data_keys"`
	Ciphertext        []byte                       `json:"ciphertext"`
}

// Marshal serializes the envelope for storage
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope deserializes a stored envelope
func UnmarshalEnvelope(data []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if len(envelope.EncryptedDataKeys) == 0 {
		return nil, fmt.Errorf("envelope contains no encrypted data keys")
	}
	return &envelope, nil
}
