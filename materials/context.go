package materials

import (
	"encoding/json"
	"sort"
)

// EncryptionContext contains information used for key derivation and authentication
type EncryptionContext map[string]string

// ContextToBytes converts an EncryptionContext to a deterministic byte array
// for use as authentication data in GCM encryption/decryption
func ContextToBytes(ec EncryptionContext) []byte {
	// Sort keys for deterministic ordering
	keys := make([]string, 0, len(ec))
	for k := range ec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build a map with sorted keys for JSON marshaling
	sortedMap := make(map[string]string)
	for _, k := range keys {
		sortedMap[k] = ec[k]
	}

	// Marshal to JSON for a consistent binary representation
	data, err := json.Marshal(sortedMap)
	if err != nil {
		// If marshaling fails, return an empty slice rather than crashing
		// This should never happen with simple string maps
		return []byte{}
	}

	return data
}

// Clone returns an independent copy of the context
func (ec EncryptionContext) Clone() EncryptionContext {
	if ec == nil {
		return nil
	}
	out := make(EncryptionContext, len(ec))
	for k, v := range ec {
		out[k] = v
	}
	return out
}
