package metrics

const (
	DefaultPrometheusPath = "/metrics"

	MultiKeyringPrefix = "multi_keyring_"

	// Envelope cipher metrics
	EncryptLatency  = MultiKeyringPrefix + "encrypt_latency"
	EncryptRequests = MultiKeyringPrefix + "encrypt_requests"
	EncryptErrors   = MultiKeyringPrefix + "encrypt_errors"
	EncryptSuccess  = MultiKeyringPrefix + "encrypt_success"

	// Decryption metrics
	DecryptLatency  = MultiKeyringPrefix + "decrypt_latency"
	DecryptRequests = MultiKeyringPrefix + "decrypt_requests"
	DecryptErrors   = MultiKeyringPrefix + "decrypt_errors"
	DecryptSuccess  = MultiKeyringPrefix + "decrypt_success"

	// Keyring wrap metrics
	KeyringWrapLatency  = MultiKeyringPrefix + "keyring_wrap_latency"
	KeyringWrapRequests = MultiKeyringPrefix + "keyring_wrap_requests"
	KeyringWrapErrors   = MultiKeyringPrefix + "keyring_wrap_errors"
	KeyringWrapSuccess  = MultiKeyringPrefix + "keyring_wrap_success"

	// Keyring unwrap metrics
	KeyringUnwrapLatency  = MultiKeyringPrefix + "keyring_unwrap_latency"
	KeyringUnwrapRequests = MultiKeyringPrefix + "keyring_unwrap_requests"
	KeyringUnwrapErrors   = MultiKeyringPrefix + "keyring_unwrap_errors"
	KeyringUnwrapSuccess  = MultiKeyringPrefix + "keyring_unwrap_success"

	// Data key cache metrics
	CacheHits   = MultiKeyringPrefix + "cache_hits"
	CacheMisses = MultiKeyringPrefix + "cache_misses"
)
