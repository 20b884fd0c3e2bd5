package keyring

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"keyring-sa/multi-keyring/materials"
	"keyring-sa/multi-keyring/metrics"
)

// CachingConfig holds configuration for the caching keyring
type CachingConfig struct {
	MaxCache        int
	MaxAge          time.Duration
	MaxMessagesUsed int
}

// CachingKeyring wraps another keyring and caches its results: generated data
// keys per encryption context on encrypt, unwrapped data keys per (context,
// EDK set) on decrypt. Cached entries expire by age and by use count so a
// single data key is never reused indefinitely.
type CachingKeyring struct {
	cache           *lru.Cache
	mutex           sync.RWMutex
	maxAge          time.Duration
	maxMessagesUsed int
	underlying      Keyring
	metricsHandler  metrics.Handler
}

type cachedEncryptEntry struct {
	plaintextKey []byte
	edks         []materials.EncryptedDataKey
	createdAt    time.Time
	usageCount   int
}

type cachedDecryptEntry struct {
	plaintextKey []byte
	createdAt    time.Time
	usageCount   int
}

// NewCachingKeyring creates a caching keyring around an existing keyring
func NewCachingKeyring(underlying Keyring, config CachingConfig, metricsHandler metrics.Handler) (*CachingKeyring, error) {
	if underlying == nil {
		return nil, fmt.Errorf("%w: caching keyring requires an underlying keyring", ErrInvalidKeyringConfig)
	}

	cache, err := lru.New(config.MaxCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %v", err)
	}

	if metricsHandler == nil {
		metricsHandler = metrics.NopHandler
	}

	return &CachingKeyring{
		cache:           cache,
		maxAge:          config.MaxAge,
		maxMessagesUsed: config.MaxMessagesUsed,
		underlying:      underlying,
		metricsHandler:  metricsHandler,
	}, nil
}

// OnEncrypt serves generated data keys from the cache when possible. A
// materials instance that already carries a data key bypasses the cache,
// since the underlying keyring then only wraps.
func (c *CachingKeyring) OnEncrypt(ctx context.Context, em *materials.EncryptionMaterials) (*materials.EncryptionMaterials, error) {
	if em.HasPlaintextDataKey() {
		return c.underlying.OnEncrypt(ctx, em)
	}

	cacheKey := c.createCacheKey(em.EncryptionContext())

	c.mutex.RLock()
	cachedValue, found := c.cache.Get(cacheKey)
	c.mutex.RUnlock()

	if found {
		entry := cachedValue.(*cachedEncryptEntry)

		if c.isEntryValid(entry.createdAt, entry.usageCount) {
			c.mutex.Lock()
			entry.usageCount++
			c.mutex.Unlock()

			c.metricsHandler.Counter(metrics.CacheHits).Inc(1)

			if err := em.SetPlaintextDataKey(entry.plaintextKey); err != nil {
				return nil, err
			}
			for _, edk := range entry.edks {
				em.AddEncryptedDataKey(edk)
			}
			return em, nil
		}

		// Remove expired entry
		c.mutex.Lock()
		c.cache.Remove(cacheKey)
		c.mutex.Unlock()
	}

	c.metricsHandler.Counter(metrics.CacheMisses).Inc(1)

	start := time.Now()
	c.metricsHandler.Counter(metrics.KeyringWrapRequests).Inc(1)
	em, err := c.underlying.OnEncrypt(ctx, em)
	c.metricsHandler.Timer(metrics.KeyringWrapLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.KeyringWrapErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.KeyringWrapSuccess).Inc(1)

	if em.HasPlaintextDataKey() {
		entry := &cachedEncryptEntry{
			plaintextKey: em.PlaintextDataKey(),
			edks:         append([]materials.EncryptedDataKey(nil), em.EncryptedDataKeys()...),
			createdAt:    time.Now(),
			usageCount:   1,
		}

		c.mutex.Lock()
		c.cache.Add(cacheKey, entry)
		c.mutex.Unlock()
	}

	return em, nil
}

// OnDecrypt serves unwrapped data keys from the cache when possible
func (c *CachingKeyring) OnDecrypt(ctx context.Context, dm *materials.DecryptionMaterials, edks []materials.EncryptedDataKey) (*materials.DecryptionMaterials, error) {
	if dm.Valid() {
		return dm, nil
	}

	cacheKey := c.createDecryptionCacheKey(dm.EncryptionContext(), edks)

	c.mutex.RLock()
	cachedValue, found := c.cache.Get(cacheKey)
	c.mutex.RUnlock()

	if found {
		entry := cachedValue.(*cachedDecryptEntry)

		if c.isEntryValid(entry.createdAt, entry.usageCount) {
			c.mutex.Lock()
			entry.usageCount++
			c.mutex.Unlock()

			c.metricsHandler.Counter(metrics.CacheHits).Inc(1)

			if err := dm.SetPlaintextDataKey(entry.plaintextKey); err != nil {
				return nil, err
			}
			return dm, nil
		}

		// Remove expired entry
		c.mutex.Lock()
		c.cache.Remove(cacheKey)
		c.mutex.Unlock()
	}

	c.metricsHandler.Counter(metrics.CacheMisses).Inc(1)

	start := time.Now()
	c.metricsHandler.Counter(metrics.KeyringUnwrapRequests).Inc(1)
	dm, err := c.underlying.OnDecrypt(ctx, dm, edks)
	c.metricsHandler.Timer(metrics.KeyringUnwrapLatency).Record(time.Since(start))
	if err != nil {
		c.metricsHandler.Counter(metrics.KeyringUnwrapErrors).Inc(1)
		return nil, err
	}
	c.metricsHandler.Counter(metrics.KeyringUnwrapSuccess).Inc(1)

	if dm.Valid() {
		entry := &cachedDecryptEntry{
			plaintextKey: dm.PlaintextDataKey(),
			createdAt:    time.Now(),
			usageCount:   1,
		}

		c.mutex.Lock()
		c.cache.Add(cacheKey, entry)
		c.mutex.Unlock()
	}

	return dm, nil
}

// isEntryValid checks if a cached entry is still valid based on age and usage count
func (c *CachingKeyring) isEntryValid(createdAt time.Time, usageCount int) bool {
	if time.Since(createdAt) > c.maxAge {
		return false
	}

	if usageCount >= c.maxMessagesUsed {
		return false
	}

	return true
}

// createCacheKey generates a hashed cache key from the encryption context
func (c *CachingKeyring) createCacheKey(ec materials.EncryptionContext) string {
	// Sort keys for consistent ordering
	keys := make([]string, 0, len(ec))
	for k := range ec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Create a hash of the context
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{':'})
		h.Write([]byte(ec[k]))
		h.Write([]byte{';'})
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

// createDecryptionCacheKey generates a hashed cache key that includes the EDK set
func (c *CachingKeyring) createDecryptionCacheKey(ec materials.EncryptionContext, edks []materials.EncryptedDataKey) string {
	// Get the context hash
	contextKey := c.createCacheKey(ec)

	// Add each EDK to the hash
	h := sha256.New()
	h.Write([]byte(contextKey))
	for _, edk := range edks {
		h.Write([]byte{':'})
		h.Write([]byte(edk.ProviderID))
		h.Write([]byte{':'})
		h.Write([]byte(edk.ProviderInfo))
		h.Write([]byte{':'})
		h.Write(edk.Ciphertext)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}
