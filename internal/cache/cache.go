package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching provider results
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key scoped to one provider and query
func Key(provider, query string) string {
	hash := sha256.Sum256([]byte(query))
	return "onesource:v1:" + provider + ":" + hex.EncodeToString(hash[:])
}
