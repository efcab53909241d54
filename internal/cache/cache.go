// Package cache stores evaluated assessment results keyed by catalog version and input.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pcos-assessment-server/internal/domain"
)

// KeyPrefix namespaces result keys in shared stores such as Redis.
const KeyPrefix = "pcos:result:"

// Cache is a result cache. A miss is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*domain.AssessmentResult, bool, error)
	Set(ctx context.Context, key string, result *domain.AssessmentResult) error
	Ping(ctx context.Context) error
	Close() error
}

// Key derives the cache key for an evaluation. Results depend on the catalog, so the
// catalog version is part of the key.
func Key(catalogVersion string, input domain.AssessmentInput) (string, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(catalogVersion))
	h.Write([]byte{0})
	h.Write(payload)
	return KeyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}
