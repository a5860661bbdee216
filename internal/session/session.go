// Package session keeps the result of an interactive variant lookup until the clinician
// picks a syndrome for treatment. Entries expire; nothing outlives one workflow.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/genepilepsy-guide/internal/domain"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultTTL bounds how long a lookup stays available.
const DefaultTTL = 30 * time.Minute

// New builds the configured session store.
func New(cfg domain.SessionConfig, logger *logrus.Logger) (domain.SessionStore, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendMemory, "":
		return NewMemoryStore(cfg.MaxItems, ttl), nil
	case BackendRedis:
		store, err := NewRedisStore(cfg.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		logger.WithField("ttl", ttl.String()).Info("Using Redis session store")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}

func newID(lookup domain.Lookup) string {
	if lookup.ID != "" {
		return lookup.ID
	}
	return uuid.New().String()
}
