// Package cache provides the key/value cache used by the request pipeline to
// short-circuit cacheable queries. Two interchangeable stores exist: an
// in-process store for single-node deployments and a Redis store for shared
// deployments. The cache is an optimization, not a correctness dependency;
// callers treat every error as a miss.
package cache

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// DefaultTTL applies when a caller supplies no expiration.
const DefaultTTL = time.Hour

// Store is the cache contract. Values are opaque bytes; JSON helpers below
// cover the common case.
type Store interface {
	// Get returns the value for key, reporting false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A non-positive ttl selects DefaultTTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	// RemoveByPattern removes every key matching the glob pattern, where '*'
	// matches any run of characters and the match is anchored.
	RemoveByPattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SetJSON marshals v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data, ttl)
}

// GetJSON loads key and unmarshals it into a T, reporting false on a miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var v T
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// compilePattern turns a glob into an anchored, case-insensitive regexp. Only
// '*' is special; every other rune matches literally.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)^")
	for i, part := range strings.Split(pattern, "*") {
		if i > 0 {
			sb.WriteString(".*")
		}
		sb.WriteString(regexp.QuoteMeta(part))
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
