// Package storage holds the durable client state: the browser local-storage analogue.
//
// Only the session store and the API client's unauthorized handler write to it.
package storage

import (
	"context"

	"github.com/pkg/errors"
)

// Persisted keys.
const (
	KeyToken        = "token"
	KeySchoolID     = "schoolId"
	KeyUser         = "user"
	KeyRefreshToken = "refreshToken"
)

// SessionKeys are the keys removed when a session is torn down.
var SessionKeys = []string{KeyToken, KeyUser, KeySchoolID, KeyRefreshToken}

var ErrNotFound = errors.New("key not found")

// Store is a string key-value store.
type Store interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// GetString returns the stored value or "" when it is absent or unreadable.
func GetString(ctx context.Context, s Store, key string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return ""
	}
	return v
}
