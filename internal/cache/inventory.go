package cache

import (
	"fmt"
	"time"
)

const (
	SessionKeyPrefix        = "session:%s"
	SessionRevokedKeyPrefix = "session:revoked:%s"
)

const (
	// SessionMaxTTL caps how long a session lookup may be served from Redis.
	SessionMaxTTL = 5 * time.Minute
	// SessionRevokedTTL must outlive any session entry written before the revocation.
	SessionRevokedTTL = SessionMaxTTL
)

// SessionKey is keyed by the token digest, never by the raw token.
func SessionKey(tokenHash string) string {
	return fmt.Sprintf(SessionKeyPrefix, tokenHash)
}

// SessionRevokedKey marks a deleted session so a lookup that raced the delete
// does not keep serving it from Redis.
func SessionRevokedKey(tokenHash string) string {
	return fmt.Sprintf(SessionRevokedKeyPrefix, tokenHash)
}

// SessionTTL returns min(remaining, SessionMaxTTL), or zero when the session
// has already expired and must not be cached.
func SessionTTL(remaining time.Duration) time.Duration {
	if remaining <= 0 {
		return 0
	}
	if remaining > SessionMaxTTL {
		return SessionMaxTTL
	}
	return remaining
}
