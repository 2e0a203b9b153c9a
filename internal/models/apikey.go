package models

import "time"

// API key lifecycle states.
const (
	KeyStatusPending = "pending"
	KeyStatusActive  = "active"
	KeyStatusRevoked = "revoked"
)

// Scopes granted to agent keys.
const (
	ScopeReadContent  = "read:content"
	ScopeWriteContent = "write:content"
	ScopeReadTheme    = "read:theme"
	ScopeWriteTheme   = "write:theme"
	ScopeReadSEO      = "read:seo"
	ScopeWriteSEO     = "write:seo"
	ScopeReadMedia    = "read:media"
	ScopeWriteMedia   = "write:media"
	ScopeAdminKeys    = "admin:keys"
	ScopeAdminAudit   = "admin:audit"
)

// KnownScopes is the closed set accepted on key creation.
var KnownScopes = []string{
	ScopeReadContent, ScopeWriteContent,
	ScopeReadTheme, ScopeWriteTheme,
	ScopeReadSEO, ScopeWriteSEO,
	ScopeReadMedia, ScopeWriteMedia,
	ScopeAdminKeys, ScopeAdminAudit,
}

// APIKey is a stored agent credential. The raw token is never persisted;
// only its bcrypt hash and a display prefix are.
type APIKey struct {
	ID         int64      `db:"id" json:"id"`
	Label      string     `db:"label" json:"label"`
	KeyPrefix  string     `db:"key_prefix" json:"key_prefix"`
	KeyHash    string     `db:"key_hash" json:"-"`
	Scopes     StringList `db:"scopes" json:"scopes"`
	Status     string     `db:"status" json:"status"`
	RateLimit  int        `db:"rate_limit" json:"rate_limit"`
	AllowedIPs StringList `db:"allowed_ips" json:"allowed_ips"`
	CreatedBy  string     `db:"created_by" json:"created_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	LastUsedIP string     `db:"last_used_ip" json:"last_used_ip,omitempty"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// HasScope reports whether the key grants the named scope.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// MissingScopes returns the required scopes the key does not grant.
func (k *APIKey) MissingScopes(required []string) []string {
	var missing []string
	for _, scope := range required {
		if !k.HasScope(scope) {
			missing = append(missing, scope)
		}
	}
	return missing
}

// Expired reports whether the key has a past expiry timestamp.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
