package dto

import (
	"time"

	"github.com/chroma-cms/agent-api/internal/models"
)

// CreateKeyRequest mints a new agent key.
type CreateKeyRequest struct {
	Label      string   `json:"label" validate:"required,min=1,max=191"`
	Scopes     []string `json:"scopes" validate:"required,min=1,dive,required"`
	RateLimit  *int     `json:"rate_limit,omitempty"`
	AllowedIPs []string `json:"allowed_ips,omitempty" validate:"omitempty,dive,ip|cidr"`
	ExpiresIn  *int     `json:"expires_in_days,omitempty" validate:"omitempty,min=1,max=3650"`
	CreatedBy  string   `json:"created_by,omitempty" validate:"omitempty,max=191"`
}

// UpdateKeyRequest changes mutable key attributes.
type UpdateKeyRequest struct {
	Label      *string   `json:"label,omitempty" validate:"omitempty,min=1,max=191"`
	Scopes     *[]string `json:"scopes,omitempty" validate:"omitempty,min=1,dive,required"`
	RateLimit  *int      `json:"rate_limit,omitempty"`
	AllowedIPs *[]string `json:"allowed_ips,omitempty" validate:"omitempty,dive,ip|cidr"`
}

// KeyResponse is the safe public view of a key. The hash never leaves the
// service layer.
type KeyResponse struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Status     string     `json:"status"`
	RateLimit  int        `json:"rate_limit"`
	AllowedIPs []string   `json:"allowed_ips"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// MintedKeyResponse is returned exactly once, on create or rotate; it is the
// only time the raw token is visible.
type MintedKeyResponse struct {
	KeyResponse
	Token string `json:"token"`
}

// KeyFromModel maps a stored key onto its public view.
func KeyFromModel(k *models.APIKey) KeyResponse {
	return KeyResponse{
		ID:         k.ID,
		Label:      k.Label,
		KeyPrefix:  k.KeyPrefix,
		Scopes:     append([]string(nil), k.Scopes...),
		Status:     k.Status,
		RateLimit:  k.RateLimit,
		AllowedIPs: append([]string(nil), k.AllowedIPs...),
		CreatedBy:  k.CreatedBy,
		CreatedAt:  k.CreatedAt,
		ExpiresAt:  k.ExpiresAt,
		LastUsedAt: k.LastUsedAt,
		RevokedAt:  k.RevokedAt,
	}
}

// ListKeysQuery filters key listings.
type ListKeysQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=pending active revoked"`
	Page   int    `form:"page" validate:"omitempty,min=1"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
}
