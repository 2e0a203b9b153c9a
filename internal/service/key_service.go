package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chroma-cms/agent-api/internal/dto"
	"github.com/chroma-cms/agent-api/internal/models"
	"github.com/chroma-cms/agent-api/internal/ratelimit"
	"github.com/chroma-cms/agent-api/internal/repository"
	appErrors "github.com/chroma-cms/agent-api/pkg/errors"
)

// Token layout: ck_live_{id}.{43 chars of base64url secret}. The id is
// embedded so verification is a single indexed lookup instead of a scan.
const (
	tokenEnv      = "live"
	tokenSecret   = 32
	prefixDisplay = 18
)

var tokenPattern = regexp.MustCompile(`^ck_(live|test)_([0-9]+)\.([A-Za-z0-9\-_]+)$`)

// KeyRepository is the storage surface the key service needs.
type KeyRepository interface {
	Create(ctx context.Context, key *models.APIKey, finalize func(id int64) (hash, prefix string, err error)) (*models.APIKey, error)
	GetByID(ctx context.Context, id int64) (*models.APIKey, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.APIKey, error)
	Count(ctx context.Context, status string) (int64, error)
	Update(ctx context.Context, key *models.APIKey) error
	Revoke(ctx context.Context, id int64, at time.Time) error
	ReplaceSecret(ctx context.Context, id int64, hash, prefix string) error
	UpdateHash(ctx context.Context, id int64, hash string) error
	TouchLastUsed(ctx context.Context, id int64, at time.Time, ip string) error
}

// TouchThrottle gates the last-used write so hot keys do not turn every
// request into an UPDATE.
type TouchThrottle interface {
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// KeyService manages agent credentials: minting, verification, rotation and
// revocation.
type KeyService struct {
	repo             KeyRepository
	throttle         TouchThrottle
	validator        *validator.Validate
	logger           *zap.Logger
	bcryptCost       int
	defaultRateLimit int
	lastUsedInterval time.Duration
	now              func() time.Time
}

// NewKeyService builds a key service.
func NewKeyService(repo KeyRepository, throttle TouchThrottle, logger *zap.Logger, bcryptCost, defaultRateLimit int, lastUsedInterval time.Duration) *KeyService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &KeyService{
		repo:             repo,
		throttle:         throttle,
		validator:        validator.New(),
		logger:           logger,
		bcryptCost:       bcryptCost,
		defaultRateLimit: defaultRateLimit,
		lastUsedInterval: lastUsedInterval,
		now:              time.Now,
	}
}

// Create mints a new key. The raw token is returned exactly once; only its
// hash and display prefix are stored.
func (s *KeyService) Create(ctx context.Context, req dto.CreateKeyRequest) (*dto.MintedKeyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}
	scopes, err := normalizeScopes(req.Scopes)
	if err != nil {
		return nil, err
	}

	limit := s.defaultRateLimit
	if req.RateLimit != nil {
		limit = ratelimit.Clamp(*req.RateLimit)
	}

	key := &models.APIKey{
		Label:      strings.TrimSpace(req.Label),
		Scopes:     scopes,
		RateLimit:  limit,
		AllowedIPs: models.StringList(req.AllowedIPs),
		CreatedBy:  req.CreatedBy,
	}
	if req.ExpiresIn != nil {
		expires := s.now().Add(time.Duration(*req.ExpiresIn) * 24 * time.Hour)
		key.ExpiresAt = &expires
	}

	var rawToken string
	created, err := s.repo.Create(ctx, key, func(id int64) (string, string, error) {
		token, hash, prefix, mintErr := s.mint(id)
		if mintErr != nil {
			return "", "", mintErr
		}
		rawToken = token
		return hash, prefix, nil
	})
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	s.logger.Info("api key created",
		zap.Int64("key_id", created.ID),
		zap.String("label", created.Label),
		zap.Strings("scopes", created.Scopes),
	)

	return &dto.MintedKeyResponse{KeyResponse: dto.KeyFromModel(created), Token: rawToken}, nil
}

// Verify authenticates a raw token and returns the backing key. Failures
// are deliberately coarse on the wire; details go to the log only.
func (s *KeyService) Verify(ctx context.Context, rawToken string) (*models.APIKey, error) {
	match := tokenPattern.FindStringSubmatch(rawToken)
	if match == nil {
		return nil, appErrors.ErrInvalidKeyFormat
	}
	id, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil || id <= 0 {
		return nil, appErrors.ErrInvalidKeyFormat
	}

	key, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.ErrKeyNotFound
	}
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	switch key.Status {
	case models.KeyStatusActive:
	case models.KeyStatusRevoked:
		return nil, appErrors.ErrKeyRevoked
	default:
		return nil, appErrors.ErrKeyInvalid
	}
	if key.Expired(s.now()) {
		return nil, appErrors.ErrKeyExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawToken)); err != nil {
		return nil, appErrors.ErrKeyInvalid
	}
	s.rehashIfStale(ctx, key, rawToken)

	return key, nil
}

// CheckIP enforces the key's allowlist. An empty allowlist admits any
// address. Entries may be single IPs or CIDR blocks.
func (s *KeyService) CheckIP(key *models.APIKey, remoteIP string) error {
	if len(key.AllowedIPs) == 0 {
		return nil
	}
	ip := net.ParseIP(remoteIP)
	if ip == nil {
		return appErrors.ErrIPDenied
	}
	for _, entry := range key.AllowedIPs {
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil && network.Contains(ip) {
				return nil
			}
			continue
		}
		if allowed := net.ParseIP(entry); allowed != nil && allowed.Equal(ip) {
			return nil
		}
	}
	return appErrors.ErrIPDenied
}

// Touch records key activity, with the caller's address, at most once per
// interval. Redis arbitrates the throttle across processes; a Redis error
// skips the touch rather than the request.
func (s *KeyService) Touch(ctx context.Context, keyID int64, remoteIP string) {
	throttleKey := fmt.Sprintf("caa_touch_%d", keyID)
	won, err := s.throttle.AcquireOnce(ctx, throttleKey, s.lastUsedInterval)
	if err != nil {
		s.logger.Warn("last-used throttle unavailable", zap.Int64("key_id", keyID), zap.Error(err))
		return
	}
	if !won {
		return
	}
	if err := s.repo.TouchLastUsed(ctx, keyID, s.now(), remoteIP); err != nil {
		s.logger.Warn("last-used touch failed", zap.Int64("key_id", keyID), zap.Error(err))
	}
}

// Get returns the public view of a key.
func (s *KeyService) Get(ctx context.Context, id int64) (*dto.KeyResponse, error) {
	key, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	resp := dto.KeyFromModel(key)
	return &resp, nil
}

// List returns keys plus the filtered total.
func (s *KeyService) List(ctx context.Context, query dto.ListKeysQuery) ([]dto.KeyResponse, int64, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrValidation, err)
	}
	page, limit := normalizePage(query.Page, query.Limit)

	keys, err := s.repo.List(ctx, query.Status, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	total, err := s.repo.Count(ctx, query.Status)
	if err != nil {
		return nil, 0, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	out := make([]dto.KeyResponse, len(keys))
	for i := range keys {
		out[i] = dto.KeyFromModel(&keys[i])
	}
	return out, total, nil
}

// Update patches mutable key attributes.
func (s *KeyService) Update(ctx context.Context, id int64, req dto.UpdateKeyRequest) (*dto.KeyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrValidation, err)
	}

	key, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	if req.Label != nil {
		key.Label = strings.TrimSpace(*req.Label)
	}
	if req.Scopes != nil {
		scopes, scopeErr := normalizeScopes(*req.Scopes)
		if scopeErr != nil {
			return nil, scopeErr
		}
		key.Scopes = scopes
	}
	if req.RateLimit != nil {
		key.RateLimit = ratelimit.Clamp(*req.RateLimit)
	}
	if req.AllowedIPs != nil {
		key.AllowedIPs = models.StringList(*req.AllowedIPs)
	}

	if err := s.repo.Update(ctx, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}

	resp := dto.KeyFromModel(key)
	return &resp, nil
}

// Rotate replaces a key's secret in place. Scopes, limits and expiry are
// untouched; the old token stops working immediately.
func (s *KeyService) Rotate(ctx context.Context, id int64) (*dto.MintedKeyResponse, error) {
	key, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, appErrors.ErrNotFound
	}
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	if key.Status != models.KeyStatusActive {
		return nil, appErrors.ErrKeyRevoked
	}

	token, hash, prefix, err := s.mint(id)
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	if err := s.repo.ReplaceSecret(ctx, id, hash, prefix); err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInternal, err)
	}
	key.KeyHash = hash
	key.KeyPrefix = prefix

	s.logger.Info("api key rotated", zap.Int64("key_id", id))
	return &dto.MintedKeyResponse{KeyResponse: dto.KeyFromModel(key), Token: token}, nil
}

// Revoke permanently disables a key.
func (s *KeyService) Revoke(ctx context.Context, id int64) error {
	err := s.repo.Revoke(ctx, id, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.ErrNotFound
	}
	if err != nil {
		return appErrors.WithCause(appErrors.ErrInternal, err)
	}
	s.logger.Info("api key revoked", zap.Int64("key_id", id))
	return nil
}

// mint generates the raw token plus its stored hash and display prefix.
func (s *KeyService) mint(id int64) (token, hash, prefix string, err error) {
	secret := make([]byte, tokenSecret)
	if _, err = rand.Read(secret); err != nil {
		return "", "", "", fmt.Errorf("generate key secret: %w", err)
	}

	token = fmt.Sprintf("ck_%s_%d.%s", tokenEnv, id,
		base64.RawURLEncoding.EncodeToString(secret))

	hashed, err := bcrypt.GenerateFromPassword([]byte(token), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash key token: %w", err)
	}

	prefix = token
	if len(prefix) > prefixDisplay {
		prefix = prefix[:prefixDisplay]
	}
	return token, string(hashed), prefix, nil
}

// rehashIfStale upgrades stored hashes opportunistically when the configured
// cost changes. The raw token is only available during a successful verify.
func (s *KeyService) rehashIfStale(ctx context.Context, key *models.APIKey, rawToken string) {
	cost, err := bcrypt.Cost([]byte(key.KeyHash))
	if err != nil || cost == s.bcryptCost {
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(rawToken), s.bcryptCost)
	if err != nil {
		return
	}
	if err := s.repo.UpdateHash(ctx, key.ID, string(hashed)); err != nil {
		s.logger.Warn("key rehash failed", zap.Int64("key_id", key.ID), zap.Error(err))
		return
	}
	key.KeyHash = string(hashed)
}

func normalizeScopes(scopes []string) (models.StringList, error) {
	known := make(map[string]struct{}, len(models.KnownScopes))
	for _, s := range models.KnownScopes {
		known[s] = struct{}{}
	}

	seen := map[string]struct{}{}
	out := models.StringList{}
	for _, scope := range scopes {
		scope = strings.ToLower(strings.TrimSpace(scope))
		if scope == "" {
			continue
		}
		if _, ok := known[scope]; !ok {
			return nil, appErrors.WithDetails(appErrors.ErrValidation,
				map[string]any{"unknown_scope": scope})
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	if len(out) == 0 {
		return nil, appErrors.ErrValidation
	}
	sort.Strings(out)
	return out, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 100
	}
	if limit > 200 {
		limit = 200
	}
	return page, limit
}
