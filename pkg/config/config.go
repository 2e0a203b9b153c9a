package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Auth     AuthConfig
	Policy   PolicyConfig
	Media    MediaConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig tunes the API key authorization pipeline.
type AuthConfig struct {
	RequireHTTPS        bool
	DefaultRateLimit    int
	SignatureSkew       time.Duration
	LastUsedInterval    time.Duration
	RedactionKeys       []string
	DiscoveryCacheTTL   time.Duration
	BcryptCost          int
	KeyListLimitDefault int
}

// PolicyConfig carries the write-policy allowlists for settings surfaces.
// Empty lists fall back to the shipped defaults below.
type PolicyConfig struct {
	ThemeOptionAllowlist []string
	ThemeModAllowlist    []string
	SEOOptionAllowlist   []string
	SEOMetaAllowlist     []string
}

// MediaConfig controls media upload storage & validation.
type MediaConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Auth = AuthConfig{
		RequireHTTPS:        v.GetBool("AUTH_REQUIRE_HTTPS"),
		DefaultRateLimit:    v.GetInt("AUTH_DEFAULT_RATE_LIMIT"),
		SignatureSkew:       parseDuration(v.GetString("AUTH_SIGNATURE_SKEW"), 5*time.Minute),
		LastUsedInterval:    parseDuration(v.GetString("AUTH_LAST_USED_INTERVAL"), time.Minute),
		RedactionKeys:       splitAndTrim(v.GetString("AUDIT_REDACTION_KEYS")),
		DiscoveryCacheTTL:   parseDuration(v.GetString("DISCOVERY_CACHE_TTL"), time.Minute),
		BcryptCost:          v.GetInt("AUTH_BCRYPT_COST"),
		KeyListLimitDefault: v.GetInt("AUTH_KEY_LIST_LIMIT"),
	}

	cfg.Policy = PolicyConfig{
		ThemeOptionAllowlist: splitAndTrim(v.GetString("POLICY_THEME_OPTION_ALLOWLIST")),
		ThemeModAllowlist:    splitAndTrim(v.GetString("POLICY_THEME_MOD_ALLOWLIST")),
		SEOOptionAllowlist:   splitAndTrim(v.GetString("POLICY_SEO_OPTION_ALLOWLIST")),
		SEOMetaAllowlist:     splitAndTrim(v.GetString("POLICY_SEO_META_ALLOWLIST")),
	}
	cfg.Policy.applyDefaults()

	maxUpload := v.GetInt64("MEDIA_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 25 * 1024 * 1024
	}
	cfg.Media = MediaConfig{
		StorageDir:       v.GetString("MEDIA_STORAGE_DIR"),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("MEDIA_ALLOWED_MIME_TYPES")),
	}
	if len(cfg.Media.AllowedMIMEs) == 0 {
		cfg.Media.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"}
	}

	return cfg, nil
}

// applyDefaults fills the shipped allowlists when no override is set.
func (p *PolicyConfig) applyDefaults() {
	if len(p.ThemeOptionAllowlist) == 0 {
		p.ThemeOptionAllowlist = []string{"blogname", "blogdescription", "show_on_front", "page_on_front", "page_for_posts"}
	}
	if len(p.ThemeModAllowlist) == 0 {
		p.ThemeModAllowlist = []string{"custom_logo", "background_color", "header_textcolor"}
	}
	if len(p.SEOOptionAllowlist) == 0 {
		p.SEOOptionAllowlist = []string{"chroma_seo_site_title", "chroma_seo_meta_description", "chroma_seo_social_image", "chroma_seo_noindex"}
	}
	if len(p.SEOMetaAllowlist) == 0 {
		p.SEOMetaAllowlist = []string{"_chroma_seo_title", "_chroma_seo_description", "_chroma_canonical", "_chroma_noindex"}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/agent/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "agent_api")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AUTH_REQUIRE_HTTPS", true)
	v.SetDefault("AUTH_DEFAULT_RATE_LIMIT", 120)
	v.SetDefault("AUTH_SIGNATURE_SKEW", "5m")
	v.SetDefault("AUTH_LAST_USED_INTERVAL", "1m")
	v.SetDefault("AUTH_BCRYPT_COST", 0)
	v.SetDefault("AUTH_KEY_LIST_LIMIT", 100)
	v.SetDefault("AUDIT_REDACTION_KEYS", "password,token,secret,authorization,api_key,key_hash")
	v.SetDefault("DISCOVERY_CACHE_TTL", "1m")

	v.SetDefault("POLICY_THEME_OPTION_ALLOWLIST", "")
	v.SetDefault("POLICY_THEME_MOD_ALLOWLIST", "")
	v.SetDefault("POLICY_SEO_OPTION_ALLOWLIST", "")
	v.SetDefault("POLICY_SEO_META_ALLOWLIST", "")

	v.SetDefault("MEDIA_STORAGE_DIR", "./media")
	v.SetDefault("MEDIA_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("MEDIA_ALLOWED_MIME_TYPES", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
