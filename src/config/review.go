package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stake-plus/mod-review/src/review"
	"gorm.io/gorm"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendMySQL    = "mysql"
	BackendMemory   = "memory"
)

// OAuthConfig holds the Discord OAuth2 application used for admin login.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// ReviewConfig holds everything the review service needs.
type ReviewConfig struct {
	Base
	Port         string
	RoleID       string
	AdminRoleID  string
	AdminIDs     []string
	LogChannelID string
	WebhookURL   string

	OAuth       OAuthConfig
	JWTSecret   string
	IntakeToken string
	// CookieSecure marks the session cookie Secure; off only for local http.
	CookieSecure   bool
	AllowedOrigins []string

	StoreBackend  string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string
	RedisURL      string
	StreamMaxLen  int64

	DiscordTimeout time.Duration
	StoreTimeout   time.Duration
	LockTimeout    time.Duration

	RateLimit float64
	RateBurst int

	LogLevel       string
	LogDevelopment bool

	Messages     review.Messages
	Placeholders []string
}

// LoadReviewConfig loads the review service configuration. Precedence is
// settings table, then environment, then default; the YAML file fills DM copy,
// extra placeholders and extra admin ids.
func LoadReviewConfig(db *gorm.DB) (ReviewConfig, error) {
	base, err := LoadBase(db)
	if err != nil {
		return ReviewConfig{}, err
	}

	file, err := LoadFile(GetSetting("review_config", "REVIEW_CONFIG", ""))
	if err != nil {
		return ReviewConfig{}, err
	}

	backend := strings.ToLower(GetSetting("store_backend", "STORE_BACKEND", ""))
	if backend == "" {
		switch {
		case GetSetting("supabase_url", "SUPABASE_URL", "") != "":
			backend = BackendSupabase
		case base.MySQLDSN != "":
			backend = BackendMySQL
		default:
			backend = BackendMemory
		}
	}

	cfg := ReviewConfig{
		Base:         base,
		Port:         GetSetting("review_port", "PORT", "8080"),
		RoleID:       GetSetting("moderator_role_id", "MODERATOR_ROLE_ID", ""),
		AdminRoleID:  GetSetting("admin_role_id", "ADMIN_ROLE_ID", ""),
		AdminIDs:     append(splitList(GetSetting("admin_discord_ids", "ADMIN_DISCORD_IDS", "")), file.AdminIDs...),
		LogChannelID: GetSetting("review_log_channel_id", "REVIEW_LOG_CHANNEL_ID", ""),
		WebhookURL:   GetSetting("review_webhook_url", "REVIEW_WEBHOOK_URL", ""),
		OAuth: OAuthConfig{
			ClientID:     GetSetting("discord_client_id", "DISCORD_CLIENT_ID", ""),
			ClientSecret: GetSetting("discord_client_secret", "DISCORD_CLIENT_SECRET", ""),
			RedirectURL:  GetSetting("discord_redirect_url", "DISCORD_REDIRECT_URL", "http://localhost:8080/auth/callback"),
		},
		JWTSecret:      GetSetting("jwt_secret", "JWT_SECRET", ""),
		IntakeToken:    GetSetting("intake_token", "INTAKE_TOKEN", ""),
		CookieSecure:   getBoolSetting("cookie_secure", "COOKIE_SECURE", true),
		AllowedOrigins: splitList(GetSetting("allowed_origins", "ALLOWED_ORIGINS", "http://localhost:3000")),
		StoreBackend:   backend,
		SupabaseURL:    GetSetting("supabase_url", "SUPABASE_URL", ""),
		SupabaseKey:    GetSetting("supabase_service_key", "SUPABASE_SERVICE_KEY", ""),
		SupabaseTable:  GetSetting("supabase_table", "SUPABASE_TABLE", "applications"),
		RedisURL:       GetSetting("redis_url", "REDIS_URL", ""),
		StreamMaxLen:   int64(getIntSetting("review_stream_maxlen", "REVIEW_STREAM_MAXLEN", 10000)),
		DiscordTimeout: getDurationSetting("discord_call_timeout", "DISCORD_CALL_TIMEOUT", 5*time.Second),
		StoreTimeout:   getDurationSetting("store_call_timeout", "STORE_CALL_TIMEOUT", 5*time.Second),
		LockTimeout:    getDurationSetting("review_lock_timeout", "REVIEW_LOCK_TIMEOUT", 15*time.Second),
		RateLimit:      getFloatSetting("rate_limit_rps", "RATE_LIMIT_RPS", 5),
		RateBurst:      getIntSetting("rate_limit_burst", "RATE_LIMIT_BURST", 20),
		LogLevel:       GetSetting("log_level", "LOG_LEVEL", "info"),
		LogDevelopment: getBoolSetting("log_development", "LOG_DEVELOPMENT", false),
		Messages:       file.Messages,
		Placeholders:   append(append([]string{}, review.DefaultPlaceholders...), file.Placeholders...),
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent value at once.
func (c ReviewConfig) Validate() error {
	var errs []error
	require := func(v, name string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	require(c.Token, "DISCORD_TOKEN")
	require(c.GuildID, "GUILD_ID")
	require(c.RoleID, "MODERATOR_ROLE_ID")
	require(c.OAuth.ClientID, "DISCORD_CLIENT_ID")
	require(c.OAuth.ClientSecret, "DISCORD_CLIENT_SECRET")
	require(c.IntakeToken, "INTAKE_TOKEN")
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if c.AdminRoleID == "" && len(c.AdminIDs) == 0 {
		errs = append(errs, errors.New("one of ADMIN_ROLE_ID or ADMIN_DISCORD_IDS is required"))
	}
	if _, err := url.ParseRequestURI(c.OAuth.RedirectURL); err != nil {
		errs = append(errs, fmt.Errorf("DISCORD_REDIRECT_URL: %w", err))
	}

	switch c.StoreBackend {
	case BackendSupabase:
		require(c.SupabaseURL, "SUPABASE_URL")
		require(c.SupabaseKey, "SUPABASE_SERVICE_KEY")
	case BackendMySQL:
		require(c.MySQLDSN, "MYSQL_DSN")
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of supabase, mysql, memory", c.StoreBackend))
	}
	return errors.Join(errs...)
}
