package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/straye-as/salesdesk/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	Tables    TablesConfig
	Sessions  SessionsConfig
	Jobs      JobsConfig
}

type AppConfig struct {
	Name        string
	Environment string `validate:"oneof=development local test staging production"`
	Port        int    `validate:"gt=0,lte=65535"`
}

// BackendConfig points at the CRM REST backend the tables read from
type BackendConfig struct {
	BaseURL string `validate:"required,url"`
	// TimeoutSeconds bounds a single HTTP attempt
	TimeoutSeconds int `validate:"gt=0"`
	// MaxRetries is the number of extra attempts for idempotent GETs
	MaxRetries       int `validate:"gte=0,lte=5"`
	RetryBaseDelayMs int `validate:"gt=0"`
	RetryMaxDelayMs  int `validate:"gtefield=RetryBaseDelayMs"`
	// APIKey is sent as x-api-key next to the caller's bearer token (optional)
	APIKey string
}

type AuthConfig struct {
	// JWTSecret verifies HS256 bearer tokens issued by the sign-in service
	JWTSecret string
	Issuer    string
	Audience  string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string `validate:"oneof=environment vault auto"`
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute applies per IP before authentication
	RequestsPerMinute int
	// RequestsPerMinuteAuth applies per user; typing into a search box is chatty
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// TablesConfig tunes the table controllers
type TablesConfig struct {
	SearchDebounceMs    int `validate:"gt=0"`
	FetchTimeoutSeconds int `validate:"gt=0"`
}

// SessionsConfig bounds the server-side table sessions
type SessionsConfig struct {
	IdleTimeoutMinutes int `validate:"gt=0"`
	MaxPerUser         int `validate:"gt=0"`
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	Enabled          bool
	SessionSweepCron string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// TimeoutDuration returns the per-attempt backend timeout
func (b *BackendConfig) TimeoutDuration() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first retry backoff
func (b *BackendConfig) RetryBaseDelay() time.Duration {
	return time.Duration(b.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap
func (b *BackendConfig) RetryMaxDelay() time.Duration {
	return time.Duration(b.RetryMaxDelayMs) * time.Millisecond
}

// SearchDebounce returns the search quiet period
func (t *TablesConfig) SearchDebounce() time.Duration {
	return time.Duration(t.SearchDebounceMs) * time.Millisecond
}

// FetchTimeout returns the deadline of one page or counts fetch, retries included
func (t *TablesConfig) FetchTimeout() time.Duration {
	return time.Duration(t.FetchTimeoutSeconds) * time.Second
}

// IdleTimeout returns how long an untouched session survives
func (s *SessionsConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutMinutes) * time.Minute
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Backend.APIKey == "" {
		cfg.Backend.APIKey = v.GetString("BACKEND_API_KEY")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
// In development secrets come from environment variables; in staging and production
// they come from Azure Key Vault when USE_AZURE_KEY_VAULT=true.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault || !isValidEnv {
		logger.Info("Using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
			zap.Bool("use_key_vault", useKeyVault),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	if err := ResolveSecrets(ctx, cfg, provider); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded from vault successfully",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)
	return cfg, nil
}

// ResolveSecrets fills secret fields from src; environment variables win over the source
func ResolveSecrets(ctx context.Context, cfg *Config, src secrets.Source) error {
	jwtSecret, err := src.GetSecretOrEnv(ctx, "salesdesk-jwt-secret", "JWT_SECRET")
	if err != nil {
		return fmt.Errorf("failed to resolve JWT secret: %w", err)
	}
	cfg.Auth.JWTSecret = jwtSecret

	if apiKey, err := src.GetSecretOrEnv(ctx, "crm-backend-api-key", "BACKEND_API_KEY"); err == nil {
		cfg.Backend.APIKey = apiKey
	}
	if host, err := src.GetSecretOrEnv(ctx, "POSTGRES-MAIN-HOST", "DATABASE_HOST"); err == nil && host != "" {
		cfg.Database.Host = host
	}
	if user, err := src.GetSecretOrEnv(ctx, "POSTGRES-MAIN-USER", "DATABASE_USER"); err == nil && user != "" {
		cfg.Database.User = user
	}
	if password, err := src.GetSecretOrEnv(ctx, "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD"); err == nil && password != "" {
		cfg.Database.Password = password
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "SalesDesk")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("backend.baseURL", "http://localhost:4000/api")
	v.SetDefault("backend.timeoutSeconds", 10)
	v.SetDefault("backend.maxRetries", 2)
	v.SetDefault("backend.retryBaseDelayMs", 200)
	v.SetDefault("backend.retryMaxDelayMs", 2000)

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "salesdesk")
	v.SetDefault("database.user", "salesdesk_user")
	v.SetDefault("database.password", "salesdesk_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 10)
	v.SetDefault("database.maxIdleConns", 2)
	v.SetDefault("database.connMaxLifetime", 300)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 45)
	v.SetDefault("server.requestTimeout", 40)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 120)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 600)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/ready", "/api/v1/health/*"})

	v.SetDefault("tables.searchDebounceMs", 300)
	v.SetDefault("tables.fetchTimeoutSeconds", 30)

	v.SetDefault("sessions.idleTimeoutMinutes", 30)
	v.SetDefault("sessions.maxPerUser", 20)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.sessionSweepCron", "0 * * * * *")
}
