package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app" toml:"app"`
	Server   ServerConfig   `mapstructure:"server" toml:"server"`
	Logger   LoggerConfig   `mapstructure:"logger" toml:"logger"`
	Security SecurityConfig `mapstructure:"security" toml:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics" toml:"metrics"`
	Storage  StorageConfig  `mapstructure:"storage" toml:"storage"`
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Redis    RedisConfig    `mapstructure:"redis" toml:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt" toml:"jwt"`
	AI       AIConfig       `mapstructure:"ai" toml:"ai"`
	Proxy    ProxyConfig    `mapstructure:"proxy" toml:"proxy"`
	Calendar CalendarConfig `mapstructure:"calendar" toml:"calendar"`
	Chat     ChatConfig     `mapstructure:"chat" toml:"chat"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name" toml:"name"`
	Version     string `mapstructure:"version" toml:"version"`
	Environment string `mapstructure:"environment" toml:"environment"`
	Debug       bool   `mapstructure:"debug" toml:"debug"`
	SeedSamples bool   `mapstructure:"seed_samples" toml:"seed_samples"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port" toml:"port"`
	Host            string        `mapstructure:"host" toml:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" toml:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" toml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" toml:"shutdown_timeout"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level    string `mapstructure:"level" toml:"level"`
	Format   string `mapstructure:"format" toml:"format"`
	Output   string `mapstructure:"output" toml:"output"`
	Filename string `mapstructure:"filename" toml:"filename"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins" toml:"cors_allowed_origins"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests" toml:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window" toml:"rate_limit_window"`
	RequireAuth        bool          `mapstructure:"require_auth" toml:"require_auth"`
	BcryptCost         int           `mapstructure:"bcrypt_cost" toml:"bcrypt_cost"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
}

// StorageConfig selects the durable key/value backend.
type StorageConfig struct {
	Backend    string `mapstructure:"backend" toml:"backend"`
	SQLitePath string `mapstructure:"sqlite_path" toml:"sqlite_path"`
	FilePath   string `mapstructure:"file_path" toml:"file_path"`
	Namespace  string `mapstructure:"namespace" toml:"namespace"`
}

// DatabaseConfig holds postgres configuration for the postgres storage backend
type DatabaseConfig struct {
	Host            string        `mapstructure:"host" toml:"host"`
	Port            int           `mapstructure:"port" toml:"port"`
	Name            string        `mapstructure:"name" toml:"name"`
	User            string        `mapstructure:"user" toml:"user"`
	Password        string        `mapstructure:"password" toml:"password"`
	SSLMode         string        `mapstructure:"ssl_mode" toml:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" toml:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path" toml:"migrations_path"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host" toml:"host"`
	Port     int    `mapstructure:"port" toml:"port"`
	Password string `mapstructure:"password" toml:"password"`
	DB       int    `mapstructure:"db" toml:"db"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string        `mapstructure:"secret" toml:"secret"`
	ExpiresIn time.Duration `mapstructure:"expires_in" toml:"expires_in"`
	Issuer    string        `mapstructure:"issuer" toml:"issuer"`
}

// AIConfig configures the chat-completion collaborator.
type AIConfig struct {
	Provider     string        `mapstructure:"provider" toml:"provider"`
	APIKey       string        `mapstructure:"api_key" toml:"api_key"`
	BaseURL      string        `mapstructure:"base_url" toml:"base_url"`
	DefaultModel string        `mapstructure:"default_model" toml:"default_model"`
	GeminiModel  string        `mapstructure:"gemini_model" toml:"gemini_model"`
	SiteURL      string        `mapstructure:"site_url" toml:"site_url"`
	SiteName     string        `mapstructure:"site_name" toml:"site_name"`
	Temperature  float64       `mapstructure:"temperature" toml:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens" toml:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// ProxyConfig configures the provider passthrough endpoint.
type ProxyConfig struct {
	UpstreamURL    string        `mapstructure:"upstream_url" toml:"upstream_url"`
	APIKey         string        `mapstructure:"api_key" toml:"api_key"`
	DefaultReferer string        `mapstructure:"default_referer" toml:"default_referer"`
	Title          string        `mapstructure:"title" toml:"title"`
	Timeout        time.Duration `mapstructure:"timeout" toml:"timeout"`
}

// CalendarConfig configures the calendar aggregator and its optional mirror.
type CalendarConfig struct {
	Timezone string               `mapstructure:"timezone" toml:"timezone"`
	Google   GoogleCalendarConfig `mapstructure:"google" toml:"google"`
}

// GoogleCalendarConfig configures mirroring derived events to Google Calendar.
type GoogleCalendarConfig struct {
	Enabled     bool   `mapstructure:"enabled" toml:"enabled"`
	CalendarID  string `mapstructure:"calendar_id" toml:"calendar_id"`
	AccessToken string `mapstructure:"access_token" toml:"access_token"`
	Endpoint    string `mapstructure:"endpoint" toml:"endpoint"`
}

// ChatConfig tunes chat persistence.
type ChatConfig struct {
	BackupEvery  int `mapstructure:"backup_every" toml:"backup_every"`
	BackupRetain int `mapstructure:"backup_retain" toml:"backup_retain"`
}

// Load loads configuration from various sources. configFile may be empty.
func Load(configFile string) (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnvVars(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("keladiary")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/keladiary")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

const defaultJWTSecret = "kela-diary-development-secret"

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Kela Diary")
	v.SetDefault("app.version", "2.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.seed_samples", true)

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.filename", "")

	// Security defaults
	v.SetDefault("security.cors_allowed_origins", "*")
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_window", "1m")
	v.SetDefault("security.require_auth", false)
	v.SetDefault("security.bcrypt_cost", 10)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Storage defaults
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.sqlite_path", "keladiary.db")
	v.SetDefault("storage.file_path", "keladiary.json")
	v.SetDefault("storage.namespace", "keladiary:")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "keladiary")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "30s")
	v.SetDefault("database.migrations_path", "file://migrations")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// JWT defaults
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.expires_in", "168h")
	v.SetDefault("jwt.issuer", "kela-diary")

	// AI defaults
	v.SetDefault("ai.provider", "openrouter")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("ai.default_model", "anthropic/claude-sonnet-4")
	v.SetDefault("ai.gemini_model", "gemini-2.5-flash")
	v.SetDefault("ai.site_url", "https://kela-diary.vercel.app")
	v.SetDefault("ai.site_name", "Kela Diary")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.timeout", "120s")

	// Proxy defaults
	v.SetDefault("proxy.upstream_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("proxy.api_key", "")
	v.SetDefault("proxy.default_referer", "https://kela-diary.vercel.app")
	v.SetDefault("proxy.title", "Kela Diary")
	v.SetDefault("proxy.timeout", "120s")

	// Calendar defaults
	v.SetDefault("calendar.timezone", "Local")
	v.SetDefault("calendar.google.enabled", false)
	v.SetDefault("calendar.google.calendar_id", "primary")
	v.SetDefault("calendar.google.access_token", "")
	v.SetDefault("calendar.google.endpoint", "")

	// Chat defaults
	v.SetDefault("chat.backup_every", 10)
	v.SetDefault("chat.backup_retain", 5)
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("app.debug", "APP_DEBUG")

	// Server
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")

	// Logger
	_ = v.BindEnv("logger.level", "LOG_LEVEL")
	_ = v.BindEnv("logger.format", "LOG_FORMAT")
	_ = v.BindEnv("logger.output", "LOG_OUTPUT")
	_ = v.BindEnv("logger.filename", "LOG_FILENAME")

	// Security
	_ = v.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	_ = v.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("security.require_auth", "REQUIRE_AUTH")

	// Metrics
	_ = v.BindEnv("metrics.enabled", "ENABLE_METRICS")

	// Storage
	_ = v.BindEnv("storage.backend", "STORAGE_BACKEND")
	_ = v.BindEnv("storage.sqlite_path", "SQLITE_PATH")
	_ = v.BindEnv("storage.file_path", "STORAGE_FILE")

	// Database
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.ssl_mode", "DB_SSL_MODE")

	// Redis
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	// JWT
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("jwt.expires_in", "JWT_EXPIRES_IN")

	// AI
	_ = v.BindEnv("ai.provider", "AI_PROVIDER")
	_ = v.BindEnv("ai.api_key", "AI_API_KEY", "VITE_OPENROUTER_API_KEY")
	_ = v.BindEnv("ai.base_url", "AI_BASE_URL")
	_ = v.BindEnv("ai.default_model", "AI_DEFAULT_MODEL")

	// Proxy
	_ = v.BindEnv("proxy.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("proxy.upstream_url", "OPENROUTER_UPSTREAM_URL")

	// Calendar
	_ = v.BindEnv("calendar.timezone", "CALENDAR_TIMEZONE", "TZ")
	_ = v.BindEnv("calendar.google.enabled", "GOOGLE_CALENDAR_ENABLED")
	_ = v.BindEnv("calendar.google.calendar_id", "GOOGLE_CALENDAR_ID")
	_ = v.BindEnv("calendar.google.access_token", "GOOGLE_CALENDAR_TOKEN")
}

var (
	storageBackends = map[string]bool{"memory": true, "sqlite": true, "file": true, "postgres": true, "redis": true}
	aiProviders     = map[string]bool{"openrouter": true, "gemini": true, "none": true}
)

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if !storageBackends[cfg.Storage.Backend] {
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Storage.Backend == "postgres" && (cfg.Database.Host == "" || cfg.Database.Name == "") {
		return fmt.Errorf("database host and name are required for the postgres backend")
	}

	if !aiProviders[cfg.AI.Provider] {
		return fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}

	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT secret must be set")
	}
	if cfg.App.IsProduction() && cfg.JWT.Secret == defaultJWTSecret {
		return fmt.Errorf("JWT secret should not use the default value in production")
	}

	if cfg.Chat.BackupEvery <= 0 || cfg.Chat.BackupRetain <= 0 {
		return fmt.Errorf("chat backup_every and backup_retain must be positive")
	}

	if cfg.Calendar.Google.Enabled && cfg.Calendar.Google.AccessToken == "" {
		return fmt.Errorf("google calendar mirroring requires an access token")
	}

	return nil
}

// GetDSN returns the database connection string
func (cfg *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// GetAddr returns the Redis address
func (cfg *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Location resolves the configured calendar time zone.
func (cfg *CalendarConfig) Location() (*time.Location, error) {
	if cfg.Timezone == "" || cfg.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", cfg.Timezone, err)
	}
	return loc, nil
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}
