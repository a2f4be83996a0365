package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/campaign-dashboard/internal/storage"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	Auth      AuthConfig      `yaml:"auth"`
	Quota     QuotaConfig     `yaml:"quota"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   storage.Config  `yaml:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RunScheduler starts the campaign scheduler inside the API process.
	RunScheduler bool `yaml:"run_scheduler"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr is host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings. An empty URL disables Redis; rate
// limits then use in-process counters and the scheduler lock falls back to
// a Postgres advisory lock.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SendGridConfig holds the email provider settings
type SendGridConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	FromEmail      string  `yaml:"from_email"`
	FromName       string  `yaml:"from_name"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Sandbox        bool    `yaml:"sandbox"`
	ClickTracking  bool    `yaml:"click_tracking"`
	OpenTracking   bool    `yaml:"open_tracking"`
}

// Timeout returns the per-attempt HTTP timeout
func (c SendGridConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig selects how bearer tokens are verified
type AuthConfig struct {
	// Mode is "jwt" (local HS256 check) or "supabase" (ask the provider).
	Mode            string `yaml:"mode"`
	SupabaseURL     string `yaml:"supabase_url"`
	SupabaseAnonKey string `yaml:"supabase_anon_key"`
	JWTSecret       string `yaml:"jwt_secret"`
	JWTAudience     string `yaml:"jwt_audience"`
}

// QuotaConfig holds the per-user daily send cap
type QuotaConfig struct {
	DailyLimit int    `yaml:"daily_limit"`
	Timezone   string `yaml:"timezone"`
}

// Location resolves Timezone.
func (c QuotaConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SchedulerConfig holds campaign scheduler settings
type SchedulerConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	LeaseMinutes        int `yaml:"lease_minutes"`
	MaxAttempts         int `yaml:"max_attempts"`
	// Retention windows for the cleanup loop in cmd/worker. Zero keeps rows.
	LogRetentionDays int `yaml:"log_retention_days"`
	JobRetentionDays int `yaml:"job_retention_days"`
}

// Interval returns the poll interval as a duration
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Lease returns the job lease as a duration
func (c SchedulerConfig) Lease() time.Duration {
	return time.Duration(c.LeaseMinutes) * time.Minute
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with only defaults applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.SendGrid.BaseURL == "" {
		cfg.SendGrid.BaseURL = "https://api.sendgrid.com"
	}
	if cfg.SendGrid.TimeoutSeconds == 0 {
		cfg.SendGrid.TimeoutSeconds = 30
	}
	if cfg.SendGrid.MaxRetries == 0 {
		cfg.SendGrid.MaxRetries = 3
	}
	if cfg.SendGrid.RatePerSecond == 0 {
		cfg.SendGrid.RatePerSecond = 50
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "jwt"
	}
	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 100
	}
	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = "UTC"
	}
	if cfg.Scheduler.PollIntervalSeconds == 0 {
		cfg.Scheduler.PollIntervalSeconds = 30
	}
	if cfg.Scheduler.LeaseMinutes == 0 {
		cfg.Scheduler.LeaseMinutes = 10
	}
	if cfg.Scheduler.MaxAttempts == 0 {
		cfg.Scheduler.MaxAttempts = 5
	}
	if cfg.Scheduler.JobRetentionDays == 0 {
		cfg.Scheduler.JobRetentionDays = 30
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS. An empty
// path skips the file and starts from defaults.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("DATABASE_URL", &cfg.Database.URL)
	str("REDIS_URL", &cfg.Redis.URL)
	str("SENDGRID_API_KEY", &cfg.SendGrid.APIKey)
	str("SENDGRID_FROM_EMAIL", &cfg.SendGrid.FromEmail)
	str("SENDGRID_FROM_NAME", &cfg.SendGrid.FromName)
	str("SENDGRID_BASE_URL", &cfg.SendGrid.BaseURL)
	str("AUTH_MODE", &cfg.Auth.Mode)
	str("SUPABASE_URL", &cfg.Auth.SupabaseURL)
	str("SUPABASE_ANON_KEY", &cfg.Auth.SupabaseAnonKey)
	str("SUPABASE_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("QUOTA_TIMEZONE", &cfg.Quota.Timezone)
	str("AWS_REGION", &cfg.Storage.Region)
	str("IMPORT_BUCKET", &cfg.Storage.Bucket)

	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SENDGRID_SANDBOX"); v != "" {
		cfg.SendGrid.Sandbox = v == "true" || v == "1"
	}

	return cfg, nil
}

// Validate reports missing secrets. There are no built-in fallback keys.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if cfg.SendGrid.APIKey == "" {
		errs = append(errs, errors.New("SENDGRID_API_KEY is required"))
	}
	if cfg.SendGrid.FromEmail == "" {
		errs = append(errs, errors.New("SENDGRID_FROM_EMAIL is required"))
	}
	switch cfg.Auth.Mode {
	case "jwt":
		if cfg.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required in jwt auth mode"))
		}
	case "supabase":
		if cfg.Auth.SupabaseURL == "" || cfg.Auth.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required in supabase auth mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode))
	}
	if _, err := cfg.Quota.Location(); err != nil {
		errs = append(errs, fmt.Errorf("quota timezone: %w", err))
	}
	return errors.Join(errs...)
}
