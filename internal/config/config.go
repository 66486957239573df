package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes accepted in AUTH_MODE.
const (
	AuthModeSession     = "session"
	AuthModeDevelopment = "development"
)

// Deployment environments accepted in ENV.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Backends accepted in SESSION_STORE and LOGIN_LIMIT_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	// TrustedProxies lists the reverse proxies (IPs or CIDRs) whose
	// X-Forwarded-For entries are believed. Empty means none.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	AuthMode        string        `mapstructure:"AUTH_MODE"`
	SessionSecret   string        `mapstructure:"SESSION_SECRET"`
	SessionStore    string        `mapstructure:"SESSION_STORE"`
	SessionMaxAge   time.Duration `mapstructure:"SESSION_MAX_AGE"`
	TokenSigningKey string        `mapstructure:"TOKEN_SIGNING_KEY"`
	TokenTTL        time.Duration `mapstructure:"TOKEN_TTL"`

	RedisURL          string        `mapstructure:"REDIS_URL"`
	LoginLimitBackend string        `mapstructure:"LOGIN_LIMIT_BACKEND"`
	LoginMaxAttempts  int           `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginWindow       time.Duration `mapstructure:"LOGIN_WINDOW"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	OpenAIAPIKey       string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `mapstructure:"OPENAI_BASE_URL"`
	TriageModel        string        `mapstructure:"TRIAGE_MODEL"`
	TriageModelVersion string        `mapstructure:"TRIAGE_MODEL_VERSION"`
	TriageTimeout      time.Duration `mapstructure:"TRIAGE_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS", "TRUSTED_PROXIES",
	"AUTH_MODE", "SESSION_SECRET", "SESSION_STORE", "SESSION_MAX_AGE", "TOKEN_SIGNING_KEY", "TOKEN_TTL",
	"REDIS_URL", "LOGIN_LIMIT_BACKEND", "LOGIN_MAX_ATTEMPTS", "LOGIN_WINDOW",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "TRIAGE_MODEL", "TRIAGE_MODEL_VERSION", "TRIAGE_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("AUTH_MODE", AuthModeSession)
	v.SetDefault("SESSION_STORE", BackendMemory)
	v.SetDefault("SESSION_MAX_AGE", "24h")
	v.SetDefault("TOKEN_TTL", "1h")
	v.SetDefault("LOGIN_LIMIT_BACKEND", BackendMemory)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("TRIAGE_MODEL", "gpt-5")
	v.SetDefault("TRIAGE_MODEL_VERSION", "2025-08-07")
	v.SetDefault("TRIAGE_TIMEOUT", "30s")

	// Bind explicitly so Unmarshal sees env-only keys.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// viper's slice hook splits on commas without trimming.
	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.TrustedProxies = splitList(v.GetString("TRUSTED_PROXIES"))
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validProxy(p string) bool {
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err == nil
	}
	return net.ParseIP(p) != nil
}

func (c *Config) IsDev() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// DevAuthEnabled reports whether the fixed development identity is in use.
// Only the development and staging environments can enable it.
func (c *Config) DevAuthEnabled() bool {
	if c.AuthMode != AuthModeDevelopment {
		return false
	}
	return c.Env == EnvDevelopment || c.Env == EnvStaging
}

// TriageEnabled reports whether an external triage credential is configured.
func (c *Config) TriageEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("ENV must be %q, %q or %q, got %q", EnvDevelopment, EnvStaging, EnvProduction, c.Env)
	}

	switch c.AuthMode {
	case AuthModeSession, AuthModeDevelopment:
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeSession, AuthModeDevelopment, c.AuthMode)
	}
	if c.AuthMode == AuthModeDevelopment && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=%s is not allowed when ENV=production", AuthModeDevelopment)
	}

	if c.IsProduction() {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in production")
		}
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 bytes in production, got %d", len(c.SessionSecret))
		}
	}

	for name, backend := range map[string]string{
		"SESSION_STORE":       c.SessionStore,
		"LOGIN_LIMIT_BACKEND": c.LoginLimitBackend,
	} {
		switch backend {
		case BackendMemory:
		case BackendRedis:
			if c.RedisURL == "" {
				return fmt.Errorf("REDIS_URL is required when %s=%s", name, BackendRedis)
			}
		default:
			return fmt.Errorf("%s must be %q or %q, got %q", name, BackendMemory, BackendRedis, backend)
		}
	}

	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP address or CIDR", p)
		}
	}

	if c.LoginMaxAttempts < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must be at least 1, got %d", c.LoginMaxAttempts)
	}
	if c.LoginWindow <= 0 {
		return fmt.Errorf("LOGIN_WINDOW must be positive")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive")
	}

	return nil
}
