package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/manorfm/healthshield-mfa/internal/domain"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	// Database configuration
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBAutoMigrate  bool
	MigrationsPath string

	// Profile store
	StoreDriver string
	SeedUsers   []string

	// Server configuration
	ServerPort         int
	Environment        string
	HTTPRateLimit      float64
	HTTPRateBurst      int
	CORSAllowedOrigins []string
	JWTSecret          string

	// TOTP configuration
	TOTPIssuer       string
	EnrollmentWindow int
	LoginWindow      int
	MFAEncryptionKey string

	// Verification attempt limits
	VerifyMaxAttempts   int
	VerifyAttemptWindow time.Duration
	RateLimitBackend    string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		DBHost:         "localhost",
		DBPort:         5432,
		DBUser:         "owner",
		DBPassword:     "ownerTest",
		DBName:         "healthshield",
		MigrationsPath: "migrations",

		StoreDriver: StoreDriverPostgres,

		ServerPort:         8080,
		Environment:        "production",
		HTTPRateLimit:      10,
		HTTPRateBurst:      20,
		CORSAllowedOrigins: []string{"*"},

		TOTPIssuer:       domain.DefaultTOTPIssuer,
		EnrollmentWindow: domain.DefaultEnrollmentWindow,
		LoginWindow:      domain.DefaultLoginWindow,

		VerifyMaxAttempts:   5,
		VerifyAttemptWindow: 5 * time.Minute,
		RateLimitBackend:    RateLimitBackendMemory,
		RedisAddr:           "localhost:6379",
	}
}

// LoadConfig loads configuration from an optional .env file, an optional
// config file named by CONFIG_FILE, and environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v, NewConfig())

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", file, err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("DB_HOST", d.DBHost)
	v.SetDefault("DB_PORT", strconv.Itoa(d.DBPort))
	v.SetDefault("DB_USER", d.DBUser)
	v.SetDefault("DB_PASSWORD", d.DBPassword)
	v.SetDefault("DB_NAME", d.DBName)
	v.SetDefault("DB_AUTO_MIGRATE", "false")
	v.SetDefault("MIGRATIONS_PATH", d.MigrationsPath)
	v.SetDefault("STORE_DRIVER", d.StoreDriver)
	v.SetDefault("SEED_USERS", "")
	v.SetDefault("PORT", strconv.Itoa(d.ServerPort))
	v.SetDefault("ENVIRONMENT", d.Environment)
	v.SetDefault("HTTP_RATE_LIMIT", strconv.FormatFloat(d.HTTPRateLimit, 'f', -1, 64))
	v.SetDefault("HTTP_RATE_BURST", strconv.Itoa(d.HTTPRateBurst))
	v.SetDefault("CORS_ALLOWED_ORIGINS", strings.Join(d.CORSAllowedOrigins, ","))
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOTP_ISSUER", d.TOTPIssuer)
	v.SetDefault("MFA_ENROLLMENT_WINDOW", strconv.Itoa(d.EnrollmentWindow))
	v.SetDefault("MFA_LOGIN_WINDOW", strconv.Itoa(d.LoginWindow))
	v.SetDefault("MFA_ENCRYPTION_KEY", "")
	v.SetDefault("VERIFY_MAX_ATTEMPTS", strconv.Itoa(d.VerifyMaxAttempts))
	v.SetDefault("VERIFY_ATTEMPT_WINDOW", d.VerifyAttemptWindow.String())
	v.SetDefault("RATE_LIMIT_BACKEND", d.RateLimitBackend)
	v.SetDefault("REDIS_ADDR", d.RedisAddr)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", "0")
}

func fromViper(v *viper.Viper) (*Config, error) {
	p := &parser{v: v}

	cfg := &Config{
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         p.int("DB_PORT"),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBName:         v.GetString("DB_NAME"),
		DBAutoMigrate:  p.bool("DB_AUTO_MIGRATE"),
		MigrationsPath: v.GetString("MIGRATIONS_PATH"),

		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		SeedUsers:   splitList(v.GetString("SEED_USERS")),

		ServerPort:         p.int("PORT"),
		Environment:        v.GetString("ENVIRONMENT"),
		HTTPRateLimit:      p.float("HTTP_RATE_LIMIT"),
		HTTPRateBurst:      p.int("HTTP_RATE_BURST"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		JWTSecret:          v.GetString("JWT_SECRET"),

		TOTPIssuer:       v.GetString("TOTP_ISSUER"),
		EnrollmentWindow: p.int("MFA_ENROLLMENT_WINDOW"),
		LoginWindow:      p.int("MFA_LOGIN_WINDOW"),
		MFAEncryptionKey: v.GetString("MFA_ENCRYPTION_KEY"),

		VerifyMaxAttempts:   p.int("VERIFY_MAX_ATTEMPTS"),
		VerifyAttemptWindow: p.duration("VERIFY_ATTEMPT_WINDOW"),
		RateLimitBackend:    strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		RedisDB:             p.int("REDIS_DB"),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that parse but are out of range
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.RateLimitBackend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		return fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid PORT %d", c.ServerPort)
	}
	if c.EnrollmentWindow < 0 || c.LoginWindow < 0 {
		return fmt.Errorf("verification windows must not be negative")
	}
	if c.TOTPIssuer == "" {
		return fmt.Errorf("TOTP_ISSUER must not be empty")
	}
	if strings.Contains(c.TOTPIssuer, ":") {
		return fmt.Errorf("TOTP_ISSUER must not contain ':'")
	}
	if c.VerifyMaxAttempts <= 0 {
		return fmt.Errorf("VERIFY_MAX_ATTEMPTS must be positive")
	}
	if c.VerifyAttemptWindow <= 0 {
		return fmt.Errorf("VERIFY_ATTEMPT_WINDOW must be positive")
	}
	if c.HTTPRateLimit <= 0 || c.HTTPRateBurst <= 0 {
		return fmt.Errorf("HTTP rate limit and burst must be positive")
	}

	return nil
}

// TOTPParams builds the shared TOTP parameters from the configuration
func (c *Config) TOTPParams() *domain.TOTPParams {
	params := domain.DefaultTOTPParams()
	params.Issuer = c.TOTPIssuer
	params.EnrollmentWindow = c.EnrollmentWindow
	params.LoginWindow = c.LoginWindow
	return params
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// DatabaseURL returns the postgres URL used by the migrate tool
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// parser records the first parse error so every key can be read in one pass
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) int(key string) int {
	raw := strings.TrimSpace(p.v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n
}

func (p *parser) float(key string) float64 {
	raw := strings.TrimSpace(p.v.GetString(key))
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f
}

func (p *parser) bool(key string) bool {
	raw := strings.TrimSpace(p.v.GetString(key))
	b, err := strconv.ParseBool(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b
}

func (p *parser) duration(key string) time.Duration {
	raw := strings.TrimSpace(p.v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
