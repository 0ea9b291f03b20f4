// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSupabase = "supabase"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
	RequestTimeout time.Duration // bounds actor request/response only
}

// SupabaseConfig holds the remote project settings
type SupabaseConfig struct {
	URL          string
	AnonKey      string
	JWTSecret    string // optional, enables local access-token verification
	AvatarBucket string
	AccessToken  string // optional persisted session to restore on start
	RefreshToken string
}

// DatabaseConfig holds direct Postgres settings, used when StoreType is postgres
type DatabaseConfig struct {
	URI      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RetryConfig is the profile read retry policy
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// BreakerConfig configures the circuit breaker around the remote store
type BreakerConfig struct {
	Enabled      bool
	FailureRatio float64
	MinRequests  uint32
	Timeout      time.Duration
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	StoreType      string
	Supabase       *SupabaseConfig
	Database       *DatabaseConfig
	ProfileRetry   RetryConfig
	Breaker        BreakerConfig
	AllowedOrigins []string
	LogLevel       string
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
		RequestTimeout: 5 * time.Second,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Port:    5432,
		SSLMode: "require",
	}
}

// DefaultRetryConfig is three reads, one second apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Delay: time.Second}
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:      true,
		FailureRatio: 0.6,
		MinRequests:  5,
		Timeout:      30 * time.Second,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	envLocations := []string{
		".env",
		"../../.env", // project root when running from cmd/pokehub
		"../../../.env",
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		if home, err := os.UserHomeDir(); err == nil {
			_ = godotenv.Load(filepath.Join(home, ".pokehub.env"))
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	serverConfig := DefaultConfig()

	if err := intFromEnv("PORT", &serverConfig.Port); err != nil {
		return nil, err
	}
	serverConfig.Host = getEnvOrDefault("HOST", serverConfig.Host)
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}
	if err := durationFromEnv("REQUEST_TIMEOUT", &serverConfig.RequestTimeout); err != nil {
		return nil, err
	}

	config := &Config{
		Server: serverConfig,
		Supabase: &SupabaseConfig{
			URL:          os.Getenv("SUPABASE_URL"),
			AnonKey:      os.Getenv("SUPABASE_ANON_KEY"),
			JWTSecret:    os.Getenv("SUPABASE_JWT_SECRET"),
			AvatarBucket: getEnvOrDefault("AVATAR_BUCKET", "avatars"),
			AccessToken:  os.Getenv("SUPABASE_ACCESS_TOKEN"),
			RefreshToken: os.Getenv("SUPABASE_REFRESH_TOKEN"),
		},
		ProfileRetry:   DefaultRetryConfig(),
		Breaker:        DefaultBreakerConfig(),
		AllowedOrigins: []string{"*"},
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
	}

	config.StoreType = os.Getenv("STORE_TYPE")
	if config.StoreType == "" {
		if config.Supabase.URL != "" {
			config.StoreType = StoreSupabase
		} else {
			config.StoreType = StoreMemory
		}
	}

	switch config.StoreType {
	case StoreSupabase:
		if config.Supabase.URL == "" || config.Supabase.AnonKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required when STORE_TYPE is supabase")
		}
	case StorePostgres:
		dbConfig, err := databaseFromEnv()
		if err != nil {
			return nil, err
		}
		config.Database = dbConfig
	case StoreMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_TYPE %q", config.StoreType)
	}

	if err := intFromEnv("PROFILE_RETRY_ATTEMPTS", &config.ProfileRetry.MaxAttempts); err != nil {
		return nil, err
	}
	if config.ProfileRetry.MaxAttempts < 1 {
		return nil, fmt.Errorf("PROFILE_RETRY_ATTEMPTS must be at least 1")
	}
	if err := durationFromEnv("PROFILE_RETRY_DELAY", &config.ProfileRetry.Delay); err != nil {
		return nil, err
	}

	if enabled := os.Getenv("BREAKER_ENABLED"); enabled != "" {
		config.Breaker.Enabled = enabled == "true"
	}
	if ratio := os.Getenv("BREAKER_FAILURE_RATIO"); ratio != "" {
		v, err := strconv.ParseFloat(ratio, 64)
		if err != nil || v <= 0 || v > 1 {
			return nil, fmt.Errorf("invalid BREAKER_FAILURE_RATIO %q", ratio)
		}
		config.Breaker.FailureRatio = v
	}
	if minRequests := os.Getenv("BREAKER_MIN_REQUESTS"); minRequests != "" {
		v, err := strconv.ParseUint(minRequests, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid BREAKER_MIN_REQUESTS %q", minRequests)
		}
		config.Breaker.MinRequests = uint32(v)
	}
	if err := durationFromEnv("BREAKER_TIMEOUT", &config.Breaker.Timeout); err != nil {
		return nil, err
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	return config, nil
}

func databaseFromEnv() (*DatabaseConfig, error) {
	dbConfig := DefaultDatabaseConfig()

	// Prioritize DATABASE_URL if provided
	if uri := os.Getenv("DATABASE_URL"); uri != "" {
		dbConfig.URI = uri
		dbConfig.SSLMode = getSSLModeFromURI(uri)
		return dbConfig, nil
	}

	dbConfig.Host = getEnvOrDefault("DB_HOST", "localhost")
	if err := intFromEnv("DB_PORT", &dbConfig.Port); err != nil {
		return nil, err
	}

	dbConfig.User = os.Getenv("DB_USER")
	if dbConfig.User == "" {
		return nil, fmt.Errorf("DB_USER environment variable is required when STORE_TYPE is postgres and DATABASE_URL is not set")
	}
	dbConfig.Password = os.Getenv("DB_PASSWORD")
	if dbConfig.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD environment variable is required when STORE_TYPE is postgres and DATABASE_URL is not set")
	}
	dbConfig.Name = getEnvOrDefault("DB_NAME", "postgres")
	dbConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", "require")

	dbConfig.URI = fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.Name,
		dbConfig.SSLMode,
	)
	return dbConfig, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intFromEnv(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = v
	return nil
}

// durationFromEnv accepts Go durations ("1500ms") and bare seconds ("2").
func durationFromEnv(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = d
	return nil
}

// Helper function to extract sslmode from a DSN, defaults to "require"
func getSSLModeFromURI(uri string) string {
	parts := strings.SplitN(uri, "?", 2)
	if len(parts) == 2 {
		for _, param := range strings.Split(parts[1], "&") {
			kv := strings.SplitN(param, "=", 2)
			if len(kv) == 2 && kv[0] == "sslmode" {
				return kv[1]
			}
		}
	}
	return "require"
}
