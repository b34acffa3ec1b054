package server

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	defaultPort           = ":8080"
	defaultMaxMessageSize = 512
	defaultUploadDir      = "uploads"
	defaultMaxUploadSize  = 5 << 20
	defaultLogLevel       = "info"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	UploadDir      string
	MaxUploadSize  int64
	LogLevel       string
	LogPretty      bool
}

var (
	configMu      sync.RWMutex
	activeConfig  Config
	activeOrigins originPolicy
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		UploadDir:     defaultUploadDir,
		MaxUploadSize: defaultMaxUploadSize,
		LogLevel:      defaultLogLevel,
	}
}

// applyConfig fills zero values with defaults and publishes the result as
// the active configuration.
func applyConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		cfg.UploadDir = defaultUploadDir
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	policy := newOriginPolicy(cfg.AllowedOrigins)
	cfg.AllowedOrigins = policy.list

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	activeOrigins = policy

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		applyConfig(defaultConfig())
		return
	}

	copied := *cfg
	copied.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	applyConfig(copied)
}

// CurrentConfig returns a copy of the active configuration.
func CurrentConfig() Config {
	return currentConfig()
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads an optional .env file from the working directory and
// then builds the configuration from the environment. Variables already set
// in the process environment take precedence over the file.
func LoadConfig(files ...string) *Config {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug().Msg("no .env file found, using environment variables")
		} else {
			log.Warn().Err(err).Msg("failed to read .env file")
		}
	}
	return NewConfigFromEnv()
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = normalizePort(port)
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	if dir := strings.TrimSpace(os.Getenv("UPLOAD_DIR")); dir != "" {
		cfg.UploadDir = dir
	}

	if maxUpload := os.Getenv("MAX_UPLOAD_SIZE"); maxUpload != "" {
		cfg.MaxUploadSize = parseSize(maxUpload, cfg.MaxUploadSize)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(level))
	}

	if pretty := os.Getenv("LOG_PRETTY"); pretty != "" {
		cfg.LogPretty, _ = strconv.ParseBool(pretty)
	}

	return &cfg
}

// normalizePort accepts both "8080" and ":8080".
func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseRefillInterval takes whole seconds, or a Go duration such as "500ms".
func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
