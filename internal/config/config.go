// Package config provides application configuration management.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Configuration upper bounds to prevent resource exhaustion.
const (
	maxPoolConcurrency = 20
	maxTimeout         = 2 * time.Minute
	maxRateLimitRPM    = 10000 // Maximum requests per minute per IP
	minAPIKeyLength    = 16    // Minimum API key length for security
)

// Config holds all application configuration.
// Configuration is loaded from environment variables at startup.
type Config struct {
	// Server settings
	Host string
	Port int

	// Browser settings
	Headless    bool
	BrowserPath string

	// Pool settings - CRITICAL for memory efficiency
	PoolMaxConcurrency int
	PoolAcquireTimeout time.Duration
	PoolMaxIdleTime    time.Duration
	PoolReapInterval   time.Duration

	// Extraction timeouts. NavigationTimeout and SelectorTimeout are
	// sub-budgets inside a request's overall timeout.
	DefaultTimeout    time.Duration
	MaxTimeout        time.Duration
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration

	// Logging
	LogLevel string
	LogHTML  bool

	// Security
	RateLimitEnabled   bool
	RateLimitRPM       int      // Requests per minute per IP
	TrustProxy         bool     // Trust X-Forwarded-For headers (only enable behind a reverse proxy)
	CORSAllowedOrigins []string // Allowed CORS origins (empty = reject cross-origin)

	// API Key Authentication
	APIKeyEnabled bool   // Enable API key authentication
	APIKey        string // Required API key for requests (only used if APIKeyEnabled is true)

	// Assist settings
	OpenAIAPIKey string // API key for reply suggestions; assist is disabled when empty
	OpenAIModel  string // Chat model used for suggestions

	// Selectors settings
	SelectorsPath      string // Path to external selectors.yaml override file
	SelectorsHotReload bool   // Enable file watching for hot-reload of selectors

	// Metrics
	MetricsEnabled bool
}

// Load loads configuration from environment variables.
// Returns a Config with values from environment or sensible defaults.
func Load() *Config {
	return &Config{
		// Server - default to localhost for security (prevents accidental exposure)
		// Set HOST=0.0.0.0 explicitly to bind to all interfaces
		Host: getEnvString("HOST", "127.0.0.1"),
		Port: getEnvInt("PORT", 8292),

		// Browser
		Headless:    getEnvBool("HEADLESS", true),
		BrowserPath: getEnvString("BROWSER_PATH", ""),

		// Pool - These defaults are tuned for memory efficiency
		PoolMaxConcurrency: getEnvInt("POOL_MAX_CONCURRENCY", 3),
		PoolAcquireTimeout: getEnvDuration("POOL_ACQUIRE_TIMEOUT", 30*time.Second),
		PoolMaxIdleTime:    getEnvDuration("POOL_MAX_IDLE_TIME", 5*time.Minute),
		PoolReapInterval:   getEnvDuration("POOL_REAP_INTERVAL", 60*time.Second),

		// Timeouts
		DefaultTimeout:    getEnvDuration("DEFAULT_TIMEOUT", 30*time.Second),
		MaxTimeout:        getEnvDuration("MAX_TIMEOUT", 120*time.Second),
		NavigationTimeout: getEnvDuration("NAVIGATION_TIMEOUT", 15*time.Second),
		SelectorTimeout:   getEnvDuration("SELECTOR_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel: getEnvString("LOG_LEVEL", "info"),
		LogHTML:  getEnvBool("LOG_HTML", false),

		// Security
		RateLimitEnabled:   getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPM:       getEnvInt("RATE_LIMIT_RPM", 60), // 60 requests per minute per IP
		TrustProxy:         getEnvBool("TRUST_PROXY", false),
		CORSAllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", nil),

		// API Key Authentication
		APIKeyEnabled: getEnvBool("API_KEY_ENABLED", false),
		APIKey:        getEnvString("API_KEY", ""),

		// Assist
		OpenAIAPIKey: getEnvString("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnvString("OPENAI_MODEL", "gpt-4o-mini"),

		// Selectors settings
		SelectorsPath:      getEnvString("SELECTORS_PATH", ""),
		SelectorsHotReload: getEnvBool("SELECTORS_HOT_RELOAD", false),

		// Metrics
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// HasAssist returns true if reply suggestions are configured.
func (c *Config) HasAssist() bool {
	return c.OpenAIAPIKey != ""
}

// Validate checks configuration values and logs warnings for invalid values.
// Invalid values are corrected to sensible defaults.
func (c *Config) Validate() {
	// Port validation - allow 0 for system-assigned ports
	if c.Port < 0 || c.Port > 65535 {
		log.Warn().Int("port", c.Port).Msg("Invalid port, using default 8292")
		c.Port = 8292
	}

	// BrowserPath validation - prevent path traversal attacks
	if c.BrowserPath != "" {
		if strings.Contains(c.BrowserPath, "..") {
			log.Error().
				Str("path", c.BrowserPath).
				Msg("BrowserPath contains path traversal sequence (..), ignoring")
			c.BrowserPath = ""
		} else if !strings.HasPrefix(c.BrowserPath, "/") && !strings.HasPrefix(c.BrowserPath, "C:") && !strings.HasPrefix(c.BrowserPath, "c:") {
			log.Warn().
				Str("path", c.BrowserPath).
				Msg("BrowserPath should be an absolute path")
		}
	}

	// Pool concurrency validation with upper bound
	if c.PoolMaxConcurrency < 1 {
		log.Warn().Int("size", c.PoolMaxConcurrency).Msg("Invalid pool concurrency, using default 3")
		c.PoolMaxConcurrency = 3
	} else if c.PoolMaxConcurrency > maxPoolConcurrency {
		log.Warn().
			Int("size", c.PoolMaxConcurrency).
			Int("max", maxPoolConcurrency).
			Msg("Pool concurrency too large, capping to maximum")
		c.PoolMaxConcurrency = maxPoolConcurrency
	}

	// PoolAcquireTimeout validation (minimum 1 second, maximum 5 minutes)
	const minAcquireTimeout = 1 * time.Second
	const maxAcquireTimeout = 5 * time.Minute
	if c.PoolAcquireTimeout < minAcquireTimeout {
		log.Warn().
			Dur("timeout", c.PoolAcquireTimeout).
			Dur("min", minAcquireTimeout).
			Msg("Pool acquire timeout too short, using minimum")
		c.PoolAcquireTimeout = minAcquireTimeout
	} else if c.PoolAcquireTimeout > maxAcquireTimeout {
		log.Warn().
			Dur("timeout", c.PoolAcquireTimeout).
			Dur("max", maxAcquireTimeout).
			Msg("Pool acquire timeout too long, using maximum")
		c.PoolAcquireTimeout = maxAcquireTimeout
	}

	// PoolMaxIdleTime validation (minimum 30 seconds, maximum 1 hour)
	const minIdleTime = 30 * time.Second
	const maxIdleTime = 1 * time.Hour
	if c.PoolMaxIdleTime < minIdleTime {
		log.Warn().
			Dur("idle", c.PoolMaxIdleTime).
			Dur("min", minIdleTime).
			Msg("Pool max idle time too short, using minimum")
		c.PoolMaxIdleTime = minIdleTime
	} else if c.PoolMaxIdleTime > maxIdleTime {
		log.Warn().
			Dur("idle", c.PoolMaxIdleTime).
			Dur("max", maxIdleTime).
			Msg("Pool max idle time too long, using maximum")
		c.PoolMaxIdleTime = maxIdleTime
	}

	// PoolReapInterval validation (minimum 10 seconds, maximum 10 minutes)
	const minReapInterval = 10 * time.Second
	const maxReapInterval = 10 * time.Minute
	if c.PoolReapInterval < minReapInterval {
		log.Warn().
			Dur("interval", c.PoolReapInterval).
			Dur("min", minReapInterval).
			Msg("Pool reap interval too short, using minimum")
		c.PoolReapInterval = minReapInterval
	} else if c.PoolReapInterval > maxReapInterval {
		log.Warn().
			Dur("interval", c.PoolReapInterval).
			Dur("max", maxReapInterval).
			Msg("Pool reap interval too long, using maximum")
		c.PoolReapInterval = maxReapInterval
	}

	// Cross-validate reap interval vs idle time
	if c.PoolReapInterval >= c.PoolMaxIdleTime {
		log.Warn().
			Dur("reap_interval", c.PoolReapInterval).
			Dur("max_idle", c.PoolMaxIdleTime).
			Msg("POOL_REAP_INTERVAL should be less than POOL_MAX_IDLE_TIME for timely cleanup")
	}

	// Timeout validation with upper bound. MaxTimeout first, then
	// DefaultTimeout, to ensure proper ordering.
	if c.MaxTimeout < time.Second {
		log.Warn().Dur("timeout", c.MaxTimeout).Msg("Max timeout too short, using 120s")
		c.MaxTimeout = 120 * time.Second
	}
	if c.MaxTimeout > maxTimeout {
		log.Warn().
			Dur("timeout", c.MaxTimeout).
			Dur("max", maxTimeout).
			Msg("Max timeout too high, capping to maximum")
		c.MaxTimeout = maxTimeout
	}
	if c.DefaultTimeout < time.Second {
		log.Warn().Dur("timeout", c.DefaultTimeout).Msg("Default timeout too short, using 30s")
		c.DefaultTimeout = 30 * time.Second
	}
	if c.DefaultTimeout > c.MaxTimeout {
		log.Warn().
			Dur("default", c.DefaultTimeout).
			Dur("max", c.MaxTimeout).
			Msg("Default timeout exceeds max timeout, adjusting to max")
		c.DefaultTimeout = c.MaxTimeout
	}

	// Sub-budget validation: navigation and selector waits must fit
	// inside the default request budget.
	if c.NavigationTimeout < time.Second {
		log.Warn().Dur("timeout", c.NavigationTimeout).Msg("Navigation timeout too short, using 15s")
		c.NavigationTimeout = 15 * time.Second
	}
	if c.SelectorTimeout < time.Second {
		log.Warn().Dur("timeout", c.SelectorTimeout).Msg("Selector timeout too short, using 10s")
		c.SelectorTimeout = 10 * time.Second
	}
	if c.NavigationTimeout+c.SelectorTimeout > c.DefaultTimeout {
		log.Warn().
			Dur("navigation", c.NavigationTimeout).
			Dur("selector", c.SelectorTimeout).
			Dur("default", c.DefaultTimeout).
			Msg("Navigation plus selector timeouts exceed the default request budget")
	}

	// Rate limit validation with upper bound
	if c.RateLimitEnabled {
		if c.RateLimitRPM < 1 {
			log.Warn().Int("rpm", c.RateLimitRPM).Msg("Invalid rate limit, using 60 RPM")
			c.RateLimitRPM = 60
		} else if c.RateLimitRPM > maxRateLimitRPM {
			log.Warn().
				Int("rpm", c.RateLimitRPM).
				Int("max", maxRateLimitRPM).
				Msg("Rate limit too high, capping to maximum")
			c.RateLimitRPM = maxRateLimitRPM
		}
	}

	// Log level validation
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		log.Warn().Str("level", c.LogLevel).Msg("Invalid log level, using 'info'")
		c.LogLevel = "info"
	}

	// CORS security warning
	if len(c.CORSAllowedOrigins) == 0 {
		log.Warn().Msg("CORS_ALLOWED_ORIGINS not set - cross-origin requests will be rejected")
	}

	// Assist model validation
	if c.OpenAIModel == "" {
		log.Warn().Msg("OPENAI_MODEL empty, using 'gpt-4o-mini'")
		c.OpenAIModel = "gpt-4o-mini"
	}
	if !c.HasAssist() {
		log.Info().Msg("OPENAI_API_KEY not set - content.assist command disabled")
	}

	// Selectors path validation
	if c.SelectorsPath != "" {
		if strings.Contains(c.SelectorsPath, "..") {
			log.Error().
				Str("path", c.SelectorsPath).
				Msg("SelectorsPath contains path traversal sequence (..), ignoring")
			c.SelectorsPath = ""
		} else if !strings.HasPrefix(c.SelectorsPath, "/") && !strings.HasPrefix(c.SelectorsPath, "C:") && !strings.HasPrefix(c.SelectorsPath, "c:") {
			log.Warn().
				Str("path", c.SelectorsPath).
				Msg("SelectorsPath should be an absolute path")
		}
		if c.SelectorsHotReload && c.SelectorsPath != "" {
			if _, err := os.Stat(c.SelectorsPath); os.IsNotExist(err) {
				log.Warn().
					Str("path", c.SelectorsPath).
					Msg("SelectorsPath does not exist - hot-reload will watch for file creation")
			}
		}
	}

	// Warn if hot-reload is enabled but no path is set
	if c.SelectorsHotReload && c.SelectorsPath == "" {
		log.Warn().Msg("SELECTORS_HOT_RELOAD enabled but SELECTORS_PATH not set - hot-reload disabled")
		c.SelectorsHotReload = false
	}

	// API key validation with minimum length enforcement
	if c.APIKeyEnabled {
		const maxAPIKeyLength = 256
		switch {
		case c.APIKey == "":
			log.Error().Msg("API_KEY_ENABLED is true but API_KEY is empty - authentication will always fail")
		case len(c.APIKey) < minAPIKeyLength:
			log.Error().
				Int("length", len(c.APIKey)).
				Int("min_required", minAPIKeyLength).
				Msg("API_KEY is too short for secure authentication - consider using a longer key")
		default:
			if len(c.APIKey) > maxAPIKeyLength {
				log.Error().
					Int("length", len(c.APIKey)).
					Int("max", maxAPIKeyLength).
					Msg("API_KEY is too long")
			}
			for i, r := range c.APIKey {
				if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
					(r >= '0' && r <= '9') || r == '-' || r == '_') {
					log.Warn().
						Int("position", i).
						Msg("API_KEY contains non-alphanumeric characters (only a-z, A-Z, 0-9, -, _ are recommended)")
					break
				}
			}
		}
	}
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		// Use ParseInt with explicit bounds to catch overflow
		intValue, err := strconv.ParseInt(value, 10, 32)
		if err == nil {
			return int(intValue)
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Int("default", defaultValue).
			Msg("Invalid integer in environment variable, using default")
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Bool("default", defaultValue).
			Msg("Invalid boolean in environment variable, using default")
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			if duration > 0 {
				return duration
			}
			log.Warn().
				Str("key", key).
				Str("value", value).
				Dur("default", defaultValue).
				Msg("Duration must be positive, using default")
			return defaultValue
		}
		log.Warn().
			Str("key", key).
			Str("value", value).
			Err(err).
			Dur("default", defaultValue).
			Msg("Invalid duration in environment variable, using default")
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Parse comma-separated values, trimming whitespace
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
