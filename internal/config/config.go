package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Singleton OAuth client pair the voice platform authenticates with.
	OAuthClientID     string
	OAuthClientSecret string
	// Exact redirect URI the platform is allowed to use during linking.
	AllowedRedirectURI string

	TokenSigningSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	AuthCodeTTL        time.Duration

	// Push notifier settings. An empty ServiceAccountFile disables the
	// feature; everything else degrades to no-ops.
	ServiceAccountFile  string
	DeviceRegistryURL   string
	DeviceRegistryScope string

	RateLimitRPM      int
	TelemetryEndpoint string
	TelemetryInsecure bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	clientID := strings.TrimSpace(os.Getenv("OAUTH_CLIENT_ID"))
	if clientID == "" {
		return Config{}, fmt.Errorf("OAUTH_CLIENT_ID is required")
	}
	clientSecret := strings.TrimSpace(os.Getenv("OAUTH_CLIENT_SECRET"))
	if clientSecret == "" {
		return Config{}, fmt.Errorf("OAUTH_CLIENT_SECRET is required")
	}
	signingSecret := strings.TrimSpace(os.Getenv("TOKEN_SIGNING_SECRET"))
	if signingSecret == "" {
		return Config{}, fmt.Errorf("TOKEN_SIGNING_SECRET is required")
	}
	redirectURI := strings.TrimSpace(os.Getenv("OAUTH_REDIRECT_URI"))
	if redirectURI == "" {
		return Config{}, fmt.Errorf("OAUTH_REDIRECT_URI is required")
	}

	cfg := Config{
		Environment:         getEnv("APP_ENV", "development"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		ServiceName:         getEnv("SERVICE_NAME", "plangrove-voicelink"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getInt("REDIS_DB", 0),
		OAuthClientID:       clientID,
		OAuthClientSecret:   clientSecret,
		AllowedRedirectURI:  redirectURI,
		TokenSigningSecret:  []byte(signingSecret),
		AccessTokenTTL:      getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:     getDuration("REFRESH_TOKEN_TTL", 365*24*time.Hour),
		AuthCodeTTL:         getDuration("AUTH_CODE_TTL", 10*time.Minute),
		ServiceAccountFile:  os.Getenv("SERVICE_ACCOUNT_FILE"),
		DeviceRegistryURL:   getEnv("DEVICE_REGISTRY_URL", "https://homegraph.googleapis.com/v1/devices:requestSync"),
		DeviceRegistryScope: getEnv("DEVICE_REGISTRY_SCOPE", "https://www.googleapis.com/auth/homegraph"),
		RateLimitRPM:        getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:   getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if len(cfg.TokenSigningSecret) < 32 {
		return Config{}, fmt.Errorf("TOKEN_SIGNING_SECRET must be at least 32 bytes")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
