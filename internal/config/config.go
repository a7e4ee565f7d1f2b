package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Devdrwt/mdsc-live-client/internal/signaling"
	"github.com/Devdrwt/mdsc-live-client/pkg/constants"
)

// Config holds live-client configuration.
type Config struct {
	AppEnv   string // APP_ENV
	LogLevel string // LOG_LEVEL

	// Platform backend
	APIBaseURL  string // API_BASE_URL
	FrontendURL string // FRONTEND_URL, base for navigation targets
	IdentityURL string // IDENTITY_URL, provider login page for the auth flow

	// Signaling
	PublicHost            string        // PUBLIC_SIGNALING_HOST
	PublicConnectTimeout  time.Duration // PUBLIC_CONNECT_TIMEOUT_MS
	PrivateConnectTimeout time.Duration // PRIVATE_CONNECT_TIMEOUT_MS

	// Media
	MediaAcquireTimeout  time.Duration // MEDIA_ACQUIRE_TIMEOUT_MS
	MaxReceivedStreams   int           // MAX_RECEIVED_STREAMS
	ReceiveHeightCeiling int           // RECEIVE_HEIGHT_CEILING

	// Auth flow
	CallbackHost string        // AUTH_CALLBACK_HOST
	CallbackPort int           // AUTH_CALLBACK_PORT, 0 picks an ephemeral port
	LoginTimeout time.Duration // LOGIN_TIMEOUT_MS

	// Local store
	StorePath string // STORE_PATH
}

// Load loads config from environment (.env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	pubTO, _ := strconv.Atoi(getEnv("PUBLIC_CONNECT_TIMEOUT_MS", "10000"))
	privTO, _ := strconv.Atoi(getEnv("PRIVATE_CONNECT_TIMEOUT_MS", "30000"))
	mediaTO, _ := strconv.Atoi(getEnv("MEDIA_ACQUIRE_TIMEOUT_MS", "20000"))
	loginTO, _ := strconv.Atoi(getEnv("LOGIN_TIMEOUT_MS", "180000"))
	maxStreams, _ := strconv.Atoi(getEnv("MAX_RECEIVED_STREAMS", "9"))
	heightCap, _ := strconv.Atoi(getEnv("RECEIVE_HEIGHT_CEILING", "720"))
	cbPort, _ := strconv.Atoi(getEnv("AUTH_CALLBACK_PORT", "0"))

	cfg := &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		APIBaseURL:            getEnv("API_BASE_URL", "http://localhost:8080"),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:3000"),
		IdentityURL:           getEnv("IDENTITY_URL", ""),
		PublicHost:            getEnv("PUBLIC_SIGNALING_HOST", constants.DefaultPublicHost),
		PublicConnectTimeout:  time.Duration(pubTO) * time.Millisecond,
		PrivateConnectTimeout: time.Duration(privTO) * time.Millisecond,
		MediaAcquireTimeout:   time.Duration(mediaTO) * time.Millisecond,
		LoginTimeout:          time.Duration(loginTO) * time.Millisecond,
		MaxReceivedStreams:    maxStreams,
		ReceiveHeightCeiling:  heightCap,
		CallbackHost:          getEnv("AUTH_CALLBACK_HOST", "127.0.0.1"),
		CallbackPort:          cbPort,
		StorePath:             getEnv("STORE_PATH", defaultStorePath()),
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("config: API_BASE_URL is required")
	}
	if c.PublicHost == "" {
		return errors.New("config: PUBLIC_SIGNALING_HOST is required")
	}
	if c.PublicConnectTimeout <= 0 || c.PrivateConnectTimeout <= 0 {
		return errors.New("config: connect timeouts must be positive")
	}
	if c.MaxReceivedStreams <= 0 {
		return errors.New("config: MAX_RECEIVED_STREAMS must be positive")
	}
	return nil
}

// IsPublicHost reports whether host is the well-known public deployment.
func (c *Config) IsPublicHost(host string) bool {
	return host != "" && signaling.HostsEqual(host, c.PublicHost)
}

// ConnectTimeout returns the signaling connect timeout for host. The public
// host fails often and recovers by fallback, so it gets the short timeout;
// private hosts merit a longer wait.
func (c *Config) ConnectTimeout(host string) time.Duration {
	if c.IsPublicHost(host) {
		return c.PublicConnectTimeout
	}
	return c.PrivateConnectTimeout
}

func defaultStorePath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".mdsc", "live-client.db")
	}
	return filepath.Join(".", "live-client.db")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
