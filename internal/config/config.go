// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Type string // "mongo", "postgres" or "memory"
	URI  string
	Name string
}

// SessionConfig holds session cookie and session store settings
type SessionConfig struct {
	Backend      string // "memory" or "redis"
	RedisAddr    string
	RedisPass    string
	CookieName   string
	TTL          time.Duration
	SecureCookie bool // Secure flag on the session cookie; only disable for local development
}

// OAuthConfig holds the Google OAuth client settings. Leaving ClientID empty
// disables the OAuth login routes.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig
	Database       *DatabaseConfig
	Session        *SessionConfig
	OAuth          *OAuthConfig
	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type: "memory",
		Name: "lilypad",
	}
}

// DefaultSessionConfig provides default session settings
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		Backend:      "memory",
		RedisAddr:    "localhost:6379",
		CookieName:   "lilypad_session",
		TTL:          24 * time.Hour,
		SecureCookie: true,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env from the working directory or the project root when
	// running from cmd/server. Missing files are fine.
	envLocations := []string{".env", "../../.env"}
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	dbConfig := DefaultDatabaseConfig()

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		dbConfig.Type = dbType
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		dbConfig.Name = name
	}

	switch dbConfig.Type {
	case "memory":
		// Nothing to configure; data lives for the life of the process.
	case "mongo":
		dbConfig.URI = os.Getenv("MONGODB_URI")
		if dbConfig.URI == "" {
			return nil, fmt.Errorf("MONGODB_URI environment variable is required when DB_TYPE is mongo")
		}
	case "postgres":
		dbConfig.URI = os.Getenv("DATABASE_URL")
		if dbConfig.URI == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required when DB_TYPE is postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", dbConfig.Type)
	}

	sessionConfig := DefaultSessionConfig()

	if backend := os.Getenv("SESSION_BACKEND"); backend != "" {
		if backend != "memory" && backend != "redis" {
			return nil, fmt.Errorf("unsupported SESSION_BACKEND: %s", backend)
		}
		sessionConfig.Backend = backend
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		sessionConfig.RedisAddr = addr
	}
	sessionConfig.RedisPass = os.Getenv("REDIS_PASSWORD")
	if name := os.Getenv("SESSION_COOKIE_NAME"); name != "" {
		sessionConfig.CookieName = name
	}
	if ttlStr := os.Getenv("SESSION_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL: %v", err)
		}
		sessionConfig.TTL = ttl
	}
	if secure := os.Getenv("SESSION_COOKIE_SECURE"); secure != "" {
		sessionConfig.SecureCookie = secure == "true"
	}

	oauthConfig := &OAuthConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		StateSecret:  os.Getenv("OAUTH_STATE_SECRET"),
	}
	if oauthConfig.ClientID != "" && oauthConfig.StateSecret == "" {
		return nil, fmt.Errorf("OAUTH_STATE_SECRET environment variable is required when OAuth is enabled")
	}

	config := &Config{
		Server:         serverConfig,
		Database:       dbConfig,
		Session:        sessionConfig,
		OAuth:          oauthConfig,
		AllowedOrigins: []string{"*"},
		Debug:          false,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
	}

	return config, nil
}
