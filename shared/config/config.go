// shared/config/config.go
package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreBackendMemory   = "memory"
	StoreBackendMongo    = "mongo"
	StoreBackendPostgres = "postgres"
)

// CommonConfig holds configuration fields that are shared across services.
type CommonConfig struct {
	RedisAddrs              []string      // Redis addresses; empty disables the view cache and the registry
	RedisPassword           string        // Redis password
	HeartbeatInterval       time.Duration // How often to send a heartbeat to the registry (e.g., 5s)
	HeartbeatTTL            time.Duration // How long an instance is considered alive without a heartbeat (e.g., 15s)
	RegistryCleanupInterval time.Duration // How often the registry prunes stale entries (e.g., 30s)
	ServiceIP               string        // The IP address this service advertises for registration
	ServicePort             int           // The port this service listens on, used for registration
}

// RosterServiceConfig holds configuration specific to the roster-service.
type RosterServiceConfig struct {
	CommonConfig

	ListenAddr     string        // Address for the HTTP server (e.g., ":8080")
	StoreBackend   string        // memory | mongo | postgres
	RequestTimeout time.Duration // Per-request store deadline

	MongoDBConnStr           string
	MongoDBDatabase          string
	MongoDBMatchesCollection string
	MongoDBTeamsCollection   string
	MongoDBPlayersCollection string

	PostgresURL      string
	PostgresMinConns int
	PostgresMaxConns int

	JWTSecret        string
	CORSAllowOrigins []string

	ClaimRateLimit  int // Claims/leaves allowed per client within ClaimRateWindow; 0 disables
	ClaimRateWindow time.Duration

	ViewCacheTTL time.Duration
	TimeZone     string // IANA zone used for "today" and scheduled match times

	AutoCloseEnabled   bool
	AutoCloseInterval  time.Duration
	AutoCloseGrace     time.Duration
	RingUpdateInterval time.Duration
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	cfg := CommonConfig{
		RedisAddrs:    getList("REDIS_ADDRS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
	var err error

	cfg.HeartbeatInterval, err = getPositiveDuration("SERVICE_HEARTBEAT_INTERVAL", 5*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.HeartbeatTTL, err = getPositiveDuration("SERVICE_HEARTBEAT_TTL", 15*time.Second)
	if err != nil {
		return cfg, err
	}
	cfg.RegistryCleanupInterval, err = getPositiveDuration("SERVICE_REGISTRY_CLEANUP_INTERVAL", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.ServiceIP = os.Getenv("POD_IP")
	if cfg.ServiceIP == "" {
		cfg.ServiceIP = "0.0.0.0"
		log.Printf("WARN: POD_IP not set, defaulting ServiceIP to %s", cfg.ServiceIP)
	}

	return cfg, nil
}

// LoadRosterServiceConfig loads configuration for the roster-service.
func LoadRosterServiceConfig() (*RosterServiceConfig, error) {
	common, err := LoadCommonConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load common config for roster-service: %w", err)
	}

	cfg := &RosterServiceConfig{
		CommonConfig:             common,
		ListenAddr:               getString("ROSTER_SERVICE_LISTEN_ADDR", ":8080"),
		StoreBackend:             strings.ToLower(getString("STORE_BACKEND", StoreBackendMemory)),
		MongoDBConnStr:           getString("MONGODB_CONN_STR", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDBDatabase:          getString("MONGODB_DATABASE", "matchday"),
		MongoDBMatchesCollection: getString("MONGODB_MATCHES_COLLECTION", "matches"),
		MongoDBTeamsCollection:   getString("MONGODB_TEAMS_COLLECTION", "teams"),
		MongoDBPlayersCollection: getString("MONGODB_PLAYERS_COLLECTION", "players"),
		PostgresURL:              os.Getenv("POSTGRES_URL"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		CORSAllowOrigins:         getList("CORS_ALLOW_ORIGINS"),
		TimeZone:                 getString("MATCH_TIME_ZONE", "UTC"),
	}

	switch cfg.StoreBackend {
	case StoreBackendMemory, StoreBackendMongo:
	case StoreBackendPostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("POSTGRES_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want memory, mongo or postgres)", cfg.StoreBackend)
	}

	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from ROSTER_SERVICE_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	if cfg.RequestTimeout, err = getPositiveDuration("REQUEST_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PostgresMinConns, err = getInt("POSTGRES_MIN_CONNS", 1); err != nil {
		return nil, err
	}
	if cfg.PostgresMaxConns, err = getInt("POSTGRES_MAX_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.ClaimRateLimit, err = getInt("CLAIM_RATE_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.ClaimRateWindow, err = getPositiveDuration("CLAIM_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ViewCacheTTL, err = getPositiveDuration("VIEW_CACHE_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.AutoCloseEnabled, err = getBool("AUTO_CLOSE_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.AutoCloseInterval, err = getPositiveDuration("AUTO_CLOSE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutoCloseGrace, err = getDuration("AUTO_CLOSE_GRACE", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RingUpdateInterval, err = getPositiveDuration("RING_UPDATE_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.AutoCloseGrace < 0 {
		return nil, fmt.Errorf("AUTO_CLOSE_GRACE must not be negative (got %s)", cfg.AutoCloseGrace)
	}
	if cfg.ClaimRateLimit < 0 {
		return nil, fmt.Errorf("CLAIM_RATE_LIMIT must not be negative (got %d)", cfg.ClaimRateLimit)
	}
	if cfg.PostgresMinConns > cfg.PostgresMaxConns {
		return nil, fmt.Errorf("POSTGRES_MIN_CONNS (%d) must not exceed POSTGRES_MAX_CONNS (%d)", cfg.PostgresMinConns, cfg.PostgresMaxConns)
	}
	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid MATCH_TIME_ZONE %q: %w", cfg.TimeZone, err)
	}

	return cfg, nil
}

// Location returns the configured match time zone.
func (c *RosterServiceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RedisEnabled reports whether any Redis address is configured.
func (c *CommonConfig) RedisEnabled() bool {
	return len(c.RedisAddrs) > 0
}

func getString(envKey, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return defaultVal
}

func getList(envKey string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(envKey), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Helper function to parse duration from environment variable
func getDuration(envKey string, defaultVal time.Duration) (time.Duration, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format for %s: %w", envKey, err)
	}
	return d, nil
}

// getPositiveDuration is getDuration for intervals that drive tickers, rate windows and timeouts.
func getPositiveDuration(envKey string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getDuration(envKey, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (got %s)", envKey, d)
	}
	return d, nil
}

// Helper function to parse int from environment variable
func getInt(envKey string, defaultVal int) (int, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer format for %s: %w", envKey, err)
	}
	return i, nil
}

func getBool(envKey string, defaultVal bool) (bool, error) {
	valStr := os.Getenv(envKey)
	if valStr == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("invalid boolean format for %s: %w", envKey, err)
	}
	return b, nil
}

// extractPort extracts the numeric port from a listen address (e.g., ":8080" -> 8080, "0.0.0.0:8080" -> 8080)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}
