package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PortalURL   string
	State       string
	Market      string
	Commodities []string
	TargetsFile string

	DateOffsetDays int
	ElementTimeout time.Duration
	RunTimeout     time.Duration
	PassInterval   time.Duration
	MaxPasses      int

	ChromeBin string
	Headless  bool

	StoreBackend        string
	CollectionPath      string
	StoreTimeout        time.Duration
	StoreConnectRetries int

	FirebaseDatabaseURL string
	FirebaseAuthToken   string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	DedupEnabled bool
	DedupTTL     time.Duration
	DedupSize    int

	AdminAddr string
	LogLevel  string
}

// Load reads the .env file (or the given files) and returns a populated Config.
// A TARGETS_FILE, when set, overrides STATE, MARKET and COMMODITIES.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PortalURL:   getEnv("PORTAL_URL", "https://agmarknet.gov.in/SearchCmmMkt.aspx"),
		State:       getEnv("STATE", "Karnataka"),
		Market:      getEnv("MARKET", "Bangalore"),
		Commodities: getEnvList("COMMODITIES", []string{"Wheat"}),
		TargetsFile: getEnv("TARGETS_FILE", ""),

		DateOffsetDays: getEnvInt("DATE_OFFSET_DAYS", 7),
		ElementTimeout: getEnvDuration("ELEMENT_TIMEOUT", 10*time.Second),
		RunTimeout:     getEnvDuration("RUN_TIMEOUT", 3*time.Minute),
		PassInterval:   getEnvDuration("PASS_INTERVAL", time.Hour),
		MaxPasses:      getEnvInt("MAX_PASSES", 0),

		ChromeBin: getEnv("CHROME_BIN", ""),
		Headless:  getEnvBool("HEADLESS", true),

		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", BackendFirebase)),
		CollectionPath:      getEnv("COLLECTION_PATH", "market_prices"),
		StoreTimeout:        getEnvDuration("STORE_TIMEOUT", 15*time.Second),
		StoreConnectRetries: getEnvInt("STORE_CONNECT_RETRIES", 3),

		FirebaseDatabaseURL: getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseAuthToken:   getEnv("FIREBASE_AUTH_TOKEN", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "market_prices"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		DedupEnabled: getEnvBool("DEDUP_ENABLED", false),
		DedupTTL:     getEnvDuration("DEDUP_TTL", 48*time.Hour),
		DedupSize:    getEnvInt("DEDUP_SIZE", 10000),

		AdminAddr: getEnv("ADMIN_ADDR", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	if cfg.TargetsFile != "" {
		targets, err := LoadTargets(cfg.TargetsFile)
		if err != nil {
			return nil, err
		}
		targets.apply(cfg)
	}

	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	u, err := url.Parse(c.PortalURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("config: invalid PORTAL_URL %q", c.PortalURL)
	}
	if strings.TrimSpace(c.State) == "" || strings.TrimSpace(c.Market) == "" {
		return fmt.Errorf("config: state and market are required")
	}
	if len(c.Commodities) == 0 {
		return fmt.Errorf("config: at least one commodity is required")
	}
	if c.DateOffsetDays < 0 {
		return fmt.Errorf("config: DATE_OFFSET_DAYS cannot be negative")
	}
	if c.ElementTimeout <= 0 || c.RunTimeout <= 0 {
		return fmt.Errorf("config: element and run timeouts must be positive")
	}
	if c.PassInterval < 0 {
		return fmt.Errorf("config: PASS_INTERVAL cannot be negative")
	}
	if c.MaxPasses < 0 {
		return fmt.Errorf("config: MAX_PASSES cannot be negative")
	}
	if strings.Trim(c.CollectionPath, "/") == "" {
		return fmt.Errorf("config: COLLECTION_PATH is required")
	}

	switch c.StoreBackend {
	case BackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("config: FIREBASE_DATABASE_URL is required for the firebase backend")
		}
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.DedupEnabled && c.DedupTTL <= 0 {
		return fmt.Errorf("config: DEDUP_TTL must be positive when dedup is enabled")
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("[config] Invalid integer for %s=%q, using %d", key, val, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
		log.Printf("[config] Invalid boolean for %s=%q, using %t", key, val, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
		log.Printf("[config] Invalid duration for %s=%q, using %v", key, val, fallback)
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return splitList(val)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
