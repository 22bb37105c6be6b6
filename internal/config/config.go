package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KelvinMNH/FaceEventos/internal/constants"
)

// Storage backends
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Matcher strategies
const (
	StrategyEuclidean = "euclidean"
	StrategySimulated = "simulated"
	StrategyHarness   = "harness"
)

type Config struct {
	Database     DatabaseConfig
	Matcher      MatcherConfig
	Ledger       LedgerConfig
	Scan         ScanConfig
	MQTT         MQTTConfig
	Registration RegistrationConfig
	Web          WebConfig
	LogLevel     string
}

type DatabaseConfig struct {
	Driver       string // postgres, sqlite or memory (default postgres when URL is set, sqlite otherwise)
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	SQLitePath   string // SQLite database file (default ./data/faceeventos.db)
}

type MatcherConfig struct {
	Strategy     string  // euclidean, simulated or harness
	Threshold    float64 // exclusive upper bound on Euclidean distance
	EmbeddingDim int     // expected sample length
	Index        string  // "hnsw" enables the template index, empty scans linearly
}

type LedgerConfig struct {
	Cooldown time.Duration
}

type ScanConfig struct {
	PollInterval  time.Duration
	AdmitCooldown time.Duration
	DenyCooldown  time.Duration
	RecentTTL     time.Duration
}

type MQTTConfig struct {
	Broker   string // host:port, publishing disabled when empty
	Topic    string
	ClientID string
}

type RegistrationConfig struct {
	DatabaseURL string // MySQL DSN of the external registration system (e.g., reg:reg@tcp(mysql:3306)/inscricoes)
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
	OperatorToken  string   // bearer token required by the API when set
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a Go duration ("60s", "800ms").
// A bare integer is taken as milliseconds.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	dbURL := os.Getenv("DATABASE_URL")
	driver := strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if driver == "" {
		driver = DriverSQLite
		if dbURL != "" {
			driver = DriverPostgres
		}
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:       driver,
			URL:          dbURL,
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			SQLitePath:   envString("SQLITE_PATH", "./data/faceeventos.db"),
		},
		Matcher: MatcherConfig{
			Strategy:     strings.ToLower(envString("MATCHER_STRATEGY", StrategyEuclidean)),
			Threshold:    envFloat("MATCHER_THRESHOLD", constants.DefaultDistanceThreshold),
			EmbeddingDim: envInt("EMBEDDING_DIM", constants.DefaultEmbeddingDim),
			Index:        strings.ToLower(os.Getenv("MATCHER_INDEX")),
		},
		Ledger: LedgerConfig{
			Cooldown: envDuration("LEDGER_COOLDOWN", constants.DefaultLedgerCooldown),
		},
		Scan: ScanConfig{
			PollInterval:  envDuration("SCAN_POLL_INTERVAL", constants.DefaultPollInterval),
			AdmitCooldown: envDuration("SCAN_ADMIT_COOLDOWN", constants.DefaultAdmitCooldown),
			DenyCooldown:  envDuration("SCAN_DENY_COOLDOWN", constants.DefaultDenyCooldown),
			RecentTTL:     envDuration("SCAN_RECENT_TTL", constants.DefaultRecentTTL),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    envString("MQTT_TOPIC", "faceeventos/access"),
			ClientID: envString("MQTT_CLIENT_ID", "faceeventos"),
		},
		Registration: RegistrationConfig{
			DatabaseURL: os.Getenv("REGISTRATION_DATABASE_URL"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
			OperatorToken:  os.Getenv("WEB_OPERATOR_TOKEN"),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.Database.Driver))
	}

	switch c.Matcher.Strategy {
	case StrategyEuclidean, StrategySimulated, StrategyHarness:
	default:
		errs = append(errs, fmt.Errorf("unknown MATCHER_STRATEGY %q", c.Matcher.Strategy))
	}
	if c.Matcher.Index != "" && c.Matcher.Index != "hnsw" {
		errs = append(errs, fmt.Errorf("unknown MATCHER_INDEX %q", c.Matcher.Index))
	}

	if c.Scan.DenyCooldown < c.Scan.AdmitCooldown {
		errs = append(errs, errors.New("SCAN_DENY_COOLDOWN must not be shorter than SCAN_ADMIT_COOLDOWN"))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
