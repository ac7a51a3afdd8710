// Package config reads service settings from the environment (optionally
// via a .env file) and the simulation policy from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	DatabaseURL     string
	DBMaxConns      int
	RedisAddr       string
	CatalogCacheTTL time.Duration
	CatalogSeedPath string
	PolicyPath      string

	SimSeed         uint64
	SimStart        time.Time
	SimTickInterval time.Duration
	SimTickDuration time.Duration
	SimWorkers      int

	LogLevel  string
	LogFormat string

	TracingEnabled     bool
	TracingServiceName string
	TracingSampleRatio float64
}

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads every setting from the environment and validates the result.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:               Get("PORT", "8080"),
		DatabaseURL:        Get("DATABASE_URL", ""),
		RedisAddr:          Get("REDIS_ADDR", ""),
		CatalogSeedPath:    Get("CATALOG_SEED_PATH", "data/seeds/catalog.json"),
		PolicyPath:         Get("POLICY_PATH", "configs/policy.yaml"),
		LogLevel:           Get("LOG_LEVEL", "info"),
		LogFormat:          Get("LOG_FORMAT", "json"),
		TracingServiceName: Get("TRACING_SERVICE_NAME", "shipment-risk-service"),
	}

	cfg.DBMaxConns = getInt("DB_MAX_CONNS", 10, &errs)
	cfg.CatalogCacheTTL = getDuration("CATALOG_CACHE_TTL", 5*time.Minute, &errs)
	cfg.SimSeed = getUint("SIM_SEED", 1, &errs)
	cfg.SimTickInterval = getDuration("SIM_TICK_INTERVAL", 0, &errs)
	cfg.SimTickDuration = getDuration("SIM_TICK_DURATION", 30*time.Minute, &errs)
	cfg.SimWorkers = getInt("SIM_WORKERS", 0, &errs)
	cfg.TracingEnabled = getBool("TRACING_ENABLED", false, &errs)
	cfg.TracingSampleRatio = getFloat("TRACING_SAMPLE_RATIO", 1, &errs)

	start := Get("SIM_START", "")
	if start == "" {
		cfg.SimStart = time.Now().UTC().Truncate(time.Second)
	} else {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			errs = append(errs, fmt.Errorf("SIM_START: %w", err))
		}
		cfg.SimStart = t
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that parsed but make no sense together.
func (c Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT %q is not a number", c.Port))
	}
	if c.SimTickDuration <= 0 {
		errs = append(errs, errors.New("SIM_TICK_DURATION must be positive"))
	}
	if c.SimTickInterval < 0 {
		errs = append(errs, errors.New("SIM_TICK_INTERVAL must not be negative"))
	}
	if c.SimWorkers < 0 {
		errs = append(errs, errors.New("SIM_WORKERS must not be negative"))
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		errs = append(errs, errors.New("TRACING_SAMPLE_RATIO must be within [0,1]"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be json or console", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getInt(key string, fallback int, errs *[]error) int {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getUint(key string, fallback uint64, errs *[]error) uint64 {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}

func getBool(key string, fallback bool, errs *[]error) bool {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := Get(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
