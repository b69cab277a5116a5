package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/booking"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Knobs with a sensible default are optional;
// the rest are enforced by must().
type Config struct {
	Env      string         // application environment (e.g. "dev", "prod")
	Port     string         // HTTP port to listen on
	Location *time.Location // zone API timestamps are written and read in

	DBDriver string // mysql or sqlite
	DBUser   string // database username
	DBPass   string // database password (optional)
	DBHost   string // database host address
	DBPort   string // database port number
	DBName   string // database name
	DBPath   string // sqlite file path

	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	ResetTTL       time.Duration

	ReconcileInterval time.Duration // background expiry sweep period
	Rates             booking.Rates // hourly tariff in cents

	AMQPURL   string // RabbitMQ URL for booking events; empty disables them
	LogLevel  string
	LogFormat string

	AdminEmail    string // bootstrap admin account, created when missing
	AdminPassword string
	SeedDemo      bool // create demo floors and slots on an empty database

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing or malformed required values cause the program to exit
// with a fatal log message.
func Load() Config {
	cfg, err := LoadFrom(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// LoadFrom builds a Config from the given lookup function, which has the
// signature of os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	e := &env{lookup: lookup}
	cfg := Config{
		Env:       e.str("APP_ENV", "dev"),
		Port:      e.str("APP_PORT", "8080"),
		DBDriver:  strings.ToLower(e.str("DB_DRIVER", "mysql")),
		DBPass:    e.str("DB_PASS", ""),
		DBPath:    e.str("DB_PATH", "parking.db"),
		JWTSecret: e.must("JWT_SECRET"),

		AccessTTLMin:   e.num("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: e.num("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     e.num("BCRYPT_COST", 12),
		ResetTTL:       time.Duration(e.num("RESET_TOKEN_TTL_MIN", 60)) * time.Minute,

		ReconcileInterval: e.dur("RECONCILE_INTERVAL", time.Minute),
		Rates: booking.Rates{
			BaseCents:         int64(e.num("PRICE_BASE_CENTS", int(booking.DefaultBaseRateCents))),
			EVSurchargeCents:  int64(e.num("PRICE_EV_SURCHARGE_CENTS", int(booking.DefaultEVSurchargeCents))),
			VIPSurchargeCents: int64(e.num("PRICE_VIP_SURCHARGE_CENTS", int(booking.DefaultVIPSurchargeCents))),
		},

		AMQPURL:   e.str("RABBITMQ_URL", e.str("AMQP_URL", "")),
		LogLevel:  e.str("LOG_LEVEL", "info"),
		LogFormat: e.str("LOG_FORMAT", "json"),

		AdminEmail:    e.str("ADMIN_EMAIL", ""),
		AdminPassword: e.str("ADMIN_PASSWORD", ""),
		SeedDemo:      e.flag("SEED_DEMO", false),

		Redis:     loadRedisConfig(e),
		RateLimit: loadRateLimitConfig(e),
		Cache:     loadCacheConfig(e),
	}

	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = e.must("DB_USER")
		cfg.DBHost = e.must("DB_HOST")
		cfg.DBPort = e.must("DB_PORT")
		cfg.DBName = e.must("DB_NAME")
	case "sqlite":
	default:
		e.fail(fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver))
	}

	loc, err := time.LoadLocation(e.str("APP_TIMEZONE", "UTC"))
	if err != nil {
		e.fail(fmt.Errorf("invalid APP_TIMEZONE: %w", err))
		loc = time.UTC
	}
	cfg.Location = loc

	if cfg.Rates.BaseCents <= 0 || cfg.Rates.EVSurchargeCents < 0 || cfg.Rates.VIPSurchargeCents < 0 {
		e.fail(fmt.Errorf("invalid tariff: base must be positive and surcharges non-negative"))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		e.fail(fmt.Errorf("invalid BCRYPT_COST %d", cfg.BcryptCost))
	}
	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, nil
}

// env wraps a lookup function and remembers the first error seen so that
// LoadFrom can report it after reading every variable.
type env struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *env) get(key string) string {
	v, ok := e.lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// must retrieves the value of a required environment variable.
func (e *env) must(key string) string {
	v := e.get(key)
	if v == "" {
		e.fail(fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (e *env) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *env) num(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (e *env) flag(key string, def bool) bool {
	switch strings.ToLower(e.get(key)) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func (e *env) dur(key string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}
