package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageDriverMemory = "memory"
	StorageDriverSQL    = "sql"
	StorageDriverRedis  = "redis"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

// Env var names referenced outside of struct tags (tests, docs, bootstrap).
const (
	EnvAppEnv          = "STOREFRONT_APP_ENV"
	EnvPort            = "STOREFRONT_APP_PORT"
	EnvGatewayBaseURL  = "STOREFRONT_GATEWAY_BASE_URL"
	EnvStorageDriver   = "STOREFRONT_STORAGE_DRIVER"
	EnvDBDriver        = "STOREFRONT_DB_DRIVER"
	EnvDBDSN           = "STOREFRONT_DB_DSN"
	EnvRedisURL        = "STOREFRONT_REDIS_URL"
	EnvInterStoreDelay = "STOREFRONT_CHECKOUT_INTER_STORE_DELAY"
)

type Config struct {
	App       AppConfig
	Gateway   GatewayConfig
	Storage   StorageConfig
	DB        DBConfig
	Redis     RedisConfig
	Session   SessionConfig
	Checkout  CheckoutConfig
	Mirror    MirrorConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Storage.Driver == StorageDriverSQL {
		if err := cfg.DB.EnsureDSN(); err != nil {
			return nil, err
		}
	}
	if cfg.Storage.Driver == StorageDriverRedis && !cfg.Redis.Configured() {
		return nil, fmt.Errorf("%s is required when the redis storage driver is selected", EnvRedisURL)
	}
	if _, err := url.Parse(cfg.Gateway.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvGatewayBaseURL, err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8787"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`

	// CORSOrigins lists the UI origins allowed to call the API.
	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// GatewayConfig points at the remote marketplace REST API.
type GatewayConfig struct {
	BaseURL   string        `envconfig:"STOREFRONT_GATEWAY_BASE_URL" default:"https://api.tamkeen.center/api"`
	Timeout   time.Duration `envconfig:"STOREFRONT_GATEWAY_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"STOREFRONT_GATEWAY_USER_AGENT" default:"storefront/1.0"`

	// BreakerFailures consecutive failures open the circuit; 0 disables it.
	BreakerFailures uint32        `envconfig:"STOREFRONT_GATEWAY_BREAKER_FAILURES" default:"5"`
	BreakerCooldown time.Duration `envconfig:"STOREFRONT_GATEWAY_BREAKER_COOLDOWN" default:"30s"`
}

type StorageConfig struct {
	Driver string `envconfig:"STOREFRONT_STORAGE_DRIVER" default:"sql"`
}

func (s StorageConfig) validate() error {
	switch s.Driver {
	case StorageDriverMemory, StorageDriverSQL, StorageDriverRedis:
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvStorageDriver, s.Driver)
}

type DBConfig struct {
	Driver      string `envconfig:"STOREFRONT_DB_DRIVER" default:"sqlite"`
	DSN         string `envconfig:"STOREFRONT_DB_DSN"`
	SQLitePath  string `envconfig:"STOREFRONT_DB_SQLITE_PATH" default:"storefront.db"`
	AutoMigrate bool   `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"true"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsPostgres reports whether the SQL backend targets Postgres instead of SQLite.
func (db DBConfig) IsPostgres() bool {
	return strings.EqualFold(db.Driver, DBDriverPostgres)
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether enough settings exist to dial Redis.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type SessionConfig struct {
	// Leeway tolerated when reading the exp claim of a handed-over JWT.
	ExpiryLeeway time.Duration `envconfig:"STOREFRONT_SESSION_EXPIRY_LEEWAY" default:"30s"`
	LoginPath    string        `envconfig:"STOREFRONT_SESSION_LOGIN_PATH" default:"/login"`
}

type CheckoutConfig struct {
	InterStoreDelay time.Duration `envconfig:"STOREFRONT_CHECKOUT_INTER_STORE_DELAY" default:"500ms"`
	SkipSucceeded   bool          `envconfig:"STOREFRONT_CHECKOUT_SKIP_SUCCEEDED" default:"true"`
	IdempotencyTTL  time.Duration `envconfig:"STOREFRONT_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

type MirrorConfig struct {
	Workers       int     `envconfig:"STOREFRONT_MIRROR_WORKERS" default:"2"`
	QueueSize     int     `envconfig:"STOREFRONT_MIRROR_QUEUE_SIZE" default:"64"`
	RatePerSecond float64 `envconfig:"STOREFRONT_MIRROR_RATE_PER_SECOND" default:"5"`
}

type CatalogConfig struct {
	RefreshInterval time.Duration `envconfig:"STOREFRONT_CATALOG_REFRESH_INTERVAL" default:"6h"`
	SearchLimit     int           `envconfig:"STOREFRONT_SEARCH_LIMIT" default:"10"`
}

// RateLimitConfig throttles login and checkout per client IP. Counters live
// in Redis, so limits only apply when Redis is configured.
type RateLimitConfig struct {
	Window        time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_WINDOW" default:"1m"`
	SessionLimit  int           `envconfig:"STOREFRONT_RATE_LIMIT_SESSION" default:"10"`
	CheckoutLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT" default:"5"`
}

// EnsureDSN derives a sqlite file DSN when none was supplied.
func (db *DBConfig) EnsureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsPostgres() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DBDriverPostgres)
	}
	if !strings.EqualFold(db.Driver, DBDriverSQLite) {
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
	}
	path := strings.TrimSpace(db.SQLitePath)
	if path == "" {
		return fmt.Errorf("either %s or a sqlite path is required", EnvDBDSN)
	}

	u := &url.URL{Scheme: "file", Opaque: path}
	q := u.Query()
	q.Set("_busy_timeout", "5000")
	u.RawQuery = q.Encode()

	db.DSN = u.String()
	return nil
}
