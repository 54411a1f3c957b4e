package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable consumed by the platform.
const EnvPrefix = "RENTLINE"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "RENTLINE_APP_ENV"
	EnvDBDSN  = "RENTLINE_DB_DSN"
	EnvDBHost = "RENTLINE_DB_HOST"
	EnvDBUser = "RENTLINE_DB_USER"
	EnvDBName = "RENTLINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Engine       EngineConfig
	Scheduler    SchedulerConfig
	Scan         ScanConfig
	Partner      PartnerConfig
	Catalog      CatalogConfig
	FeatureFlags FeatureFlagsConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RENTLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"RENTLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RENTLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RENTLINE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RENTLINE_DB_DSN"`
	Driver string `envconfig:"RENTLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RENTLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"RENTLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RENTLINE_DB_USER"`
	LegacyPassword string `envconfig:"RENTLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"RENTLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"RENTLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RENTLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RENTLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RENTLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RENTLINE_REDIS_ADDR"`
	Password     string        `envconfig:"RENTLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// EngineConfig carries the reservation engine tunables.
type EngineConfig struct {
	GuardTimeout       time.Duration `envconfig:"RENTLINE_ENGINE_GUARD_TIMEOUT" default:"5s"`
	GuardRetries       int           `envconfig:"RENTLINE_ENGINE_GUARD_RETRIES" default:"3"`
	GuardRetryJitter   time.Duration `envconfig:"RENTLINE_ENGINE_GUARD_RETRY_JITTER" default:"250ms"`
	MaxBundleDepth     int           `envconfig:"RENTLINE_ENGINE_MAX_BUNDLE_DEPTH" default:"3"`
	StrictAvailability bool          `envconfig:"RENTLINE_ENGINE_STRICT_AVAILABILITY" default:"true"`
}

// SchedulerConfig drives the recurring obligation loop.
type SchedulerConfig struct {
	Tick        time.Duration `envconfig:"RENTLINE_SCHEDULER_TICK" default:"60s"`
	RetryDelay  time.Duration `envconfig:"RENTLINE_SCHEDULER_RETRY_DELAY" default:"5m"`
	MaxAttempts int           `envconfig:"RENTLINE_SCHEDULER_MAX_ATTEMPTS" default:"5"`
	GracePeriod time.Duration `envconfig:"RENTLINE_SCHEDULER_GRACE_PERIOD" default:"30s"`
	LockTTL     time.Duration `envconfig:"RENTLINE_SCHEDULER_LOCK_TTL" default:"5m"`
}

// ScanConfig gates warehouse scan ingestion.
type ScanConfig struct {
	Cooldown    time.Duration `envconfig:"RENTLINE_SCAN_COOLDOWN" default:"5m"`
	MaxDistance float64       `envconfig:"RENTLINE_SCAN_MAX_DISTANCE_METERS" default:"10000"`
	HomeLat     float64       `envconfig:"RENTLINE_SCAN_HOME_LAT" default:"0"`
	HomeLng     float64       `envconfig:"RENTLINE_SCAN_HOME_LNG" default:"0"`
}

// PartnerConfig configures sub-rental partner access and sync retries.
type PartnerConfig struct {
	BaseURL           string        `envconfig:"RENTLINE_PARTNER_BASE_URL"`
	APIKey            string        `envconfig:"RENTLINE_PARTNER_API_KEY"`
	RequestTimeout    time.Duration `envconfig:"RENTLINE_PARTNER_REQUEST_TIMEOUT" default:"10s"`
	RetryMaxAttempts  int           `envconfig:"RENTLINE_PARTNER_RETRY_MAX_ATTEMPTS" default:"6"`
	RetryInitialDelay time.Duration `envconfig:"RENTLINE_PARTNER_RETRY_INITIAL_DELAY" default:"30s"`
	RetryBackoff      float64       `envconfig:"RENTLINE_PARTNER_RETRY_BACKOFF" default:"2.0"`
	BreakerMaxFails   int           `envconfig:"RENTLINE_PARTNER_BREAKER_MAX_FAILS" default:"5"`
	BreakerOpenFor    time.Duration `envconfig:"RENTLINE_PARTNER_BREAKER_OPEN_FOR" default:"60s"`
	SyncInterval      time.Duration `envconfig:"RENTLINE_PARTNER_SYNC_INTERVAL" default:"30s"`
	ImportInterval    time.Duration `envconfig:"RENTLINE_PARTNER_IMPORT_INTERVAL" default:"15m"`
	ImportHorizon     time.Duration `envconfig:"RENTLINE_PARTNER_IMPORT_HORIZON" default:"168h"`
	ImportKinds       []string      `envconfig:"RENTLINE_PARTNER_IMPORT_KINDS"`
}

// CatalogConfig tunes the read-through catalogue cache.
type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"RENTLINE_CATALOG_CACHE_TTL" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RENTLINE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RENTLINE_AUTO_MIGRATE" default:"false"`
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"RENTLINE_PUBSUB_PROJECT_ID"`
	EventsTopic        string `envconfig:"RENTLINE_PUBSUB_EVENTS_TOPIC" default:"rl-reservation-events"`
	EventsSubscription string `envconfig:"RENTLINE_PUBSUB_EVENTS_SUBSCRIPTION"`
	CredentialsJSON    string `envconfig:"RENTLINE_PUBSUB_CREDENTIALS_JSON"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RENTLINE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RENTLINE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RENTLINE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
