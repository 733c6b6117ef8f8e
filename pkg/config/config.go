package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CASASYNC"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names shared with tests.
const (
	EnvAppEnv       = "CASASYNC_APP_ENV"
	EnvPort         = "CASASYNC_APP_PORT"
	EnvDBDSN        = "CASASYNC_DB_DSN"
	EnvDBDriver     = "CASASYNC_DB_DRIVER"
	EnvRedisURL     = "CASASYNC_REDIS_URL"
	EnvGCPProjectID = "CASASYNC_GCP_PROJECT_ID"
	EnvPushSub      = "CASASYNC_PUBSUB_PUSH_SUBSCRIPTION"
	EnvBackendURL   = "CASASYNC_BACKEND_BASE_URL"
	EnvJWTSecret    = "CASASYNC_JWT_SECRET"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Push         PushConfig
	Backend      BackendConfig
	Store        StoreConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CASASYNC_APP_ENV" required:"true"`
	Port         string `envconfig:"CASASYNC_APP_PORT" default:"7420"`
	DataDir      string `envconfig:"CASASYNC_DATA_DIR" default:"./data"`
	LogLevel     string `envconfig:"CASASYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CASASYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	// DSN is a file path for the sqlite driver and a connection string for postgres.
	DSN    string `envconfig:"CASASYNC_DB_DSN" required:"true"`
	Driver string `envconfig:"CASASYNC_DB_DRIVER" default:"sqlite"`

	MaxOpenConns    int           `envconfig:"CASASYNC_DB_MAX_OPEN_CONNS" default:"1"`
	MaxIdleConns    int           `envconfig:"CASASYNC_DB_MAX_IDLE_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"CASASYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CASASYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

func (db DBConfig) validate() error {
	switch strings.ToLower(db.Driver) {
	case DBDriverSQLite, DBDriverPostgres:
		return nil
	default:
		return fmt.Errorf("unsupported db driver %q", db.Driver)
	}
}

type RedisConfig struct {
	// URL is optional; without it the background consumer skips the delivery
	// idempotency guard and relies on store-level id dedup alone.
	URL          string        `envconfig:"CASASYNC_REDIS_URL"`
	Address      string        `envconfig:"CASASYNC_REDIS_ADDR"`
	Password     string        `envconfig:"CASASYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASASYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASASYNC_REDIS_POOL_SIZE" default:"5"`
	MinIdleConns int           `envconfig:"CASASYNC_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"CASASYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASASYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASASYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CASASYNC_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CASASYNC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CASASYNC_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PushSubscription string `envconfig:"CASASYNC_PUBSUB_PUSH_SUBSCRIPTION"`
}

type PushConfig struct {
	InitTimeout    time.Duration `envconfig:"CASASYNC_PUSH_INIT_TIMEOUT" default:"10s"`
	RefreshTimeout time.Duration `envconfig:"CASASYNC_PUSH_REFRESH_TIMEOUT" default:"10s"`
}

type BackendConfig struct {
	BaseURL     string        `envconfig:"CASASYNC_BACKEND_BASE_URL"`
	SyncTimeout time.Duration `envconfig:"CASASYNC_BACKEND_SYNC_TIMEOUT" default:"15s"`
}

type StoreConfig struct {
	MaxRecords int `envconfig:"CASASYNC_STORE_MAX_RECORDS" default:"50"`
}

type JWTConfig struct {
	// Secret verifies the backend-issued access token the identity provider
	// reads the user id from. Empty disables signature verification checks
	// in dev tooling only.
	Secret string `envconfig:"CASASYNC_JWT_SECRET"`
	Issuer string `envconfig:"CASASYNC_JWT_ISSUER" default:"casafindr"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CASASYNC_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	DeliveryIdempotencyTTL time.Duration `envconfig:"CASASYNC_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}
