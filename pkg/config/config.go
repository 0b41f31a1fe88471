package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv = "ORATO_APP_ENV"
	EnvDBDSN  = "ORATO_DB_DSN"
	EnvDBHost = "ORATO_DB_HOST"
	EnvDBUser = "ORATO_DB_USER"
	EnvDBName = "ORATO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Reconcile    ReconcileConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Ops          OpsConfig
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
	Env          string `envconfig:"ORATO_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"ORATO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORATO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORATO_SERVICE_KIND" default:"cron-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORATO_DB_DSN"`
	Driver string `envconfig:"ORATO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORATO_DB_HOST"`
	LegacyPort     int    `envconfig:"ORATO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORATO_DB_USER"`
	LegacyPassword string `envconfig:"ORATO_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORATO_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORATO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORATO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORATO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORATO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORATO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORATO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORATO_REDIS_ADDR"`
	Password     string        `envconfig:"ORATO_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORATO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORATO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORATO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORATO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORATO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORATO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ReconcileConfig tunes the entitlement reconciliation batch.
type ReconcileConfig struct {
	LookbackDays int           `envconfig:"ORATO_RECONCILE_LOOKBACK_DAYS" default:"90"`
	LimitUsers   int           `envconfig:"ORATO_RECONCILE_LIMIT_USERS" default:"0"`
	DryRun       bool          `envconfig:"ORATO_RECONCILE_DRY_RUN" default:"false"`
	Interval     time.Duration `envconfig:"ORATO_RECONCILE_INTERVAL" default:"24h"`
}

// Lookback converts the configured day count into a duration, clamped to
// the supported 45-120 day window.
func (r ReconcileConfig) Lookback() time.Duration {
	days := r.LookbackDays
	if days < 45 {
		days = 45
	}
	if days > 120 {
		days = 120
	}
	return time.Duration(days) * 24 * time.Hour
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORATO_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORATO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORATO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORATO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"ORATO_PUBSUB_DOMAIN_TOPIC" default:"orato-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORATO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORATO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORATO_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"ORATO_OUTBOX_RETENTION_DAYS" default:"30"`
}

type OpsConfig struct {
	Port string `envconfig:"ORATO_OPS_PORT" default:"9090"`
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
