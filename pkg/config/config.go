package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Orders       OrdersConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Algolia      AlgoliaConfig
	Sendgrid     SendgridConfig
	Outbox       OutboxConfig
	Maintenance  MaintenanceConfig
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
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

// ConsoleLogs reports whether logs should be human-readable instead of JSON.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(strings.TrimSpace(a.LogFormat), "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY" default:"500ms"`
	ConnectAttempts    uint64        `envconfig:"STOREFRONT_DB_CONNECT_ATTEMPTS" default:"5"`
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

// OrdersConfig tunes the order commit transaction.
type OrdersConfig struct {
	TxMaxAttempts  int           `envconfig:"STOREFRONT_ORDER_TX_MAX_ATTEMPTS" default:"5"`
	TxBaseBackoff  time.Duration `envconfig:"STOREFRONT_ORDER_TX_BASE_BACKOFF" default:"25ms"`
	TxMaxBackoff   time.Duration `envconfig:"STOREFRONT_ORDER_TX_MAX_BACKOFF" default:"1s"`
	SnowflakeNode  int64         `envconfig:"STOREFRONT_ORDER_SNOWFLAKE_NODE" default:"1"`
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_ORDER_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	// EffectLease bounds how long a crashed worker can hold an effect claim.
	EffectLease time.Duration `envconfig:"STOREFRONT_EVENTING_EFFECT_LEASE" default:"5m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"storefront-order-events"`
	OrdersSubscription string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION" default:"storefront-order-effects"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"STOREFRONT_BIGQUERY_DATASET" default:"storefront"`
	OrdersTable string `envconfig:"STOREFRONT_BIGQUERY_ORDERS_TABLE" default:"order_events"`
	// CreateTable lets the worker create a missing orders table from OrderRow.
	CreateTable bool `envconfig:"STOREFRONT_BIGQUERY_CREATE_TABLE" default:"false"`
}

type AlgoliaConfig struct {
	AppID       string `envconfig:"STOREFRONT_ALGOLIA_APP_ID"`
	APIKey      string `envconfig:"STOREFRONT_ALGOLIA_API_KEY"`
	OrdersIndex string `envconfig:"STOREFRONT_ALGOLIA_ORDERS_INDEX" default:"orders"`
}

// Enabled reports whether enough credentials are present to build a client.
func (a AlgoliaConfig) Enabled() bool {
	return strings.TrimSpace(a.AppID) != "" && strings.TrimSpace(a.APIKey) != ""
}

type SendgridConfig struct {
	APIKey                      string `envconfig:"STOREFRONT_SENDGRID_API_KEY"`
	DefaultFrom                 string `envconfig:"STOREFRONT_SENDGRID_FROM_EMAIL"`
	FromName                    string `envconfig:"STOREFRONT_SENDGRID_FROM_NAME" default:"Tienda"`
	OrderConfirmationTemplateID string `envconfig:"STOREFRONT_SENDGRID_ORDER_TEMPLATE_ID"`
}

// Enabled reports whether the mailer can send order confirmations.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type MaintenanceConfig struct {
	Interval            time.Duration `envconfig:"STOREFRONT_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"STOREFRONT_MAINTENANCE_LOCK_TTL" default:"55m"`
	OutboxRetentionDays int           `envconfig:"STOREFRONT_MAINTENANCE_OUTBOX_RETENTION_DAYS" default:"30"`
	ReconcileBatchSize  int           `envconfig:"STOREFRONT_MAINTENANCE_RECONCILE_BATCH_SIZE" default:"200"`
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
