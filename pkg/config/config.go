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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Kafka        KafkaConfig
	Stripe       StripeConfig
	Sendgrid     SendgridConfig
	Storefront   StorefrontConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"JOVA_APP_ENV" required:"true"`
	Port         string `envconfig:"JOVA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"JOVA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"JOVA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind        string `envconfig:"JOVA_SERVICE_KIND" default:"api"`
	MetricsPort string `envconfig:"JOVA_METRICS_PORT" default:"9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"JOVA_DB_DSN"`
	Driver string `envconfig:"JOVA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"JOVA_DB_HOST"`
	LegacyPort     int    `envconfig:"JOVA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"JOVA_DB_USER"`
	LegacyPassword string `envconfig:"JOVA_DB_PASSWORD"`
	LegacyName     string `envconfig:"JOVA_DB_NAME"`
	LegacySSLMode  string `envconfig:"JOVA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"JOVA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"JOVA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"JOVA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JOVA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"JOVA_REDIS_URL"`
	Address      string        `envconfig:"JOVA_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"JOVA_REDIS_PASSWORD"`
	DB           int           `envconfig:"JOVA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JOVA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JOVA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JOVA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JOVA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JOVA_REDIS_WRITE_TIMEOUT" default:"5s"`
	CartCountTTL time.Duration `envconfig:"JOVA_REDIS_CART_COUNT_TTL" default:"24h"`
}

type JWTConfig struct {
	Secret            string `envconfig:"JOVA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"JOVA_JWT_ISSUER" default:"electronicjova"`
	ExpirationMinutes int    `envconfig:"JOVA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"JOVA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"JOVA_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL  time.Duration `envconfig:"JOVA_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
	ConsumerIdempotencyTTL time.Duration `envconfig:"JOVA_EVENTING_CONSUMER_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"JOVA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"JOVA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"JOVA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic           string `envconfig:"JOVA_PUBSUB_ORDERS_TOPIC" default:"jova-order-events"`
	AnalyticsSubscription string `envconfig:"JOVA_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"jova-order-events-analytics"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"JOVA_BIGQUERY_DATASET" default:"storefront"`
	OrderEventsTable string `envconfig:"JOVA_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

// KafkaConfig enables the optional Kafka mirror of the outbox stream.
type KafkaConfig struct {
	Brokers      []string      `envconfig:"JOVA_KAFKA_BROKERS"`
	OrdersTopic  string        `envconfig:"JOVA_KAFKA_ORDERS_TOPIC" default:"order-events"`
	BatchTimeout time.Duration `envconfig:"JOVA_KAFKA_BATCH_TIMEOUT" default:"50ms"`
	MaxAttempts  int           `envconfig:"JOVA_KAFKA_MAX_ATTEMPTS" default:"3"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"JOVA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"JOVA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"JOVA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives the maintenance sweeper.
type CronConfig struct {
	Interval        time.Duration `envconfig:"JOVA_CRON_INTERVAL" default:"1h"`
	PendingOrderTTL time.Duration `envconfig:"JOVA_CRON_PENDING_ORDER_TTL" default:"48h"`
	OutboxRetention time.Duration `envconfig:"JOVA_CRON_OUTBOX_RETENTION" default:"720h"`
	LockTTL         time.Duration `envconfig:"JOVA_CRON_LOCK_TTL" default:"30m"`
}

type StripeConfig struct {
	APIKey   string        `envconfig:"JOVA_STRIPE_API_KEY"`
	Secret   string        `envconfig:"JOVA_STRIPE_SECRET"`
	Env      string        `envconfig:"JOVA_STRIPE_ENV" default:"test"`
	Currency string        `envconfig:"JOVA_STRIPE_CURRENCY" default:"mxn"`
	Timeout  time.Duration `envconfig:"JOVA_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"JOVA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"JOVA_SENDGRID_FROM_EMAIL" default:"pedidos@electronicjova.com"`
	FromName    string `envconfig:"JOVA_SENDGRID_FROM_NAME" default:"ElectronicJova"`
}

type StorefrontConfig struct {
	BaseURL string `envconfig:"JOVA_STOREFRONT_BASE_URL" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = "file:storefront.db?cache=shared"
		}
		return nil
	}
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
