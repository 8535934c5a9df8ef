package config

const (
	EnvPrefix = "JOVA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv    = "JOVA_APP_ENV"
	EnvPort      = "JOVA_APP_PORT"
	EnvDBDSN     = "JOVA_DB_DSN"
	EnvDBHost    = "JOVA_DB_HOST"
	EnvDBUser    = "JOVA_DB_USER"
	EnvDBName    = "JOVA_DB_NAME"
	EnvDBPass    = "JOVA_DB_PASSWORD"
	EnvRedisAddr = "JOVA_REDIS_ADDR"
	EnvJWTSecret = "JOVA_JWT_SECRET"
	EnvUseSQLite = "JOVA_USE_SQLITE"

	EnvStripeCurrency = "JOVA_STRIPE_CURRENCY"
	EnvKafkaBrokers   = "JOVA_KAFKA_BROKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
