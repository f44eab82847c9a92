package config

const (
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	BrokerDriverPubSub = "pubsub"
	BrokerDriverKafka  = "kafka"

	defaultSQLiteDSN = "file:pos.db?cache=shared&_busy_timeout=5000"
)

const (
	EnvAppEnv     = "POS_APP_ENV"
	EnvPort       = "POS_APP_PORT"
	EnvLogLevel   = "POS_LOG_LEVEL"
	EnvDBDSN      = "POS_DB_DSN"
	EnvDBHost     = "POS_DB_HOST"
	EnvDBUser     = "POS_DB_USER"
	EnvDBName     = "POS_DB_NAME"
	EnvUseSQLite  = "POS_USE_SQLITE"
	EnvRedisURL   = "POS_REDIS_URL"
	EnvJWTSecret  = "POS_JWT_SECRET"
	EnvJWTIssuer  = "POS_JWT_ISSUER"
	EnvGCPProject = "POS_GCP_PROJECT_ID"
	EnvBroker     = "POS_BROKER_DRIVER"
	EnvKafka      = "POS_KAFKA_BROKERS"
	EnvOrdersWin  = "POS_ORDERS_IDEMPOTENCY_WINDOW"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
