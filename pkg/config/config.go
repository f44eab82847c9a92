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
	Broker       BrokerConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Orders       OrdersConfig
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
	if err := cfg.Broker.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"POS_APP_ENV" required:"true"`
	Port         string   `envconfig:"POS_APP_PORT" default:"8080"`
	MetricsPort  string   `envconfig:"POS_METRICS_PORT"`
	CORSOrigins  []string `envconfig:"POS_CORS_ORIGINS" default:"*"`
	LogLevel     string   `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"POS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"POS_DB_DSN"`
	Driver string `envconfig:"POS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"POS_DB_HOST"`
	Port     int    `envconfig:"POS_DB_PORT" default:"5432"`
	User     string `envconfig:"POS_DB_USER"`
	Password string `envconfig:"POS_DB_PASSWORD"`
	Name     string `envconfig:"POS_DB_NAME"`
	SSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"POS_JWT_ISSUER" default:"pos-app"`
	ExpirationMinutes int    `envconfig:"POS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"POS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL      time.Duration `envconfig:"POS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	MaxDeliveryAttempts int           `envconfig:"POS_EVENTING_MAX_DELIVERY_ATTEMPTS" default:"5"`
	RetryBaseDelay      time.Duration `envconfig:"POS_EVENTING_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay       time.Duration `envconfig:"POS_EVENTING_RETRY_MAX_DELAY" default:"10s"`
	ProcessedRetention  time.Duration `envconfig:"POS_EVENTING_PROCESSED_RETENTION" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"POS_GCP_PROJECT_ID"`
}

// PubSubConfig maps broker exchanges onto Pub/Sub topics.
type PubSubConfig struct {
	OrdersTopic          string `envconfig:"POS_PUBSUB_ORDERS_TOPIC" default:"order"`
	AuthTopic            string `envconfig:"POS_PUBSUB_AUTH_TOPIC" default:"auth"`
	PaymentsTopic        string `envconfig:"POS_PUBSUB_PAYMENTS_TOPIC" default:"payment"`
	PaymentsSubscription string `envconfig:"POS_PUBSUB_PAYMENTS_SUBSCRIPTION" default:"order-service.payment"`
}

type BrokerConfig struct {
	Driver string `envconfig:"POS_BROKER_DRIVER" default:"pubsub"`
}

func (b BrokerConfig) UsesKafka() bool {
	return strings.EqualFold(b.Driver, BrokerDriverKafka)
}

func (b BrokerConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(b.Driver)) {
	case BrokerDriverPubSub, BrokerDriverKafka:
		return nil
	default:
		return fmt.Errorf("unsupported broker driver %q", b.Driver)
	}
}

type KafkaConfig struct {
	Brokers []string `envconfig:"POS_KAFKA_BROKERS" default:"localhost:9092"`
	GroupID string   `envconfig:"POS_KAFKA_GROUP_ID" default:"order-service"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	TxMaxRetries   int `envconfig:"POS_OUTBOX_TX_MAX_RETRIES" default:"3"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"POS_CRON_INTERVAL" default:"1m"`
	LockTTL             time.Duration `envconfig:"POS_CRON_LOCK_TTL" default:"5m"`
	OutboxRetentionDays int           `envconfig:"POS_CRON_OUTBOX_RETENTION_DAYS" default:"0"` // 0 keeps rows forever
	BacklogWarnAfter    time.Duration `envconfig:"POS_CRON_BACKLOG_WARN_AFTER" default:"5m"`
}

type OrdersConfig struct {
	IdempotencyWindow time.Duration `envconfig:"POS_ORDERS_IDEMPOTENCY_WINDOW" default:"10m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
