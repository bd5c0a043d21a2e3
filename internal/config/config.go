package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServiceConfig holds all configuration for the booking service. Every field
// is backed by a BOOKING_-prefixed environment variable with a sensible
// development default.
type ServiceConfig struct {
	Port   string
	AppEnv string

	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Jobs     JobsConfig
	Training TrainingConfig

	// PublishQueueSize bounds the outbound event queue; enqueues beyond it
	// are dropped with a logged warning rather than blocking a request.
	PublishQueueSize int
}

// MongoConfig configures the operational (document) store connection.
type MongoConfig struct {
	URI      string
	Database string
}

// PostgresConfig configures the analytics (relational) store connection.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the GORM/pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig configures the lock-service connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig configures the event bus.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// JobsConfig configures the scheduled jobs. Timezone is the fixed reference
// timezone that defines the daily reconciliation window, independent of the
// host clock's zone.
type JobsConfig struct {
	Timezone      string
	AnalyticsSpec string
	TrainingSpec  string
	// GuardTTL is the lease length scheduled jobs hold so concurrent service
	// instances do not run the same job twice. The lease is refreshed while a
	// job runs, so GuardTTL only bounds how long a crashed holder blocks.
	GuardTTL time.Duration
	// RunTimeout bounds a single job run. It must cover the longest job,
	// which is a training run plus its data pull.
	RunTimeout time.Duration
}

// TrainingConfig configures the model-training gate.
type TrainingConfig struct {
	Command            string
	Args               []string
	WorkDir            string
	Timeout            time.Duration
	ScheduledThreshold int64
	ManualThreshold    int64
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", ":8001")
	v.SetDefault("app_env", "development")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "booking")

	v.SetDefault("pg.host", "localhost")
	v.SetDefault("pg.port", "5432")
	v.SetDefault("pg.user", "postgres")
	v.SetDefault("pg.password", "postgres")
	v.SetDefault("pg.dbname", "analytics")
	v.SetDefault("pg.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.group_prefix", "stayloft.")

	v.SetDefault("jobs.timezone", "Asia/Ho_Chi_Minh")
	// Ten seconds past midnight: the reconciliation window is derived from
	// the window boundary, so the extra seconds never shift the target day.
	v.SetDefault("jobs.analytics_spec", "10 0 * * *")
	v.SetDefault("jobs.training_spec", "0 2 * * *")
	v.SetDefault("jobs.guard_ttl", "5m")
	v.SetDefault("jobs.run_timeout", "15m")

	v.SetDefault("training.command", "python")
	v.SetDefault("training.args", "train_real.py")
	v.SetDefault("training.workdir", ".")
	v.SetDefault("training.timeout", "10m")
	v.SetDefault("training.scheduled_threshold", 50)
	v.SetDefault("training.manual_threshold", 10)

	v.SetDefault("publish_queue_size", 256)

	guardTTL, err := time.ParseDuration(v.GetString("jobs.guard_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid jobs.guard_ttl: %w", err)
	}
	runTimeout, err := time.ParseDuration(v.GetString("jobs.run_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid jobs.run_timeout: %w", err)
	}
	trainingTimeout, err := time.ParseDuration(v.GetString("training.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid training.timeout: %w", err)
	}

	return &ServiceConfig{
		Port:   v.GetString("port"),
		AppEnv: v.GetString("app_env"),
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		},
		Postgres: PostgresConfig{
			Host:     v.GetString("pg.host"),
			Port:     v.GetString("pg.port"),
			User:     v.GetString("pg.user"),
			Password: v.GetString("pg.password"),
			DBName:   v.GetString("pg.dbname"),
			SSLMode:  v.GetString("pg.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(v.GetString("kafka.brokers"), ","),
			GroupPrefix: v.GetString("kafka.group_prefix"),
		},
		Jobs: JobsConfig{
			Timezone:      v.GetString("jobs.timezone"),
			AnalyticsSpec: v.GetString("jobs.analytics_spec"),
			TrainingSpec:  v.GetString("jobs.training_spec"),
			GuardTTL:      guardTTL,
			RunTimeout:    runTimeout,
		},
		Training: TrainingConfig{
			Command:            v.GetString("training.command"),
			Args:               strings.Fields(v.GetString("training.args")),
			WorkDir:            v.GetString("training.workdir"),
			Timeout:            trainingTimeout,
			ScheduledThreshold: v.GetInt64("training.scheduled_threshold"),
			ManualThreshold:    v.GetInt64("training.manual_threshold"),
		},
		PublishQueueSize: v.GetInt("publish_queue_size"),
	}, nil
}
