package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every configuration value of the engine. Only this struct is
// used to read configuration; nothing else reads the environment directly.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=outreach_engine"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR,default=:9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr string `env:"HTTP_LISTEN_ADDR,default=:8080"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=outreach:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=outreach"`

	DispatchBatchSize             int           `env:"DISPATCH_BATCH_SIZE,default=20" validate:"gt=0"`
	DispatchPacingMin             time.Duration `env:"DISPATCH_PACING_MIN,default=30s"`
	DispatchPacingMax             time.Duration `env:"DISPATCH_PACING_MAX,default=90s" validate:"gtefield=DispatchPacingMin"`
	DispatchIdleInterval          time.Duration `env:"DISPATCH_IDLE_INTERVAL,default=60s" validate:"gt=0"`
	DispatchErrorBackoff          time.Duration `env:"DISPATCH_ERROR_BACKOFF,default=30s" validate:"gt=0"`
	DispatchMaxTransientFailures  int           `env:"DISPATCH_MAX_TRANSIENT_FAILURES,default=5" validate:"gt=0"`
	DispatchLeadLockTTL           time.Duration `env:"DISPATCH_LEAD_LOCK_TTL,default=5m" validate:"gt=0"`
	DispatchSendTimeout           time.Duration `env:"DISPATCH_SEND_TIMEOUT,default=60s" validate:"gt=0"`
	DispatchFailureCounterTTL     time.Duration `env:"DISPATCH_FAILURE_COUNTER_TTL,default=168h"`
	DispatchMetricsReportInterval time.Duration `env:"DISPATCH_METRICS_REPORT_INTERVAL,default=30s"`
	DispatchMaxScanPages          int           `env:"DISPATCH_MAX_SCAN_PAGES,default=5" validate:"gt=0"`

	WarmupEnabled          bool          `env:"WARMUP_ENABLED,default=true"`
	WarmupInterval         time.Duration `env:"WARMUP_INTERVAL,default=1h" validate:"gt=0"`
	WarmupMaxPerCycle      int           `env:"WARMUP_MAX_PER_CYCLE,default=3" validate:"gt=0"`
	WarmupPacingMin        time.Duration `env:"WARMUP_PACING_MIN,default=10s"`
	WarmupPacingMax        time.Duration `env:"WARMUP_PACING_MAX,default=30s" validate:"gtefield=WarmupPacingMin"`
	WarmupReplyProbability float64       `env:"WARMUP_REPLY_PROBABILITY,default=0.5" validate:"gte=0,lte=1"`

	UnsubscribeSecret string        `env:"UNSUBSCRIBE_SECRET" validate:"required,min=16"`
	UnsubscribeTTL    time.Duration `env:"UNSUBSCRIBE_TTL,default=2160h" validate:"gt=0"`
	FrontendURL       string        `env:"FRONTEND_URL,default=http://localhost:3000" validate:"url"`

	MailRelayPrimaryUrl   string        `env:"MAIL_RELAY_PRIMARY_URL" validate:"required,url"`
	MailRelaySecondaryUrl string        `env:"MAIL_RELAY_SECONDARY_URL" validate:"omitempty,url"`
	MailRelayTimeout      time.Duration `env:"MAIL_RELAY_TIMEOUT,default=30s" validate:"gt=0"`

	EventsStream        string `env:"EVENTS_STREAM,default=events"`
	EventsConsumerGroup string `env:"EVENTS_CONSUMER_GROUP,default=stats-projector"`
	EventsConsumerName  string `env:"EVENTS_CONSUMER_NAME,default=projector-1"`
	EventsMaxLen        int64  `env:"EVENTS_MAX_LEN,default=100000"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if err = validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

// Set replaces the loaded configuration. Used by tests and embedded callers.
func Set(c *Config) {
	config = c
}
