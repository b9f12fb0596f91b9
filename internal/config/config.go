package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/rental-billing/pkg/logger"
	"github.com/pkg/errors"
)

var config *Config

// Config holds every setting of the billing binaries. Only this struct may be
// used to read configuration; no direct access to env or files elsewhere.
type Config struct {
	AppEnv              string `env:"APP_ENV"`
	AppName             string `env:"APP_NAME"`
	AppDebug            bool   `env:"APP_DEBUG"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr     string `env:"HTTP_LISTEN_ADDR"`
	HttpBaseRequestUrl string `env:"HTTP_BASE_REQUEST_URI"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	// Redis is optional. Without REDIS_ADDR the event stream and the
	// idempotency guard are off.
	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	LogLevel string `env:"LOG_LEVEL"`

	// BillingTimezone is the IANA zone whose calendar decides "today".
	BillingTimezone string `env:"BILLING_TIMEZONE"`

	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL"`
	IdempotencyLockTTL time.Duration `env:"IDEMPOTENCY_LOCK_TTL"`

	EventsStream       string `env:"EVENTS_STREAM"`
	EventsStreamMaxLen int64  `env:"EVENTS_STREAM_MAX_LEN"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	c.applyDefaults()
	if _, err = c.Location(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) applyDefaults() {
	if c.AppEnv == "" {
		c.AppEnv = "dev"
	}
	if c.AppName == "" {
		c.AppName = "rental_billing"
	}
	if c.HttpListenAddr == "" {
		c.HttpListenAddr = ":8080"
	}
	if c.HttpBaseRequestUrl == "" {
		c.HttpBaseRequestUrl = "/api/v1"
	}
	if c.AppDebugMetricsURI == "" {
		c.AppDebugMetricsURI = "/metrics"
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 24 * time.Hour
	}
	if c.IdempotencyLockTTL <= 0 {
		c.IdempotencyLockTTL = 30 * time.Second
	}
	if c.EventsStream == "" {
		c.EventsStream = "billing:events"
	}
	if c.EventsStreamMaxLen <= 0 {
		c.EventsStreamMaxLen = 100_000
	}
}

// Location resolves BillingTimezone, falling back to the process zone.
func (c *Config) Location() (*time.Location, error) {
	if c.BillingTimezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.BillingTimezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid BILLING_TIMEZONE %q", c.BillingTimezone)
	}
	return loc, nil
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
