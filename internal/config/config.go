package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds application configuration loaded from environment variables.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // /healthz and /dispatch
	RunMode  string `envconfig:"RUN_MODE" default:"loop"`   // loop|once

	StoreDriver        string        `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite|postgres|mongo|redis|badger|memory
	DBPath             string        `envconfig:"DB_PATH" default:"./data/quiet_hours.db"`
	PostgresURL        string        `envconfig:"PG_CONN_URL"`
	PostgresMaxConns   int32         `envconfig:"PG_MAX_OPEN_CONNS" default:"10"`
	MongoURL           string        `envconfig:"MONGODB_URL"`
	MongoDatabase      string        `envconfig:"MONGODB_DATABASE" default:"quiet_hours_db"`
	RedisURL           string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	RedisPrefix        string        `envconfig:"REDIS_PREFIX" default:"quiet_hours"`
	BadgerDir          string        `envconfig:"BADGER_DIR" default:"./data/badger"`
	StoreRetryAttempts int           `envconfig:"STORE_RETRY_ATTEMPTS" default:"3"`
	StoreRetryInterval time.Duration `envconfig:"STORE_RETRY_INTERVAL" default:"5s"`

	Notifier             string `envconfig:"NOTIFIER" default:"file"` // file|postmark|telegram
	OutboxDir            string `envconfig:"OUTBOX_DIR" default:"./data/outbox"`
	PostmarkServerToken  string `envconfig:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `envconfig:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `envconfig:"SENDER_EMAIL"`
	SupportEmail         string `envconfig:"SUPPORT_EMAIL"`
	BotToken             string `envconfig:"BOT_TOKEN"`
	DisplayTZ            string `envconfig:"DISPLAY_TZ" default:"Asia/Kolkata"`

	ReminderLead        time.Duration `envconfig:"REMINDER_LEAD" default:"10m"`
	ReminderEarly       time.Duration `envconfig:"REMINDER_EARLY" default:"1m"` // tolerance below lead
	ReminderLate        time.Duration `envconfig:"REMINDER_LATE" default:"1m"`  // tolerance above lead
	DispatchPeriod      time.Duration `envconfig:"DISPATCH_PERIOD" default:"1m"`
	DispatchSchedule    string        `envconfig:"DISPATCH_SCHEDULE"` // cron spec; defaults to "@every <period>"
	DispatchConcurrency int           `envconfig:"DISPATCH_CONCURRENCY" default:"4"`
}

// Load reads an optional .env file, then environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Window returns the reminder window described by the lead and tolerances.
func (c Config) Window() domain.Window {
	return domain.Window{Lead: c.ReminderLead, Early: c.ReminderEarly, Late: c.ReminderLate}
}

// Schedule returns the cron spec driving the dispatch loop.
func (c Config) Schedule() string {
	if c.DispatchSchedule != "" {
		return c.DispatchSchedule
	}
	return "@every " + c.DispatchPeriod.String()
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	if err := c.Window().Validate(); err != nil {
		return err
	}
	if c.DispatchPeriod <= 0 {
		return fmt.Errorf("%w: DISPATCH_PERIOD must be positive", ErrInvalidConfig)
	}
	if !c.Window().Covers(c.DispatchPeriod) {
		return fmt.Errorf("%w: window %s must be wider than DISPATCH_PERIOD %s; blocks could be missed",
			ErrInvalidConfig, c.Window(), c.DispatchPeriod)
	}
	if c.DispatchConcurrency <= 0 {
		return fmt.Errorf("%w: DISPATCH_CONCURRENCY must be positive", ErrInvalidConfig)
	}
	if _, err := domain.ValidateTZ(c.DisplayTZ); err != nil {
		return fmt.Errorf("%w: DISPLAY_TZ: %v", ErrInvalidConfig, err)
	}
	switch c.RunMode {
	case "loop", "once":
	default:
		return fmt.Errorf("%w: RUN_MODE must be loop or once, got %q", ErrInvalidConfig, c.RunMode)
	}
	return nil
}
