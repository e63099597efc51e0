package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultAPIURL is the public Probely API.
const DefaultAPIURL = "https://api.probely.com"

type Config struct {
	APIURL   string       `envconfig:"PROBELY_API_URL" default:"https://api.probely.com" validate:"required,url"`
	APIToken SecretString `envconfig:"PROBELY_API_TOKEN"`

	// PageSize is the "length" requested per page when listing targets and schedules.
	PageSize int `envconfig:"PROBELY_PAGE_SIZE" default:"100" validate:"min=1,max=10000"`

	ListTimeout   time.Duration `envconfig:"PROBELY_LIST_TIMEOUT" default:"30s" validate:"gt=0"`
	MutateTimeout time.Duration `envconfig:"PROBELY_MUTATE_TIMEOUT" default:"10s" validate:"gt=0"`

	// MaxRetries applies to 429 and 5xx responses only.
	MaxRetries int `envconfig:"PROBELY_MAX_RETRIES" default:"2" validate:"min=0,max=10"`

	// RateLimit is the number of requests per second shared by every call of a run.
	RateLimit float64 `envconfig:"PROBELY_RATE_LIMIT" default:"5" validate:"gt=0"`

	// Concurrency caps in-flight PUT/POST calls. 1 keeps the run strictly sequential.
	Concurrency int `envconfig:"PROBELY_CONCURRENCY" default:"1" validate:"min=1,max=32"`

	Stagger    time.Duration `envconfig:"PROBELY_STAGGER" default:"2m" validate:"gt=0"`
	Recurrence string        `envconfig:"PROBELY_RECURRENCE" default:"d" validate:"oneof=h d w m q"`

	// StartTimezone decides which calendar "tomorrow" belongs to.
	StartTimezone string `envconfig:"PROBELY_START_TZ" default:"UTC" validate:"required,timezone"`

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	// PushgatewayURL enables pushing run metrics when set.
	PushgatewayURL string `envconfig:"PROBELY_PUSHGATEWAY_URL" validate:"omitempty,url"`
}

// ConfigError wraps a failure to read or validate the environment.
type ConfigError struct {
	Stage string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; it never overrides variables that are already set.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, &ConfigError{Stage: "parse", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints. Call it again after applying flag overrides.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigError{Stage: "validate", Err: err}
	}
	return nil
}

// Location returns the timezone used to compute the first start time.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.StartTimezone)
	if err != nil {
		return nil, &ConfigError{Stage: "validate", Err: err}
	}
	return loc, nil
}
