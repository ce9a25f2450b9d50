package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read on startup when present.
const DefaultEnvFile = ".env.local"

type Config struct {
	AppPort  string `validate:"required,numeric"`
	GinMode  string `validate:"oneof=debug release test"`
	LogLevel string `validate:"oneof=debug info warn error"`

	SessionStore           string        `validate:"oneof=memory redis"`
	SessionTTL             time.Duration `validate:"gt=0"`
	SessionIdleTimeout     time.Duration `validate:"gte=0"`
	SessionCleanupInterval time.Duration `validate:"gt=0"`
	CookieSecure           bool

	RedisAddr     string `validate:"required_if=SessionStore redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	DatabaseDSN string

	LoginUserID string `validate:"required,min=3,max=20"`
	LoginSecret string `validate:"required,min=4,max=20"`

	LoginRatePerMinute int `validate:"gte=0"`
	LoginBurst         int `validate:"gte=1"`

	// TrustedProxies lists the proxies whose X-Forwarded-For is honoured
	// when resolving the client IP. Empty means the peer address is used.
	TrustedProxies []string `validate:"dive,ip|cidr"`
}

// Load reads configuration from the environment after loading envFile
// (DefaultEnvFile when empty). A missing env file is not an error.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		_ = godotenv.Load(DefaultEnvFile)
	} else if err := godotenv.Load(envFile); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	var env envReader

	cfg := Config{
		AppPort:  getEnv("APP_PORT", "5000"),
		GinMode:  getEnv("GIN_MODE", "release"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		SessionStore:           getEnv("SESSION_STORE", "memory"),
		SessionTTL:             env.duration("SESSION_TTL", 24*time.Hour),
		SessionIdleTimeout:     env.duration("SESSION_IDLE_TIMEOUT", 0),
		SessionCleanupInterval: env.duration("SESSION_CLEANUP_INTERVAL", time.Minute),
		CookieSecure:           env.bool("COOKIE_SECURE", true),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       env.int("REDIS_DB", 0),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		LoginUserID: getEnv("LOGIN_USER_ID", "scott"),
		LoginSecret: getEnv("LOGIN_SECRET", "tiger"),

		LoginRatePerMinute: env.int("LOGIN_RATE_PER_MINUTE", 10),
		LoginBurst:         env.int("LOGIN_BURST", 5),

		TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
	}

	if err := env.err(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and reports every failing field.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, formatSingleValidationError(e))
	}
	return errors.New("config: " + strings.Join(messages, "; "))
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s is out of range", field)
	case "ip|cidr":
		return fmt.Sprintf("%s must be an IP address or CIDR", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, e.Tag())
	}
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envReader parses typed variables. Unset variables take the default;
// set but malformed ones are collected and reported by err.
type envReader struct {
	errs []error
}

func (e *envReader) int(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, raw, "an integer")
		return defaultValue
	}
	return value
}

func (e *envReader) bool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail(key, raw, "a boolean")
		return defaultValue
	}
	return value
}

func (e *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, raw, "a duration like 30m or 24h")
		return defaultValue
	}
	return value
}

func (e *envReader) fail(key, raw, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not %s", key, raw, want))
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		msgs = append(msgs, err.Error())
	}
	return errors.New("config: " + strings.Join(msgs, "; "))
}
