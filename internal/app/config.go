package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application. It is read once at
// start and never mutated.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	Locale    string `envconfig:"LOCALE" default:"en"`

	// PGDSN is optional. Without it logins use the in-memory demo directory.
	PGDSN      string `envconfig:"PG_DSN"`
	PGMaxConns int32  `envconfig:"PG_MAX_CONNS" default:"4"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"insights_session"`
	SessionFile   string        `envconfig:"SESSION_FILE" default:".alfozan_session.json"`

	BackendURL           string        `envconfig:"BACKEND_URL" default:"http://localhost:5000/api"`
	BackendTimeout       time.Duration `envconfig:"BACKEND_TIMEOUT" default:"5s"`
	BackendProbeInterval time.Duration `envconfig:"BACKEND_PROBE_INTERVAL" default:"30s"`
	BackendProbePath     string        `envconfig:"BACKEND_PROBE_PATH" default:"/projects"`
	// BackendProbeInline runs the connectivity monitor inside the web process.
	// When false the worker probes and publishes the status through redis.
	BackendProbeInline bool   `envconfig:"BACKEND_PROBE_INLINE" default:"true"`
	RemoteLoginPath    string `envconfig:"REMOTE_LOGIN_PATH" default:"/auth/login"`

	MockDelay    time.Duration `envconfig:"MOCK_DELAY" default:"100ms"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	DemoPassword string        `envconfig:"DEMO_PASSWORD"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.PGDSN == "" && cfg.DemoPassword == "" {
		return nil, errors.New("either PG_DSN or DEMO_PASSWORD must be provided")
	}
	if cfg.BackendProbeInterval <= 0 {
		return nil, errors.New("backend probe interval must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
