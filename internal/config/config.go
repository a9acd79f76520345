package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/michaelbrown/gauntlet/internal/dispatch"
)

// Public Piston instance, used when no engine is configured.
const (
	DefaultRuntimesURL = "https://emkc.org/api/v2/piston/runtimes"
	DefaultExecuteURL  = "https://emkc.org/api/v2/piston/execute"
)

type EngineConfig struct {
	RuntimesURL string        `mapstructure:"runtimes_url"`
	ExecuteURL  string        `mapstructure:"execute_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ProfileConfig names a preset; any other field set here overrides it.
type ProfileConfig struct {
	Name            string  `mapstructure:"name"`
	InputMode       string  `mapstructure:"input_mode"`
	TimeLimitMode   string  `mapstructure:"time_limit_mode"`
	CompileStage    *bool   `mapstructure:"compile_stage"`
	AllowRunTimeout *bool   `mapstructure:"allow_run_timeout"`
	FileName        *string `mapstructure:"file_name"`
}

type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	Backend       string        `mapstructure:"backend"` // memory or redis
	RedisURL      string        `mapstructure:"redis_url"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type ServerConfig struct {
	Port      int     `mapstructure:"port"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second per client IP; 0 disables
	RateBurst int     `mapstructure:"rate_burst"`
	// LimiterIdle is how long an idle client's bucket is kept; swept on cache.sweep_schedule.
	LimiterIdle time.Duration `mapstructure:"limiter_idle"`
	// TrustProxy reads the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"` // empty disables publishing
	Subject string `mapstructure:"subject"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Profile ProfileConfig `mapstructure:"profile"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
}

// Load reads gauntlet.yaml from path, or from . and $HOME/.gauntlet when path
// is empty. A missing default file is not an error. Values from .env and
// GAUNTLET_* variables override the file; EXECUTE_API and RUNTIMES_API set
// the engine endpoints.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gauntlet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.gauntlet")
	}

	v.SetDefault("engine.runtimes_url", DefaultRuntimesURL)
	v.SetDefault("engine.execute_url", DefaultExecuteURL)
	v.SetDefault("engine.timeout", 60*time.Second)
	v.SetDefault("profile.name", "default")
	v.SetDefault("cache.ttl", 60*time.Second)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.sweep_schedule", "@every 5m")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.limiter_idle", 10*time.Minute)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".gauntlet", "gauntlet.db"))
	v.SetDefault("events.subject", "gauntlet.runs")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("GAUNTLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"profile.input_mode", "profile.time_limit_mode", "profile.compile_stage",
		"profile.allow_run_timeout", "profile.file_name", "cache.redis_url", "events.nats_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	if err := v.BindEnv("engine.execute_url", "GAUNTLET_ENGINE_EXECUTE_URL", "EXECUTE_API"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("engine.runtimes_url", "GAUNTLET_ENGINE_RUNTIMES_URL", "RUNTIMES_API"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration is usable before anything is started.
func (c *Config) Validate() error {
	if c.Engine.RuntimesURL == "" || c.Engine.ExecuteURL == "" {
		return errors.New("engine.runtimes_url and engine.execute_url are required")
	}
	if _, err := c.DispatchProfile(); err != nil {
		return err
	}
	if c.Cache.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Cache.SweepSchedule); err != nil {
			return fmt.Errorf("cache.sweep_schedule: %w", err)
		}
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	return nil
}

// DispatchProfile resolves the named preset and applies field overrides.
func (c *Config) DispatchProfile() (dispatch.Profile, error) {
	name := c.Profile.Name
	if name == "" {
		name = "default"
	}
	p, err := dispatch.LookupProfile(name)
	if err != nil {
		return dispatch.Profile{}, err
	}

	if c.Profile.InputMode != "" {
		p.InputMode = dispatch.InputMode(c.Profile.InputMode)
	}
	if c.Profile.TimeLimitMode != "" {
		p.TimeLimitMode = dispatch.TimeLimitMode(c.Profile.TimeLimitMode)
	}
	if c.Profile.CompileStage != nil {
		p.CompileStage = *c.Profile.CompileStage
	}
	if c.Profile.AllowRunTimeout != nil {
		p.AllowRunTimeout = *c.Profile.AllowRunTimeout
	}
	if c.Profile.FileName != nil {
		p.FileName = *c.Profile.FileName
	}

	if err := p.Validate(); err != nil {
		return dispatch.Profile{}, err
	}
	return p, nil
}

// Logger builds the process logger from the log section.
func (c *Config) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || c.Log.Level == "" {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if c.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
