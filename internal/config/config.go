package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Matcher  MatcherConfig  `yaml:"matcher" toml:"matcher"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Sensor   SensorConfig   `yaml:"sensor" toml:"sensor"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Web      WebConfig      `yaml:"web" toml:"web"`
}

// MatcherConfig drives the capture/search loop.
type MatcherConfig struct {
	Threshold     float64  `yaml:"threshold" toml:"threshold"`           // minimum similarity for a match, in (0, 1]
	ChunkSize     int      `yaml:"chunk_size" toml:"chunk_size"`         // enrolled identities per worker task
	Workers       int      `yaml:"workers" toml:"workers"`               // concurrent chunk comparisons
	MaxAttempts   int      `yaml:"max_attempts" toml:"max_attempts"`     // capture/search attempts before giving up
	RetryDelay    Duration `yaml:"retry_delay" toml:"retry_delay"`       // pause between attempts
	SearchTimeout Duration `yaml:"search_timeout" toml:"search_timeout"` // max wait for all chunks of one attempt
	CacheTTL      Duration `yaml:"cache_ttl" toml:"cache_ttl"`           // lifetime of cached comparison results
}

type CacheConfig struct {
	Backend       string `yaml:"backend" toml:"backend"` // memory, redis, badger or none
	KeyPrefix     string `yaml:"key_prefix" toml:"key_prefix"`
	RedisURL      string `yaml:"redis_url" toml:"redis_url"`
	RedisPoolSize int    `yaml:"redis_pool_size" toml:"redis_pool_size"`
	BadgerPath    string `yaml:"badger_path" toml:"badger_path"` // empty runs badger in memory
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver" toml:"driver"` // postgres, mariadb or sqlite
	URL          string `yaml:"url" toml:"url"`       // DSN, or file path for sqlite
	MaxOpenConns int    `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" toml:"max_idle_conns"`
}

type SensorConfig struct {
	Mode           string   `yaml:"mode" toml:"mode"` // spool or bridge
	SpoolDir       string   `yaml:"spool_dir" toml:"spool_dir"`
	LockPath       string   `yaml:"lock_path" toml:"lock_path"`
	PollInterval   Duration `yaml:"poll_interval" toml:"poll_interval"`
	CaptureTimeout Duration `yaml:"capture_timeout" toml:"capture_timeout"`
	BridgeURL      string   `yaml:"bridge_url" toml:"bridge_url"`
	BridgeToken    string   `yaml:"bridge_token" toml:"bridge_token"`
	NativeCompare  bool     `yaml:"native_compare" toml:"native_compare"` // compare on the sensor instead of in-process
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // console or json
}

type WebConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// Duration wraps time.Duration so it can be written as "2s" in YAML and TOML files.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration embedded in defaults.yaml.
func Default() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

// Load builds the configuration from embedded defaults, an optional TOML file
// and environment variables, in increasing order of precedence. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile overlays a TOML file on top of cfg. A missing file is not an error.
func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides config values with environment variables that are set.
// Values that do not parse are collected and returned, each wrapping ErrInvalidConfig.
func applyEnv(cfg *Config) error {
	var env envReader

	cfg.Matcher.Threshold = env.floatVar("MATCH_THRESHOLD", cfg.Matcher.Threshold)
	cfg.Matcher.ChunkSize = env.intVar("MATCH_CHUNK_SIZE", cfg.Matcher.ChunkSize)
	cfg.Matcher.Workers = env.intVar("MATCH_WORKERS", cfg.Matcher.Workers)
	cfg.Matcher.MaxAttempts = env.intVar("MATCH_MAX_ATTEMPTS", cfg.Matcher.MaxAttempts)
	cfg.Matcher.RetryDelay = env.durationVar("MATCH_RETRY_DELAY", cfg.Matcher.RetryDelay)
	cfg.Matcher.SearchTimeout = env.durationVar("MATCH_SEARCH_TIMEOUT", cfg.Matcher.SearchTimeout)
	cfg.Matcher.CacheTTL = env.durationVar("MATCH_CACHE_TTL", cfg.Matcher.CacheTTL)

	cfg.Cache.Backend = envString("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.KeyPrefix = envString("CACHE_KEY_PREFIX", cfg.Cache.KeyPrefix)
	cfg.Cache.RedisURL = envString("REDIS_URL", cfg.Cache.RedisURL)
	cfg.Cache.RedisPoolSize = env.intVar("REDIS_POOL_SIZE", cfg.Cache.RedisPoolSize)
	cfg.Cache.BadgerPath = envString("BADGER_PATH", cfg.Cache.BadgerPath)

	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = env.intVar("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = env.intVar("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Sensor.Mode = envString("SENSOR_MODE", cfg.Sensor.Mode)
	cfg.Sensor.SpoolDir = envString("SENSOR_SPOOL_DIR", cfg.Sensor.SpoolDir)
	cfg.Sensor.LockPath = envString("SENSOR_LOCK_PATH", cfg.Sensor.LockPath)
	cfg.Sensor.PollInterval = env.durationVar("SENSOR_POLL_INTERVAL", cfg.Sensor.PollInterval)
	cfg.Sensor.CaptureTimeout = env.durationVar("SENSOR_CAPTURE_TIMEOUT", cfg.Sensor.CaptureTimeout)
	cfg.Sensor.BridgeURL = envString("SENSOR_BRIDGE_URL", cfg.Sensor.BridgeURL)
	cfg.Sensor.BridgeToken = envString("SENSOR_BRIDGE_TOKEN", cfg.Sensor.BridgeToken)
	cfg.Sensor.NativeCompare = env.boolVar("SENSOR_NATIVE_COMPARE", cfg.Sensor.NativeCompare)

	cfg.Logging.Level = envString("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = envString("LOG_FORMAT", cfg.Logging.Format)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = env.intVar("WEB_PORT", cfg.Web.Port)

	return errors.Join(env.errs...)
}

// envString returns the environment variable value, or defaultVal if unset or empty.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envReader parses typed environment variables and remembers every value
// that failed to parse.
type envReader struct {
	errs []error
}

func (r *envReader) lookup(key string) (string, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	return s, s != ""
}

func (r *envReader) fail(key, value, kind string) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q is not a valid %s", ErrInvalidConfig, key, value, kind))
}

// intVar returns the parsed value, or defaultVal if the variable is unset or invalid.
func (r *envReader) intVar(key string, defaultVal int) int {
	s, ok := r.lookup(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.fail(key, s, "integer")
		return defaultVal
	}
	return n
}

func (r *envReader) floatVar(key string, defaultVal float64) float64 {
	s, ok := r.lookup(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(key, s, "number")
		return defaultVal
	}
	return f
}

func (r *envReader) boolVar(key string, defaultVal bool) bool {
	s, ok := r.lookup(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		r.fail(key, s, "boolean")
		return defaultVal
	}
	return b
}

func (r *envReader) durationVar(key string, defaultVal Duration) Duration {
	s, ok := r.lookup(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		r.fail(key, s, "duration")
		return defaultVal
	}
	return Duration{Duration: d}
}
