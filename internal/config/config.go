// Package config loads mudra settings from defaults, an optional TOML file,
// a .env file and MUDRA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override, e.g. MUDRA_HTTP_ADDR.
const EnvPrefix = "MUDRA"

// Defaults.
const (
	DefaultHTTPAddr            = ":8000"
	DefaultWordsDir            = "words"
	DefaultDBPath              = "mudra.db"
	DefaultDevice              = "cpu"
	DefaultClassifierModel     = "prithivMLmods/Alphabet-Sign-Language-Detection"
	DefaultWordThreshold       = 0.85
	DefaultRegionPadding       = 20
	DefaultBreakerMaxFailures  = 5
	DefaultBreakerResetTimeout = 30 * time.Second
	DefaultSessionIdleTTL      = 5 * time.Minute
	DefaultSessionSweep        = time.Minute
	DefaultMotionThreshold     = 1.0
)

// Config holds all configuration for the service and the live loop.
type Config struct {
	// HTTP
	HTTPAddr       string `envconfig:"HTTP_ADDR"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED"`

	// Storage
	DBPath   string `envconfig:"DB_PATH"`
	WordsDir string `envconfig:"WORDS_DIR"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL"`
	LogPretty bool   `envconfig:"LOG_PRETTY"`

	// Model services
	Python           string `envconfig:"PYTHON"`
	DetectorScript   string `envconfig:"DETECTOR_SCRIPT"`
	ClassifierScript string `envconfig:"CLASSIFIER_SCRIPT"`
	ClassifierModel  string `envconfig:"CLASSIFIER_MODEL"`
	Device           string `envconfig:"DEVICE"`

	// Recognition
	WordThreshold float64 `envconfig:"WORD_THRESHOLD"`
	RegionPadding int     `envconfig:"REGION_PADDING"`

	// Resilience
	BreakerMaxFailures  int           `envconfig:"BREAKER_MAX_FAILURES"`
	BreakerResetTimeout time.Duration `envconfig:"BREAKER_RESET_TIMEOUT"`

	// Sessions
	SessionIdleTTL       time.Duration `envconfig:"SESSION_IDLE_TTL"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL"`

	// Events
	KafkaEnabled      bool     `envconfig:"KAFKA_ENABLED"`
	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	KafkaResultsTopic string   `envconfig:"KAFKA_RESULTS_TOPIC"`
	KafkaWordsTopic   string   `envconfig:"KAFKA_WORDS_TOPIC"`
	KafkaClientID     string   `envconfig:"KAFKA_CLIENT_ID"`

	// Live mode
	CameraID        int     `envconfig:"CAMERA_ID"`
	MotionThreshold float64 `envconfig:"MOTION_THRESHOLD"`
	LiveWordMode    bool    `envconfig:"LIVE_WORD_MODE"`
	Tray            bool    `envconfig:"TRAY"`
}

type fileConfig struct {
	Server struct {
		Addr           string `toml:"addr"`
		MetricsEnabled *bool  `toml:"metrics_enabled"`
	} `toml:"server"`
	Storage struct {
		DBPath   string `toml:"db_path"`
		WordsDir string `toml:"words_dir"`
	} `toml:"storage"`
	Logging struct {
		Level  string `toml:"level"`
		Pretty *bool  `toml:"pretty"`
	} `toml:"logging"`
	Models struct {
		Python           string `toml:"python"`
		DetectorScript   string `toml:"detector_script"`
		ClassifierScript string `toml:"classifier_script"`
		ClassifierModel  string `toml:"classifier_model"`
		Device           string `toml:"device"`
	} `toml:"models"`
	Recognition struct {
		WordThreshold float64 `toml:"word_threshold"`
		RegionPadding *int    `toml:"region_padding"`
	} `toml:"recognition"`
	Breaker struct {
		MaxFailures  int    `toml:"max_failures"`
		ResetTimeout string `toml:"reset_timeout"`
	} `toml:"breaker"`
	Sessions struct {
		IdleTTL       string `toml:"idle_ttl"`
		SweepInterval string `toml:"sweep_interval"`
	} `toml:"sessions"`
	Kafka struct {
		Enabled      *bool    `toml:"enabled"`
		Brokers      []string `toml:"brokers"`
		ResultsTopic string   `toml:"results_topic"`
		WordsTopic   string   `toml:"words_topic"`
		ClientID     string   `toml:"client_id"`
	} `toml:"kafka"`
	Live struct {
		CameraID        *int    `toml:"camera_id"`
		MotionThreshold float64 `toml:"motion_threshold"`
		WordMode        *bool   `toml:"word_mode"`
		Tray            *bool   `toml:"tray"`
	} `toml:"live"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:             DefaultHTTPAddr,
		MetricsEnabled:       true,
		DBPath:               DefaultDBPath,
		WordsDir:             DefaultWordsDir,
		LogLevel:             "info",
		ClassifierModel:      DefaultClassifierModel,
		Device:               DefaultDevice,
		WordThreshold:        DefaultWordThreshold,
		RegionPadding:        DefaultRegionPadding,
		BreakerMaxFailures:   DefaultBreakerMaxFailures,
		BreakerResetTimeout:  DefaultBreakerResetTimeout,
		SessionIdleTTL:       DefaultSessionIdleTTL,
		SessionSweepInterval: DefaultSessionSweep,
		KafkaClientID:        "mudra",
		MotionThreshold:      DefaultMotionThreshold,
		Tray:                 true,
	}
}

// Load builds the configuration. path may be empty; a missing .env is ignored.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the values set in a TOML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return c.apply(fc)
}

// ApplyEnv overlays MUDRA_* environment variables. Unset variables keep their value.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func (c *Config) apply(fc fileConfig) error {
	setString(&c.HTTPAddr, fc.Server.Addr)
	setBool(&c.MetricsEnabled, fc.Server.MetricsEnabled)

	setString(&c.DBPath, fc.Storage.DBPath)
	setString(&c.WordsDir, fc.Storage.WordsDir)

	setString(&c.LogLevel, fc.Logging.Level)
	setBool(&c.LogPretty, fc.Logging.Pretty)

	setString(&c.Python, fc.Models.Python)
	setString(&c.DetectorScript, fc.Models.DetectorScript)
	setString(&c.ClassifierScript, fc.Models.ClassifierScript)
	setString(&c.ClassifierModel, fc.Models.ClassifierModel)
	setString(&c.Device, fc.Models.Device)

	if fc.Recognition.WordThreshold != 0 {
		c.WordThreshold = fc.Recognition.WordThreshold
	}
	if fc.Recognition.RegionPadding != nil {
		c.RegionPadding = *fc.Recognition.RegionPadding
	}

	if fc.Breaker.MaxFailures != 0 {
		c.BreakerMaxFailures = fc.Breaker.MaxFailures
	}
	if err := setDuration(&c.BreakerResetTimeout, fc.Breaker.ResetTimeout, "breaker.reset_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.SessionIdleTTL, fc.Sessions.IdleTTL, "sessions.idle_ttl"); err != nil {
		return err
	}
	if err := setDuration(&c.SessionSweepInterval, fc.Sessions.SweepInterval, "sessions.sweep_interval"); err != nil {
		return err
	}

	setBool(&c.KafkaEnabled, fc.Kafka.Enabled)
	if len(fc.Kafka.Brokers) > 0 {
		c.KafkaBrokers = fc.Kafka.Brokers
	}
	setString(&c.KafkaResultsTopic, fc.Kafka.ResultsTopic)
	setString(&c.KafkaWordsTopic, fc.Kafka.WordsTopic)
	setString(&c.KafkaClientID, fc.Kafka.ClientID)

	if fc.Live.CameraID != nil {
		c.CameraID = *fc.Live.CameraID
	}
	if fc.Live.MotionThreshold != 0 {
		c.MotionThreshold = fc.Live.MotionThreshold
	}
	setBool(&c.LiveWordMode, fc.Live.WordMode)
	setBool(&c.Tray, fc.Live.Tray)
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.HTTPAddr == "" {
		problems = append(problems, "http address is required")
	}
	if c.DBPath == "" {
		problems = append(problems, "database path is required")
	}
	if c.WordThreshold <= 0 || c.WordThreshold > 1 {
		problems = append(problems, "word threshold must be in (0, 1]")
	}
	if c.RegionPadding < 0 {
		problems = append(problems, "region padding must not be negative")
	}
	if c.BreakerMaxFailures <= 0 {
		problems = append(problems, "breaker max failures must be positive")
	}
	if c.BreakerResetTimeout <= 0 {
		problems = append(problems, "breaker reset timeout must be positive")
	}
	if c.SessionIdleTTL <= 0 || c.SessionSweepInterval <= 0 {
		problems = append(problems, "session ttl and sweep interval must be positive")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		problems = append(problems, "kafka brokers are required when kafka is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v, key string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
