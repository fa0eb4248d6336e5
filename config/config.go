package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfigPath = "PHASH_CONFIG"
	EnvLogLevel   = "PHASH_LOG_LEVEL"
	EnvLogFormat  = "PHASH_LOG_FORMAT"
	EnvMHAlpha    = "PHASH_MH_ALPHA"
	EnvMHLevel    = "PHASH_MH_LEVEL"
	EnvMaxPixels  = "PHASH_MAX_PIXELS"
)

// DefaultMaxPixels is 4096x4096.
const DefaultMaxPixels = 1 << 24

type Config struct {
	Log         LogConfig `yaml:"log"`
	MH          MHConfig  `yaml:"mh"`
	Concurrency int       `yaml:"concurrency"` // Files hashed in parallel by the CLI
	MaxPixels   int       `yaml:"max_pixels"`  // Largest width*height decoded
}

// Holds diagnostic logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Holds Marr-Hildreth hash defaults
type MHConfig struct {
	Alpha float64 `yaml:"alpha"` // Kernel scale base
	Level float64 `yaml:"level"` // Kernel scale exponent
}

// Returns a Config struct with reasonable default values.
func DefaultConfig() *Config {
	return &Config{
		Concurrency: 4,
		MaxPixels:   DefaultMaxPixels,
		Log: LogConfig{
			Level:  "error",
			Format: "console",
		},
		MH: MHConfig{
			Alpha: 2.0,
			Level: 1.0,
		},
	}
}

// Loads configuration from a YAML file. Fields missing from the file keep
// their default values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Load reads the file named by PHASH_CONFIG, or starts from the defaults when
// it is unset, then applies environment overrides.
func Load(lookup func(string) (string, bool)) (*Config, error) {
	config := DefaultConfig()
	if path, ok := lookup(EnvConfigPath); ok && path != "" {
		var err error
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(config, lookup); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides config fields from environment variables found through
// lookup, normally os.LookupEnv.
func ApplyEnv(config *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		config.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvLogFormat); ok {
		config.Log.Format = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvMHAlpha); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return NewValidationError(EnvMHAlpha, v, err)
		}
		config.MH.Alpha = f
	}
	if v, ok := lookup(EnvMHLevel); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return NewValidationError(EnvMHLevel, v, err)
		}
		config.MH.Level = f
	}
	if v, ok := lookup(EnvMaxPixels); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return NewValidationError(EnvMaxPixels, v, err)
		}
		config.MaxPixels = n
	}
	return Validate(config)
}

func Validate(config *Config) error {
	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return NewValidationError("log.level", config.Log.Level, fmt.Errorf("log level must be one of debug, info, warn, error"))
	}

	switch config.Log.Format {
	case "json", "console":
	default:
		return NewValidationError("log.format", config.Log.Format, fmt.Errorf("log format must be json or console"))
	}

	if config.Concurrency < 1 {
		return NewValidationError("concurrency", config.Concurrency, fmt.Errorf("concurrency must be greater than 0"))
	}

	if config.MaxPixels < 1 {
		return NewValidationError("max_pixels", config.MaxPixels, fmt.Errorf("max_pixels must be greater than 0"))
	}

	if math.IsNaN(config.MH.Alpha) || config.MH.Alpha <= 0 {
		return NewValidationError("mh.alpha", config.MH.Alpha, fmt.Errorf("mh alpha must be greater than 0"))
	}

	if math.IsNaN(config.MH.Level) || math.IsInf(config.MH.Level, 0) {
		return NewValidationError("mh.level", config.MH.Level, fmt.Errorf("mh level must be finite"))
	}

	return nil
}
