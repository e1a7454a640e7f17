package mapper

import (
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sandrolain/gomapper/pkg/cache"
	"github.com/sandrolain/gomapper/pkg/evaluator"
	"github.com/sandrolain/gomapper/pkg/types"
)

var validate = validator.New()

// Config is the file form of the mapper settings.
type Config struct {
	Flags Flags `yaml:"flags"`

	// MaxDepth limits operator block nesting.
	MaxDepth int `yaml:"max_depth" validate:"gte=0,lte=1024"`
	// Strict turns missing paths into resolution errors.
	Strict bool `yaml:"strict"`
	// StrictZip rejects wildcard sequences of different lengths.
	StrictZip bool `yaml:"strict_zip"`
	// Timeout bounds a pass, for example "5s". Zero disables it.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	// Debug dumps operator block row sets at debug level.
	Debug bool `yaml:"debug"`
	// LogLevel is the minimum level of the logger built by Logger.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	// CacheSize is the number of compiled templates kept.
	CacheSize int `yaml:"cache_size" validate:"gte=0"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Flags:     DefaultFlags(),
		MaxDepth:  100,
		Timeout:   30 * time.Second,
		LogLevel:  "info",
		CacheSize: cache.DefaultCapacity,
	}
}

// LoadConfig parses a YAML document over the defaults and validates it.
func LoadConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, types.Errorf(types.ErrInvalidConfig, "failed to parse config").WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return types.Errorf(types.ErrInvalidConfig, "invalid config").WithCause(err)
	}
	return nil
}

// Level returns LogLevel as a slog level, info when unset.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Logger returns a JSON logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

// Options converts the settings into mapper options.
func (c *Config) Options() []Option {
	return []Option{
		WithFlags(c.Flags),
		WithCache(cache.New(c.CacheSize)),
		WithEngineOptions(
			evaluator.WithMaxDepth(c.MaxDepth),
			evaluator.WithStrict(c.Strict),
			evaluator.WithStrictZip(c.StrictZip),
			evaluator.WithTimeout(c.Timeout),
			evaluator.WithDebug(c.Debug),
		),
	}
}
