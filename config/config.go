package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ridoystarlord/depmigrate/database"
)

// FileName is the optional project configuration file.
const FileName = "depmigrate.yaml"

const envPrefix = "DEPMIGRATE"

// Configuration keys shared by viper, the config file and CLI flags.
const (
	KeyDatabaseURL   = "database_url"
	KeyDialect       = "dialect"
	KeyMigrationsDir = "migrations_dir"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
)

type Config struct {
	DatabaseURL   string `mapstructure:"database_url" yaml:"database_url,omitempty"`
	Dialect       string `mapstructure:"dialect" yaml:"dialect,omitempty"`
	MigrationsDir string `mapstructure:"migrations_dir" yaml:"migrations_dir"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
}

// Default is the configuration written by `depmigrate init`.
func Default() Config {
	return Config{
		MigrationsDir: "migrations",
		LogLevel:      "warn",
		LogFormat:     "console",
	}
}

// LoadEnv loads .env into the process environment. It reports whether a
// file was found.
func LoadEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// NewViper returns a viper instance with defaults, environment bindings
// and the config file search path set up. DATABASE_URL is accepted next to
// DEPMIGRATE_DATABASE_URL.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyMigrationsDir, d.MigrationsDir)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyDialect, "")
	v.SetDefault(KeyDatabaseURL, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyDatabaseURL, envPrefix+"_DATABASE_URL", "DATABASE_URL")

	v.SetConfigFile(FileName)
	return v
}

// Load reads the config file when present and decodes the merged
// configuration.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return &cfg, nil
}

// ResolveDialect returns the configured dialect, or infers it from the
// database URL.
func (c *Config) ResolveDialect() (database.Dialect, error) {
	if c.Dialect != "" {
		return database.ParseDialect(c.Dialect)
	}
	if c.DatabaseURL == "" {
		return "", fmt.Errorf("database URL not set (in .env, %s or environment)", FileName)
	}
	return database.DetectDialect(c.DatabaseURL)
}

// NewLogger builds the zap logger used by library code. format is
// "console" or "json".
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	encoderConfig.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}

	var encoder zapcore.Encoder
	switch format {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", format)
	}

	return zap.New(zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl)), nil
}
