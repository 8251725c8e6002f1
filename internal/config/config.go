// Package config provides configuration management for buildwatch.
//
// Configuration is loaded from four sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (BUILDWATCH_ prefix)
//  3. Config file (.buildwatch.yaml)
//  4. Built-in defaults, which reproduce the stock esbuild watch setup
package config

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/buildwatch/internal/buildcfg"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "BUILDWATCH"

// keyDelimiter replaces viper's default "." so loader keys such as ".ts"
// survive as single keys.
const keyDelimiter = "::"

// Config represents the global configuration for buildwatch.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// Settings holds the build configuration fields at the top level of
	// the config file.
	buildcfg.Settings `mapstructure:",squash"`

	// Metafile, when set, is where esbuild's metafile JSON is written
	// after every successful build.
	Metafile string `mapstructure:"metafile" json:"metafile,omitempty"`

	// WatchConfig reloads the build when the config file changes.
	WatchConfig bool `mapstructure:"watch-config" json:"watchConfig"`

	// Debounce is the quiet period before a config change is acted on.
	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`

	// ConfigFile is the resolved path to the config file used.
	// Set by Load, never read from config itself.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with the stock build settings.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
		Settings:  buildcfg.DefaultSettings(),
		Debounce:  500 * time.Millisecond,
	}
}

// Validate checks that all config values are valid, including the build
// settings.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if c.Debounce < 0 {
		return fmt.Errorf("invalid debounce %s: must not be negative", c.Debounce)
	}

	if _, err := c.Build(); err != nil {
		return err
	}

	return nil
}

// Build returns the validated, immutable build configuration.
func (c *Config) Build() (buildcfg.Config, error) {
	return buildcfg.New(c.Settings)
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests and for reloads.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Read as a whole so flag, env, file, and default maps never merge.
	loader, err := loaderValue(v.Get("loader"))
	if err != nil {
		return nil, err
	}

	cfg.Loader = loader

	// Store the resolved config file path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// decodeHook extends viper's default hooks so string sources such as
// BUILDWATCH_LOADER can fill map fields.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToMapHook(),
	)
}

func stringToMapHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Map {
			return data, nil
		}

		return parseStringMap(reflect.ValueOf(data).String())
	}
}

// loaderValue converts the loader value of whichever source won into a
// map. Strings come from the environment.
func loaderValue(raw any) (map[string]string, error) {
	if s, ok := raw.(string); ok {
		return parseStringMap(s)
	}

	m, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid loader mapping: %w", err)
	}

	return m, nil
}

// parseStringMap parses "key=value" pairs separated by commas, the syntax
// of map-valued flags, or a JSON object.
func parseStringMap(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]string{}, nil
	}

	if strings.HasPrefix(s, "{") {
		var m map[string]string
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("invalid JSON mapping %q: %w", s, err)
		}

		return m, nil
	}

	pairs, err := csv.NewReader(strings.NewReader(s)).Read()
	if err != nil {
		return nil, fmt.Errorf("invalid mapping %q: %w", s, err)
	}

	m := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid mapping entry %q: must be key=value", pair)
		}

		m[key] = value
	}

	return m, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)

	v.SetDefault("entry-points", d.EntryPoints)
	v.SetDefault("outfile", d.Outfile)
	v.SetDefault("bundle", d.Bundle)
	v.SetDefault("minify", d.Minify)
	v.SetDefault("sourcemap", d.Sourcemap)
	v.SetDefault("loader", d.Loader)
	v.SetDefault("target", d.Target)
	v.SetDefault("working-dir", "")

	v.SetDefault("metafile", "")
	v.SetDefault("watch-config", false)
	v.SetDefault("debounce", d.Debounce)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".buildwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "buildwatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		// No config file found → perfectly fine in auto-discovery.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		// Found a file but it was malformed.
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
