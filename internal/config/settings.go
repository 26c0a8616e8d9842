// Package config loads daemon settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings configures the daemon process. The rule list itself lives in the
// rule file and is reloaded at runtime; settings are read once at startup.
type Settings struct {
	RulesFile       string        `mapstructure:"rules_file"`
	InhibitDuration time.Duration `mapstructure:"inhibit_duration"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	EnqueueTimeout  time.Duration `mapstructure:"enqueue_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	LogFile         string        `mapstructure:"log_file"`
}

// DefaultSettings returns sensible defaults.
func DefaultSettings(rulesFile string) Settings {
	return Settings{
		RulesFile:       rulesFile,
		InhibitDuration: 5 * time.Minute,
		QueueCapacity:   32,
		EnqueueTimeout:  2 * time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Loader reads settings from defaults, an optional settings file, HYPNOS_*
// environment variables and bound flags, in increasing precedence.
type Loader struct {
	viper    *viper.Viper
	file     string
	defaults Settings
}

// NewLoader creates a loader. settingsFile may not exist.
func NewLoader(settingsFile string, defaults Settings) *Loader {
	v := viper.New()
	v.SetEnvPrefix("HYPNOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v, file: settingsFile, defaults: defaults}
}

// BindFlags binds CLI flags by settings key. Flag names use dashes.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	keys := []string{"rules_file", "inhibit_duration", "queue_capacity", "enqueue_timeout", "log_level", "log_format", "log_file"}
	for _, key := range keys {
		f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := l.viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	}
	return nil
}

// Load resolves and validates settings.
func (l *Loader) Load() (Settings, error) {
	l.setDefaults()

	if l.file != "" {
		if err := l.readFile(); err != nil {
			return Settings{}, err
		}
	}

	var s Settings
	if err := l.viper.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))
	s.LogFormat = strings.ToLower(strings.TrimSpace(s.LogFormat))

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings validation failed: %w", err)
	}
	return s, nil
}

// SettingsFile returns the settings file actually read, or "".
func (l *Loader) SettingsFile() string {
	return l.viper.ConfigFileUsed()
}

func (l *Loader) readFile() error {
	if _, err := os.Stat(l.file); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	l.viper.SetConfigFile(l.file)
	if err := l.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read settings file at %s: %w", l.file, err)
	}
	return nil
}

func (l *Loader) setDefaults() {
	l.viper.SetDefault("rules_file", l.defaults.RulesFile)
	l.viper.SetDefault("inhibit_duration", l.defaults.InhibitDuration)
	l.viper.SetDefault("queue_capacity", l.defaults.QueueCapacity)
	l.viper.SetDefault("enqueue_timeout", l.defaults.EnqueueTimeout)
	l.viper.SetDefault("log_level", l.defaults.LogLevel)
	l.viper.SetDefault("log_format", l.defaults.LogFormat)
	l.viper.SetDefault("log_file", l.defaults.LogFile)
}

// Validate checks setting ranges.
func (s Settings) Validate() error {
	var errs []error
	if s.RulesFile == "" {
		errs = append(errs, errors.New("rules_file must be set"))
	}
	if s.InhibitDuration <= 0 {
		errs = append(errs, fmt.Errorf("inhibit_duration must be positive, got %s", s.InhibitDuration))
	}
	if s.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("queue_capacity must be positive, got %d", s.QueueCapacity))
	}
	if s.EnqueueTimeout <= 0 {
		errs = append(errs, fmt.Errorf("enqueue_timeout must be positive, got %s", s.EnqueueTimeout))
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", s.LogLevel))
	}
	switch s.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", s.LogFormat))
	}
	return errors.Join(errs...)
}
