package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// cliConfig is the merged configuration: defaults < config file < SSHC_* env < flags.
type cliConfig struct {
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	User      string        `mapstructure:"user"`
	Port      int           `mapstructure:"port"`
	Timeout   time.Duration `mapstructure:"timeout"`
	SSHConfig string        `mapstructure:"ssh-config"`
	Local     bool          `mapstructure:"local"`

	Agent           bool     `mapstructure:"agent"`
	AgentSocket     string   `mapstructure:"agent-socket"`
	Keys            []string `mapstructure:"key"`
	InteractiveKeys []string `mapstructure:"key-interactive"`
	PasswordEnv     string   `mapstructure:"password-env"`

	KnownHosts string `mapstructure:"known-hosts"`
	Insecure   bool   `mapstructure:"insecure"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		LogLevel:  "warn",
		LogFormat: "console",
		Timeout:   10 * time.Second,
		Agent:     true,
	}
}

// loadConfig merges configuration sources. An explicit configFile must exist;
// the default location is optional.
func loadConfig(flags *pflag.FlagSet, configFile string) (cliConfig, error) {
	cfg := defaultConfig()
	v := viper.New()

	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("log-format", cfg.LogFormat)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("agent", cfg.Agent)

	v.SetEnvPrefix("SSHC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return cfg, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "sshc"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// newLogger builds the CLI logger. Console format writes human-readable lines.
func newLogger(level, format string, w io.Writer) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
}

// parseLevel converts a string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}
