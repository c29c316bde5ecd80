// Package config manages application configuration using viper.
// It supports configuration from YAML files (.chatlib.yaml), environment
// variables (CHATLIB_ prefix), and command-line flags with sensible defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/buker/chatlib/internal/chat"
)

// Config holds all application configuration values.
// It is populated from config files, environment variables, and command-line flags.
type Config struct {
	API     APIConfig     `mapstructure:"api"`     // Backend connection settings
	Chat    ChatConfig    `mapstructure:"chat"`    // Send pipeline settings
	Storage StorageConfig `mapstructure:"storage"` // Local database
	Log     LogConfig     `mapstructure:"log"`     // Diagnostics
}

// APIConfig holds the backend connection settings.
type APIConfig struct {
	BaseURL string      `mapstructure:"base_url"`
	Timeout int         `mapstructure:"timeout"` // Seconds, non-streaming calls only
	Token   string      `mapstructure:"token"`   // Optional bearer token
	Retry   RetryConfig `mapstructure:"retry"`
}

// RetryConfig controls retries of non-streaming calls.
type RetryConfig struct {
	Count int `mapstructure:"count"` // Attempts after the first
	Delay int `mapstructure:"delay"` // Milliseconds between attempts
}

// ChatConfig holds the send pipeline settings.
type ChatConfig struct {
	TitleLength int      `mapstructure:"title_length"`
	Denylist    []string `mapstructure:"denylist"`
	Refusal     string   `mapstructure:"refusal"`
	ErrorMarker string   `mapstructure:"error_marker"`
}

// StorageConfig locates the local SQLite database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings. An empty File logs to stderr.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// TimeoutDuration returns the request timeout.
func (c APIConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// DelayDuration returns the delay between retries.
func (c RetryConfig) DelayDuration() time.Duration {
	return time.Duration(c.Delay) * time.Millisecond
}

// ChatOptions converts the chat settings into store options.
func (c ChatConfig) ChatOptions() chat.Options {
	return chat.Options{
		TitleLength: c.TitleLength,
		Denylist:    c.Denylist,
		Refusal:     c.Refusal,
		ErrorMarker: c.ErrorMarker,
	}
}

var (
	cfg        Config
	configFile string
)

// Init initializes the configuration system by setting defaults,
// loading config files from current and home directories, and
// enabling environment variable overrides with the CHATLIB_ prefix.
func Init() {
	setDefaults()
	loadConfigFile()
	loadEnvVars()
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8080")
	viper.SetDefault("api.timeout", 60)
	viper.SetDefault("api.token", "")
	viper.SetDefault("api.retry.count", 2)
	viper.SetDefault("api.retry.delay", 1000)

	viper.SetDefault("chat.title_length", 20)
	viper.SetDefault("chat.denylist", chat.DefaultDenylist)
	viper.SetDefault("chat.refusal", chat.DefaultRefusal)
	viper.SetDefault("chat.error_marker", chat.DefaultErrorMarker)

	viper.SetDefault("storage.path", GetDefaultStoragePath())

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.file", "")
}

func loadConfigFile() {
	viper.SetConfigName(".chatlib")
	viper.SetConfigType("yaml")

	// Add config paths in priority order
	// 1. Current directory (project config)
	viper.AddConfigPath(".")
	// 2. Home directory (global config)
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}

	if err := viper.ReadInConfig(); err == nil {
		configFile = viper.ConfigFileUsed()
	}
}

func loadEnvVars() {
	viper.SetEnvPrefix("CHATLIB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// BindFlags binds cobra command-line flags to viper configuration values.
// Flags that the command does not define are skipped.
func BindFlags(cmd *cobra.Command) {
	bind := func(key, flag string) {
		if f := cmd.PersistentFlags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
	bind("api.base_url", "base-url")
	bind("api.timeout", "timeout")
	bind("api.token", "token")
	bind("storage.path", "db")
	bind("log.level", "log-level")
	bind("log.file", "log-file")
}

// Get returns the current configuration by unmarshaling all viper values.
// Call this after Init and BindFlags to get the final merged configuration.
func Get() *Config {
	// Error is ignored as defaults are always valid
	_ = viper.Unmarshal(&cfg)
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Log.File = expandHome(cfg.Log.File)
	return &cfg
}

// GetConfigPath returns the path to the config file that was loaded,
// or an empty string if no config file was found.
func GetConfigPath() string {
	return configFile
}

// GetDefaultConfigPath returns the default global config file path (~/.chatlib.yaml).
func GetDefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatlib.yaml")
}

// GetDefaultStoragePath returns the default database path (~/.chatlib/chatlib.db).
func GetDefaultStoragePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatlib", "chatlib.db")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
