/*
Package config manages TOML config for kiltman services.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/kiltman/internal/utils"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Server ServerConfig `toml:"server"`
	Build  BuildConfig  `toml:"build"`
	CLI    CliConfig    `toml:"cli"`
}

// ServerConfig has HTTP and IPC options.
type ServerConfig struct {
	Addr              string   `toml:"addr"`
	MaxQueryLen       int      `toml:"max_query_len"`
	MaxSuggestions    int      `toml:"max_suggestions"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	ReadTimeout       Duration `toml:"read_timeout"`
	WriteTimeout      Duration `toml:"write_timeout"`
	WatchTrie         bool     `toml:"watch_trie"`
}

// BuildConfig holds dictionary ingestion options.
type BuildConfig struct {
	ProgressEvery int `toml:"progress_every"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	ShowMeta bool   `toml:"show_meta"`
	Color    string `toml:"color"` // auto, always or never
	Limit    int    `toml:"limit"`
}

// Duration is a time.Duration written as a string such as "5s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

var (
	ErrInvalidAddr  = errors.New("server addr must not be empty")
	ErrInvalidLimit = errors.New("value must be positive")
	ErrInvalidColor = errors.New("cli color must be auto, always or never")
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			MaxQueryLen:       4096,
			MaxSuggestions:    10,
			RequestsPerSecond: 200,
			Burst:             50,
			ReadTimeout:       Duration{10 * time.Second},
			WriteTimeout:      Duration{10 * time.Second},
			WatchTrie:         false,
		},
		Build: BuildConfig{
			ProgressEvery: 1000,
		},
		CLI: CliConfig{
			ShowMeta: true,
			Color:    "auto",
			Limit:    10,
		},
	}
}

// Validate reports the first setting that cannot be served.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrInvalidAddr
	}
	positive := map[string]int{
		"server.max_query_len":   c.Server.MaxQueryLen,
		"server.max_suggestions": c.Server.MaxSuggestions,
		"server.burst":           c.Server.Burst,
		"build.progress_every":   c.Build.ProgressEvery,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s = %d: %w", name, v, ErrInvalidLimit)
		}
	}
	if c.Server.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.requests_per_second = %g: %w", c.Server.RequestsPerSecond, ErrInvalidLimit)
	}
	switch c.CLI.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("%q: %w", c.CLI.Color, ErrInvalidColor)
	}
	return nil
}

// GetDefaultConfigPath returns the default path for config.toml, normally
// ~/.config/kiltman/config.toml.
func GetDefaultConfigPath() (string, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		return "", err
	}
	return pr.GetConfigPath("config.toml")
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/kiltman/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. A file that does not parse as a whole is read
// section by section, keeping defaults for whatever cannot be recovered. The result
// is validated either way.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		if config, err = tryPartialParse(configPath); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if serverSection, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(serverSection, &config.Server)
	}
	if buildSection, ok := utils.ExtractSection(tempConfig, "build"); ok {
		if val, ok := utils.ExtractInt64(buildSection, "progress_every"); ok {
			config.Build.ProgressEvery = val
		}
	}
	if cliSection, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(cliSection, &config.CLI)
	}
	return config, nil
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractString(data, "addr"); ok {
		server.Addr = val
	}
	if val, ok := utils.ExtractInt64(data, "max_query_len"); ok {
		server.MaxQueryLen = val
	}
	if val, ok := utils.ExtractInt64(data, "max_suggestions"); ok {
		server.MaxSuggestions = val
	}
	if val, ok := utils.ExtractFloat64(data, "requests_per_second"); ok {
		server.RequestsPerSecond = val
	}
	if val, ok := utils.ExtractInt64(data, "burst"); ok {
		server.Burst = val
	}
	if val, ok := utils.ExtractDuration(data, "read_timeout"); ok {
		server.ReadTimeout = Duration{val}
	}
	if val, ok := utils.ExtractDuration(data, "write_timeout"); ok {
		server.WriteTimeout = Duration{val}
	}
	if val, ok := utils.ExtractBool(data, "watch_trie"); ok {
		server.WatchTrie = val
	}
}

// extractCliConfig extracts CLI config from a map
func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractBool(data, "show_meta"); ok {
		cli.ShowMeta = val
	}
	if val, ok := utils.ExtractString(data, "color"); ok {
		cli.Color = val
	}
	if val, ok := utils.ExtractInt64(data, "limit"); ok {
		cli.Limit = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() (string, error) {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return "", err
	}
	return defaultPath, SaveConfig(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
