// Package config loads and persists application configuration and holds the
// process-wide credential snapshot read by repositories before issuing
// authenticated calls.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GitHubConfig holds the remote project API credentials.
type GitHubConfig struct {
	User         string `mapstructure:"user"`
	Token        string `mapstructure:"token"`
	SignInMethod string `mapstructure:"sign_in_method"`
}

// StoreConfig holds document-store configuration.
type StoreConfig struct {
	Path     string `mapstructure:"path"`
	PageSize int    `mapstructure:"page_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:     defaultDataPath(),
			PageSize: 5,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "folio", "folio.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "folio", "folio.log")
	}
}

func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "folio")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "folio")
	}
}

func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "folio", "data")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "folio", "data")
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("FOLIO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file.
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("github.user", cfg.GitHub.User)
	viper.Set("github.token", cfg.GitHub.Token)
	viper.Set("github.sign_in_method", cfg.GitHub.SignInMethod)

	viper.Set("store.path", cfg.Store.Path)
	viper.Set("store.page_size", cfg.Store.PageSize)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Credentials is the snapshot repositories read before authenticated calls.
type Credentials struct {
	User         string
	Token        string
	SignInMethod string
}

// Update describes a partial credential change; nil fields keep the
// current value.
type Update struct {
	User         *string
	Token        *string
	SignInMethod *string
}

// Holder is the process-wide credential holder. Reads are synchronous and
// cheap; writes replace fields atomically and optionally persist.
type Holder struct {
	mu      sync.RWMutex
	current Credentials
	persist func(Credentials) error
}

// NewHolder seeds a holder from cfg. When persist is non-nil every Apply and
// Clear is written through it.
func NewHolder(cfg *Config, persist func(Credentials) error) *Holder {
	return &Holder{
		current: Credentials{
			User:         cfg.GitHub.User,
			Token:        cfg.GitHub.Token,
			SignInMethod: cfg.GitHub.SignInMethod,
		},
		persist: persist,
	}
}

// Snapshot returns the current credentials.
func (h *Holder) Snapshot() Credentials {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Apply merges a partial update into the held credentials.
func (h *Holder) Apply(u Update) error {
	h.mu.Lock()
	if u.User != nil {
		h.current.User = *u.User
	}
	if u.Token != nil {
		h.current.Token = *u.Token
	}
	if u.SignInMethod != nil {
		h.current.SignInMethod = *u.SignInMethod
	}
	snap := h.current
	persist := h.persist
	h.mu.Unlock()

	if persist != nil {
		return persist(snap)
	}
	return nil
}

// Clear wipes the held credentials.
func (h *Holder) Clear() error {
	h.mu.Lock()
	h.current = Credentials{}
	persist := h.persist
	h.mu.Unlock()

	if persist != nil {
		return persist(Credentials{})
	}
	return nil
}

// String helps build Update values inline.
func String(s string) *string { return &s }
