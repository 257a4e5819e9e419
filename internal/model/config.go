package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// IMAPConfig holds the connection settings for an IMAP mailbox. The
// password is kept in the system keyring, never in this file.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// GmailConfig points at the OAuth client secrets and the cached token.
type GmailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	TokenFile       string `mapstructure:"token_file" yaml:"token_file"`
}

// MailConfig selects and configures the mailbox backend.
type MailConfig struct {
	// Backend is "imap" or "gmail".
	Backend string      `mapstructure:"backend" yaml:"backend"`
	Folder  string      `mapstructure:"folder" yaml:"folder"`
	IMAP    IMAPConfig  `mapstructure:"imap" yaml:"imap"`
	Gmail   GmailConfig `mapstructure:"gmail" yaml:"gmail"`

	ConnectAttempts  int `mapstructure:"connect_attempts" yaml:"connect_attempts"`
	ConnectBackoffMS int `mapstructure:"connect_backoff_ms" yaml:"connect_backoff_ms"`
}

// ConnectBackoff returns the fixed delay between connection attempts.
func (c MailConfig) ConnectBackoff() time.Duration {
	return time.Duration(c.ConnectBackoffMS) * time.Millisecond
}

// AIConfig holds settings for the inference endpoint.
type AIConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	Model      string `mapstructure:"model" yaml:"model"`
	MaxTokens  int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns the per-call deadline for inference requests.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// RateConfig holds the courtesy delay, in milliseconds, applied before
// each call of an operation class.
type RateConfig struct {
	ClassificationMS int `mapstructure:"classification_ms" yaml:"classification_ms"`
	ExtractionMS     int `mapstructure:"extraction_ms" yaml:"extraction_ms"`
	HolisticMS       int `mapstructure:"holistic_ms" yaml:"holistic_ms"`
	SummaryMS        int `mapstructure:"summary_ms" yaml:"summary_ms"`
	DefaultMS        int `mapstructure:"default_ms" yaml:"default_ms"`
	DatabaseMS       int `mapstructure:"database_ms" yaml:"database_ms"`
}

// WatchConfig controls the background inbox poller.
type WatchConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	BatchSize       int `mapstructure:"batch_size" yaml:"batch_size"`
}

// PollInterval returns the delay between two syncs.
func (c WatchConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// FoldersConfig controls filing emails into per-category folders.
type FoldersConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Mail    MailConfig    `mapstructure:"mail" yaml:"mail"`
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Rate    RateConfig    `mapstructure:"rate" yaml:"rate"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Folders FoldersConfig `mapstructure:"folders" yaml:"folders"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/inbox-triage/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "inbox-triage", "config.yaml")
}

// DefaultStorePath returns the default SQLite database location.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "triage.db")
	}
	return filepath.Join(home, ".local", "share", "inbox-triage", "triage.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Store: StoreConfig{Path: DefaultStorePath()},
		Log:   LogConfig{Level: "info"},
		Mail: MailConfig{
			Backend:          "imap",
			Folder:           "INBOX",
			IMAP:             IMAPConfig{Port: "993", TLS: true},
			ConnectAttempts:  3,
			ConnectBackoffMS: 300,
		},
		AI: AIConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4.1-mini",
			MaxTokens:  1024,
			TimeoutSec: 30,
		},
		Rate: RateConfig{
			ClassificationMS: 200,
			ExtractionMS:     300,
			HolisticMS:       500,
			SummaryMS:        200,
			DefaultMS:        100,
			DatabaseMS:       0,
		},
		Watch: WatchConfig{
			PollIntervalSec: 300,
			BatchSize:       25,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("mail.backend", d.Mail.Backend)
	v.SetDefault("mail.folder", d.Mail.Folder)
	v.SetDefault("mail.imap.port", d.Mail.IMAP.Port)
	v.SetDefault("mail.imap.tls", d.Mail.IMAP.TLS)
	v.SetDefault("mail.connect_attempts", d.Mail.ConnectAttempts)
	v.SetDefault("mail.connect_backoff_ms", d.Mail.ConnectBackoffMS)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.timeout_sec", d.AI.TimeoutSec)
	v.SetDefault("rate.classification_ms", d.Rate.ClassificationMS)
	v.SetDefault("rate.extraction_ms", d.Rate.ExtractionMS)
	v.SetDefault("rate.holistic_ms", d.Rate.HolisticMS)
	v.SetDefault("rate.summary_ms", d.Rate.SummaryMS)
	v.SetDefault("rate.default_ms", d.Rate.DefaultMS)
	v.SetDefault("rate.database_ms", d.Rate.DatabaseMS)
	v.SetDefault("watch.poll_interval_sec", d.Watch.PollIntervalSec)
	v.SetDefault("watch.batch_size", d.Watch.BatchSize)
	v.SetDefault("folders.enabled", false)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Values may be overridden by TRIAGE_* environment variables. If the file
// does not exist, defaults (plus environment overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Mail.ConnectAttempts < 1 {
		cfg.Mail.ConnectAttempts = 1
	}
	if cfg.Watch.BatchSize < 1 {
		cfg.Watch.BatchSize = 25
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)
	v.Set("mail", cfg.Mail)
	v.Set("ai", cfg.AI)
	v.Set("rate", cfg.Rate)
	v.Set("watch", cfg.Watch)
	v.Set("folders", cfg.Folders)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
