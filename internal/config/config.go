package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".groupguard"
	DefaultConfigFile = "config.yaml"
	DefaultLogFile    = "audit.jsonl"
	DefaultHistoryDB  = "history.db"

	DefaultWarningTemplate = "⚠️ User {user} has been muted for {duration} seconds: {reason}. Please keep the conversation civil."
)

// Config is the full runtime configuration, resolved once at startup.
// Durations are whole seconds, matching the keys operators already use.
type Config struct {
	TriggerMode        string `yaml:"trigger_mode" validate:"oneof=count_only time_only hybrid strict_hybrid"`
	BatchSize          int    `yaml:"batch_size" validate:"gte=1"`
	CheckInterval      int    `yaml:"check_interval" validate:"gte=1"`
	RecentMessageLimit int    `yaml:"recent_message_limit" validate:"gte=0"`
	BanDuration        int    `yaml:"ban_duration" validate:"gte=1,lte=2592000"`
	CoolDownWindow     int    `yaml:"cool_down_window" validate:"gte=1"`
	AnalyzerTimeout    int    `yaml:"analyzer_timeout" validate:"gte=1"`

	SendWarning     bool   `yaml:"send_warning"`
	WarningTemplate string `yaml:"warning_template"`

	LLMProvider string              `yaml:"llm_provider"`
	Providers   map[string]Provider `yaml:"providers" validate:"dive"`

	DefaultReviewRules string `yaml:"default_review_rules"`
	CustomReviewRules  string `yaml:"custom_review_rules"`
	RulesFile          string `yaml:"rules_file"`

	WhitelistUsers []string `yaml:"whitelist_users"`
	EnabledGroups  []string `yaml:"enabled_groups"`

	OneBot  OneBotConfig  `yaml:"onebot"`
	Admin   AdminConfig   `yaml:"admin"`
	History HistoryConfig `yaml:"history"`

	AuditLog string `yaml:"audit_log"`

	// ConfigDir is the directory holding the config file; not read from YAML.
	ConfigDir string `yaml:"-"`
}

// Provider describes one analyzer backend.
type Provider struct {
	Type      string `yaml:"type" validate:"oneof=openai gemini"`
	Model     string `yaml:"model" validate:"required"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
}

// Key returns the inline API key, falling back to the named environment variable.
func (p Provider) Key() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

type OneBotConfig struct {
	WSURL            string  `yaml:"ws_url" validate:"omitempty,url"`
	HTTPURL          string  `yaml:"http_url" validate:"omitempty,url"`
	AccessToken      string  `yaml:"access_token"`
	ActionsPerSecond float64 `yaml:"actions_per_second" validate:"gt=0"`
}

type AdminConfig struct {
	Listen string `yaml:"listen"`
}

type HistoryConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory sqlite"`
	Path    string `yaml:"path"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	dir := filepath.Join("~", DefaultConfigDir)
	return &Config{
		TriggerMode:        "hybrid",
		BatchSize:          10,
		CheckInterval:      60,
		RecentMessageLimit: 50,
		BanDuration:        600,
		CoolDownWindow:     3600,
		AnalyzerTimeout:    30,
		SendWarning:        true,
		WarningTemplate:    DefaultWarningTemplate,
		Providers:          map[string]Provider{},
		OneBot: OneBotConfig{
			ActionsPerSecond: 5,
		},
		Admin: AdminConfig{
			Listen: "127.0.0.1:8089",
		},
		History: HistoryConfig{
			Backend: "memory",
			Path:    filepath.Join(dir, DefaultHistoryDB),
		},
		AuditLog: filepath.Join(dir, DefaultLogFile),
	}
}

// DefaultPath returns ~/.groupguard/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Load reads the YAML file at path over Default(). An empty path means
// DefaultPath(); a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ConfigDir = filepath.Dir(path)
	cfg.AuditLog = expandHome(cfg.AuditLog)
	cfg.History.Path = expandHome(cfg.History.Path)
	cfg.RulesFile = expandHome(cfg.RulesFile)
	if cfg.Providers == nil {
		cfg.Providers = map[string]Provider{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	var errs []error
	if c.LLMProvider != "" {
		if _, ok := c.Providers[c.LLMProvider]; !ok {
			errs = append(errs, fmt.Errorf("llm_provider %q is not defined under providers", c.LLMProvider))
		}
	}
	if c.TriggerMode != "time_only" && c.RecentMessageLimit > 0 && c.RecentMessageLimit < c.BatchSize {
		errs = append(errs, fmt.Errorf("recent_message_limit %d is below batch_size %d; count triggers could never fire",
			c.RecentMessageLimit, c.BatchSize))
	}
	if c.History.Backend == "sqlite" && c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required for the sqlite backend"))
	}
	return errors.Join(errs...)
}

func (c *Config) CheckIntervalDuration() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

func (c *Config) BanDurationDuration() time.Duration {
	return time.Duration(c.BanDuration) * time.Second
}

func (c *Config) CoolDownDuration() time.Duration {
	return time.Duration(c.CoolDownWindow) * time.Second
}

func (c *Config) AnalyzerTimeoutDuration() time.Duration {
	return time.Duration(c.AnalyzerTimeout) * time.Second
}

// EnsureDir creates the directory holding path with owner-only permissions.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
