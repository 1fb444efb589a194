package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the telegram-listener relay.
type Config struct {
	General  GeneralConfig  `yaml:"general"`
	Telegram TelegramConfig `yaml:"telegram"`
	Sink     SinkConfig     `yaml:"sink"`
	// WatchedChats lists the chat IDs whose messages are relayed.
	// Order is irrelevant; membership is what matters.
	WatchedChats []int64 `yaml:"watchedChats"`
}

type GeneralConfig struct {
	LogLevel string `yaml:"logLevel"`          // debug | info | warn | error
	LogFile  string `yaml:"logFile,omitempty"` // optional log file path
}

// TelegramConfig holds the platform credentials and session location.
// The token is opaque to the relay core and usually injected via
// ${TELEGRAM_BOT_TOKEN} expansion.
type TelegramConfig struct {
	Token string `yaml:"token"`
	// SessionDir is where the platform adapter persists its session
	// state (the update offset database).
	SessionDir string `yaml:"sessionDir"`
	// PollTimeoutSeconds is the long-poll timeout for update fetches.
	PollTimeoutSeconds int `yaml:"pollTimeoutSeconds"`
}

// SinkConfig describes the downstream HTTP endpoint.
type SinkConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".telegram-listener"
	}
	return filepath.Join(home, ".telegram-listener")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Defaults returns a config with every field at its default value.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Telegram: TelegramConfig{
			Token:              "${TELEGRAM_BOT_TOKEN}",
			SessionDir:         DefaultConfigDir(),
			PollTimeoutSeconds: 30,
		},
		Sink: SinkConfig{
			URL:            "http://localhost:3001/webhook/telegram",
			TimeoutSeconds: 10,
		},
	}
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Telegram.SessionDir = expandPath(cfg.Telegram.SessionDir)
	cfg.General.LogFile = expandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" || strings.Contains(cfg.Telegram.Token, "${") {
		errs = append(errs, "telegram.token is required (set TELEGRAM_BOT_TOKEN or edit the config)")
	}
	if cfg.Telegram.SessionDir == "" {
		errs = append(errs, "telegram.sessionDir is required")
	}
	if cfg.Telegram.PollTimeoutSeconds < 1 || cfg.Telegram.PollTimeoutSeconds > 300 {
		errs = append(errs, "telegram.pollTimeoutSeconds must be between 1 and 300")
	}

	if cfg.Sink.URL == "" {
		errs = append(errs, "sink.url is required")
	} else if u, err := url.Parse(cfg.Sink.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("sink.url is not a valid URL: %s", cfg.Sink.URL))
	}
	if cfg.Sink.TimeoutSeconds < 1 || cfg.Sink.TimeoutSeconds > 300 {
		errs = append(errs, "sink.timeoutSeconds must be between 1 and 300")
	}

	if len(cfg.WatchedChats) == 0 {
		errs = append(errs, "watchedChats must list at least one chat ID")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
