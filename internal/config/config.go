package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Config is the root configuration for babas.
type Config struct {
	General   GeneralConfig   `json:"general"`
	Assistant AssistantConfig `json:"assistant"`
	Session   SessionConfig   `json:"session"`
	Channels  ChannelsConfig  `json:"channels"`
	Metrics   MetricsConfig   `json:"metrics"`
	Export    ExportConfig    `json:"export"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel"`  // debug | info | warn | error
	LogFormat string `json:"logFormat"` // text | json
}

// AssistantConfig configures the language model behind the chat widget.
// An empty APIKey is legal: the assistant then answers with a warning.
type AssistantConfig struct {
	Provider       string  `json:"provider"` // "gemini" | "openai"
	APIBase        string  `json:"apiBase"`
	APIKey         string  `json:"apiKey"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeoutSeconds,omitempty"` // 0 = transport default
}

type SessionConfig struct {
	IdleMinutes int `json:"idleMinutes"` // evict sessions idle longer than this; 0 = never
	MaxSessions int `json:"maxSessions"`
}

type ChannelsConfig struct {
	Web      WebConfig      `json:"web"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	Slack    SlackConfig    `json:"slack"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	GuildID string `json:"guildId"` // empty = every guild the bot is in
}

// SlackConfig uses Socket Mode, so both a bot token (xoxb-) and an
// app-level token (xapp-) are needed.
type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
	AppToken string `json:"appToken"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (Telegram user IDs are often written as numbers).
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// ExportConfig configures the headless-Chrome PDF export of the pitch page.
type ExportConfig struct {
	Output         string `json:"output"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Gemini endpoints: the native REST API and its OpenAI-compatible surface.
const (
	GeminiAPIBase       = "https://generativelanguage.googleapis.com/v1beta"
	GeminiOpenAIAPIBase = GeminiAPIBase + "/openai"
)

// APIKeyEnvVars are consulted in order when assistant.apiKey is empty.
// VITE_GEMINI_API_KEY keeps .env.local files of the old front-end working.
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "VITE_GEMINI_API_KEY", "API_KEY"}

// EnvFiles are loaded by LoadEnvFiles; existing variables are never overridden.
var EnvFiles = []string{".env", ".env.local"}

// DefaultConfigDir returns the default config directory (~/.babas).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".babas"
	}
	return filepath.Join(home, ".babas")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadEnvFiles loads whichever of EnvFiles exist and returns their names.
func LoadEnvFiles() []string {
	var loaded []string
	for _, f := range EnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	return loaded
}

// Load reads the config file, expands ${VAR} references, applies env
// fallbacks and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	ApplyEnv(cfg)
	NormalizeAPIBase(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// ReadRaw parses the config file as written: no ${VAR} expansion, no env
// fallbacks, no validation. Use it to edit and re-save a file without
// baking secrets from the environment into it.
func ReadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefaults is Load, except that a missing file yields the defaults.
// The bool reports whether a file was read.
func LoadOrDefaults(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		cfg = Defaults()
		ApplyEnv(cfg)
		return cfg, false, nil
	}
	return nil, false, err
}

// NormalizeAPIBase points the openai provider at Gemini's OpenAI-compatible
// endpoint when the base is still the native one, which has no
// /chat/completions route.
func NormalizeAPIBase(cfg *Config) {
	if cfg.Assistant.Provider == "openai" && strings.TrimRight(cfg.Assistant.APIBase, "/") == GeminiAPIBase {
		cfg.Assistant.APIBase = GeminiOpenAIAPIBase
	}
}

// ApplyEnv fills the API key and channel tokens from the environment when
// the file leaves them empty.
// Secrets still holding an unresolved ${VAR} reference count as empty.
func ApplyEnv(cfg *Config) {
	for _, p := range []*string{
		&cfg.Assistant.APIKey,
		&cfg.Channels.Telegram.Token,
		&cfg.Channels.Discord.Token,
		&cfg.Channels.Slack.BotToken,
		&cfg.Channels.Slack.AppToken,
	} {
		if envVarPattern.MatchString(*p) {
			*p = ""
		}
	}
	if cfg.Assistant.APIKey == "" {
		for _, name := range APIKeyEnvVars {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				cfg.Assistant.APIKey = v
				break
			}
		}
	}
	if cfg.Channels.Telegram.Token == "" {
		cfg.Channels.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.Channels.Discord.Token == "" {
		cfg.Channels.Discord.Token = os.Getenv("DISCORD_BOT_TOKEN")
	}
	if cfg.Channels.Slack.BotToken == "" {
		cfg.Channels.Slack.BotToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	if cfg.Channels.Slack.AppToken == "" {
		cfg.Channels.Slack.AppToken = os.Getenv("SLACK_APP_TOKEN")
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset VAR
// without default is left untouched.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has usable values. A missing API key is
// not an error.
func Validate(cfg *Config) error {
	var errs *multierror.Error

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, errors.New("general.logLevel must be one of: debug, info, warn, error"))
	}
	switch cfg.General.LogFormat {
	case "", "text", "json":
	default:
		errs = multierror.Append(errs, errors.New("general.logFormat must be text or json"))
	}

	switch cfg.Assistant.Provider {
	case "gemini", "openai":
	default:
		errs = multierror.Append(errs, errors.New("assistant.provider must be gemini or openai"))
	}
	if cfg.Assistant.Model == "" {
		errs = multierror.Append(errs, errors.New("assistant.model is required"))
	}
	if cfg.Assistant.Temperature < 0 || cfg.Assistant.Temperature > 2 {
		errs = multierror.Append(errs, errors.New("assistant.temperature must be between 0 and 2"))
	}
	if cfg.Assistant.TimeoutSeconds < 0 {
		errs = multierror.Append(errs, errors.New("assistant.timeoutSeconds must be >= 0"))
	}
	if cfg.Assistant.Provider == "openai" {
		switch strings.TrimRight(cfg.Assistant.APIBase, "/") {
		case "":
			errs = multierror.Append(errs, errors.New("assistant.apiBase is required for the openai provider"))
		case GeminiAPIBase:
			errs = multierror.Append(errs, errors.New("assistant.apiBase is the native Gemini endpoint; the openai provider needs "+GeminiOpenAIAPIBase))
		}
	}

	if cfg.Session.IdleMinutes < 0 {
		errs = multierror.Append(errs, errors.New("session.idleMinutes must be >= 0"))
	}
	if cfg.Session.MaxSessions < 1 {
		errs = multierror.Append(errs, errors.New("session.maxSessions must be >= 1"))
	}

	if cfg.Channels.Web.Port < 0 || cfg.Channels.Web.Port > 65535 {
		errs = multierror.Append(errs, errors.New("channels.web.port must be between 0 and 65535"))
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token == "" {
		errs = multierror.Append(errs, errors.New("channels.telegram.token is required when telegram is enabled"))
	}
	if cfg.Channels.Discord.Enabled && cfg.Channels.Discord.Token == "" {
		errs = multierror.Append(errs, errors.New("channels.discord.token is required when discord is enabled"))
	}
	if cfg.Channels.Slack.Enabled && (cfg.Channels.Slack.BotToken == "" || cfg.Channels.Slack.AppToken == "") {
		errs = multierror.Append(errs, errors.New("channels.slack.botToken and appToken are required when slack is enabled"))
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = multierror.Append(errs, errors.New("metrics.endpoint must start with /"))
	}
	if cfg.Export.TimeoutSeconds < 1 {
		errs = multierror.Append(errs, errors.New("export.timeoutSeconds must be >= 1"))
	}

	return errs.ErrorOrNil()
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
