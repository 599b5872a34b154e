// Package config loads the skydigest configuration file.
//
// Files are YAML or TOML, chosen by extension. ${VAR} placeholders are
// expanded from the environment (after an optional .env file is loaded)
// before parsing, so secrets can stay out of the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/skydigest/internal/cron"
	. "github.com/roelfdiedericks/skydigest/internal/logging"
	"github.com/roelfdiedericks/skydigest/internal/paths"
	"github.com/roelfdiedericks/skydigest/internal/types"
)

// Config is the complete application configuration.
type Config struct {
	Bluesky      BlueskyConfig  `yaml:"bluesky" toml:"bluesky"`
	BlueskyUsers []string       `yaml:"bluesky_users" toml:"bluesky_users"`
	AI           AIConfig       `yaml:"ai" toml:"ai"`
	Email        EmailConfig    `yaml:"email" toml:"email"`
	Settings     SettingsConfig `yaml:"settings" toml:"settings"`

	path string // file this config was read from
}

// BlueskyConfig holds the account used to read feeds.
type BlueskyConfig struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"` // app password
	Service  string `yaml:"service" toml:"service"`
}

// AIConfig selects the summarization backend.
type AIConfig struct {
	Provider       string   `yaml:"provider" toml:"provider"`
	Models         []string `yaml:"models" toml:"models"` // first = primary, rest = fallbacks
	Model          string   `yaml:"model" toml:"model"`   // single-model shorthand
	BaseURL        string   `yaml:"base_url" toml:"base_url"`
	APIKey         string   `yaml:"api_key" toml:"api_key"`
	PromptFile     string   `yaml:"prompt_file" toml:"prompt_file"`
	TimeoutSeconds int      `yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxTokens      int      `yaml:"max_tokens" toml:"max_tokens"`
	ContextWindow  int      `yaml:"context_window" toml:"context_window"` // 0 = unknown, no size warning
	OllamaBinary   string   `yaml:"ollama_binary" toml:"ollama_binary"`
}

// EmailConfig describes SMTP delivery.
type EmailConfig struct {
	SMTPServer      string   `yaml:"smtp_server" toml:"smtp_server"`
	SMTPPort        int      `yaml:"smtp_port" toml:"smtp_port"`
	SenderEmail     string   `yaml:"sender_email" toml:"sender_email"`
	SenderPassword  string   `yaml:"sender_password" toml:"sender_password"`
	RecipientEmails []string `yaml:"recipient_emails" toml:"recipient_emails"`
	Subject         string   `yaml:"subject" toml:"subject"`
}

// SettingsConfig holds run behavior.
type SettingsConfig struct {
	HoursLookback   int    `yaml:"hours_lookback" toml:"hours_lookback"`
	MaxPostsPerUser int    `yaml:"max_posts_per_user" toml:"max_posts_per_user"`
	Schedule        string `yaml:"schedule" toml:"schedule"` // cron expression for serve
	Timezone        string `yaml:"timezone" toml:"timezone"`
	LogLevel        string `yaml:"log_level" toml:"log_level"`
}

// Defaults returns the values used for fields the file leaves empty.
func Defaults() Config {
	return Config{
		Bluesky: BlueskyConfig{
			Service: "https://bsky.social",
		},
		AI: AIConfig{
			Provider:       "openai",
			TimeoutSeconds: 120,
			MaxTokens:      1000,
			OllamaBinary:   "ollama",
		},
		Email: EmailConfig{
			SMTPPort: 587,
			Subject:  "Daily Bluesky Summary",
		},
		Settings: SettingsConfig{
			HoursLookback:   24,
			MaxPostsPerUser: 50,
			Schedule:        "0 8 * * *",
			Timezone:        "Local",
			LogLevel:        "info",
		},
	}
}

// LoadEnv loads a .env file into the process environment. A missing file is not an error.
func LoadEnv(file string) error {
	if file == "" {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			L_trace("config: no env file", "path", file)
			return nil
		}
		return fmt.Errorf("load env file %s: %w", file, err)
	}
	L_debug("config: env file loaded", "path", file)
	return nil
}

// Load reads, expands, defaults and validates the config at path.
// An empty path searches the standard locations.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := paths.ConfigPath()
		if err != nil {
			return nil, err
		}
		if found == "" {
			tried, _ := paths.ConfigCandidates()
			return nil, fmt.Errorf("no config file found (looked for %s)", strings.Join(tried, ", "))
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	L_info("config: loaded", "path", path, "provider", cfg.AI.Provider, "models", cfg.AI.Models, "accounts", len(cfg.BlueskyUsers))
	return cfg, nil
}

// Parse decodes config text. ext selects the format (".toml", otherwise YAML).
// Defaults are applied; validation is left to the caller.
func Parse(data []byte, ext string) (*Config, error) {
	content := ExpandEnv(string(data))

	var cfg Config
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(content, &cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

// ExpandEnv replaces $VAR and ${VAR} with environment values.
// Unset variables are left as ${VAR} so they surface in validation instead of vanishing.
func ExpandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "${" + name + "}"
	})
}

func (c *Config) applyDefaults() error {
	if err := mergo.Merge(c, Defaults()); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))

	models := make([]string, 0, len(c.AI.Models)+1)
	if m := strings.TrimSpace(c.AI.Model); m != "" && len(c.AI.Models) == 0 {
		models = append(models, m)
	}
	for _, m := range c.AI.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	c.AI.Models = models

	users := make([]string, 0, len(c.BlueskyUsers))
	for _, u := range c.BlueskyUsers {
		if u = strings.TrimPrefix(strings.TrimSpace(u), "@"); u != "" {
			users = append(users, u)
		}
	}
	c.BlueskyUsers = users
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	kind, err := types.ParseProviderKind(c.AI.Provider)
	if err != nil {
		errs = append(errs, fmt.Errorf("ai.provider: %w", err))
	}
	if len(c.AI.Models) == 0 {
		errs = append(errs, errors.New("ai.models: at least one model is required"))
	}
	if kind.NeedsEndpoint() && strings.TrimSpace(c.AI.BaseURL) == "" {
		errs = append(errs, fmt.Errorf("ai.base_url: required for provider %s", kind))
	}
	if c.AI.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("ai.timeout_seconds: must not be negative"))
	}

	if c.Bluesky.Username == "" || c.Bluesky.Password == "" {
		errs = append(errs, errors.New("bluesky: username and password are required"))
	}
	if len(c.BlueskyUsers) == 0 {
		errs = append(errs, errors.New("bluesky_users: at least one account is required"))
	}

	if c.Email.SMTPServer == "" {
		errs = append(errs, errors.New("email.smtp_server: required"))
	}
	if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("email.smtp_port: %d out of range", c.Email.SMTPPort))
	}
	if c.Email.SenderEmail == "" {
		errs = append(errs, errors.New("email.sender_email: required"))
	}
	if len(c.Email.RecipientEmails) == 0 {
		errs = append(errs, errors.New("email.recipient_emails: at least one recipient is required"))
	}

	if c.Settings.HoursLookback <= 0 {
		errs = append(errs, errors.New("settings.hours_lookback: must be positive"))
	}
	if c.Settings.MaxPostsPerUser <= 0 || c.Settings.MaxPostsPerUser > 100 {
		errs = append(errs, errors.New("settings.max_posts_per_user: must be between 1 and 100"))
	}
	if _, err := cron.ParseSchedule(c.Settings.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("settings.schedule: %w", err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("settings.timezone: %w", err))
	}

	for _, v := range c.unresolved() {
		errs = append(errs, fmt.Errorf("%s: environment variable not set", v))
	}

	return errors.Join(errs...)
}

// unresolved lists fields that still hold a ${VAR} placeholder.
func (c *Config) unresolved() []string {
	var out []string
	check := func(name, v string) {
		if strings.Contains(v, "${") {
			out = append(out, name)
		}
	}
	check("bluesky.username", c.Bluesky.Username)
	check("bluesky.password", c.Bluesky.Password)
	check("ai.api_key", c.AI.APIKey)
	check("ai.base_url", c.AI.BaseURL)
	check("email.sender_email", c.Email.SenderEmail)
	check("email.sender_password", c.Email.SenderPassword)
	return out
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Kind returns the parsed provider kind.
func (c *Config) Kind() types.ProviderKind {
	kind, _ := types.ParseProviderKind(c.AI.Provider)
	return kind
}

// APIKey returns ai.api_key, falling back to the provider's conventional
// environment variable.
func (c *Config) APIKey() string {
	if c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	switch c.Kind() {
	case types.KindOpenAI, types.KindOpenAICompatible:
		return os.Getenv("OPENAI_API_KEY")
	case types.KindAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// Timeout returns the generation request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// Lookback returns the post collection window.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Settings.HoursLookback) * time.Hour
}

// Location returns the timezone for the schedule.
func (c *Config) Location() (*time.Location, error) {
	if c.Settings.Timezone == "" || c.Settings.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Settings.Timezone)
}

// PromptPath resolves ai.prompt_file relative to the config file.
func (c *Config) PromptPath() (string, error) {
	return paths.ResolveRelative(c.AI.PromptFile, c.path)
}
