package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. MEETING_SERVER_PORT.
const EnvPrefix = "MEETING"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Whisper WhisperConfig `yaml:"whisper"`
	LLM     LLMConfig     `yaml:"llm"`
	Workers WorkersConfig `yaml:"workers"`
	Storage StorageConfig `yaml:"storage"`
	Cleanup CleanupConfig `yaml:"cleanup"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port" validate:"min=1,max=65535"`
	AllowOrigins           string `yaml:"allow_origins" split_words:"true"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" split_words:"true" validate:"min=1"`
}

// WhisperConfig describes how the speech-to-text runtime is invoked
type WhisperConfig struct {
	Command string `yaml:"command" validate:"required"`
	Model   string `yaml:"model" validate:"required"`
	Device  string `yaml:"device"`
	Threads int    `yaml:"threads" validate:"min=0"`
}

// LLMConfig holds the chat-completion backend settings and prompt templates
type LLMConfig struct {
	BaseURL        string       `yaml:"base_url" split_words:"true" validate:"required,url"`
	Model          string       `yaml:"model" validate:"required"`
	TimeoutSeconds int          `yaml:"timeout_seconds" split_words:"true" validate:"min=1"`
	Summary        PromptConfig `yaml:"summary"`
	ActionItems    PromptConfig `yaml:"action_items" split_words:"true"`
}

// PromptConfig is one prompt template plus its decoding parameters.
// User is a text/template rendered with {{.Transcript}}.
type PromptConfig struct {
	System      string  `yaml:"system" validate:"required"`
	User        string  `yaml:"user" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" split_words:"true" validate:"min=1"`
}

// WorkersConfig bounds how many pipelines run at once
type WorkersConfig struct {
	Count int `yaml:"count" validate:"min=1"`
}

// StorageConfig holds paths for uploads, the meeting database and the archive
type StorageConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TempDir    string `yaml:"temp_dir" split_words:"true" validate:"required"`
	Database   string `yaml:"database" validate:"required_if=Enabled true"`
	ArchiveDir string `yaml:"archive_dir" split_words:"true"`
}

// CleanupConfig controls the orphaned temp file sweeper
type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes" split_words:"true" validate:"min=1"`
	MaxAgeHours     int `yaml:"max_age_hours" split_words:"true" validate:"min=1"`
}

// LimitsConfig holds request limits
type LimitsConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb" split_words:"true" validate:"min=1"`
}

// LoggingConfig selects the zap level and encoder
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig toggles the prometheus endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

const (
	defaultSummarySystem = "You are a professional meeting summarizer. You write clear, factual summaries of meeting transcripts."
	defaultSummaryUser   = `Summarize the following meeting transcript. Include:
1. Key decisions made
2. Main discussion points
3. Overall outcome

Transcript:
{{.Transcript}}`

	defaultActionSystem = "You are an assistant that extracts actionable tasks from meeting transcripts."
	defaultActionUser   = `List every action item from the following meeting transcript.
Write one action item per line and start each line with "- ".
Do not add any other text.

Transcript:
{{.Transcript}}`
)

// Default returns a configuration with every field set to its default value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			AllowOrigins:           "*",
			ShutdownTimeoutSeconds: 10,
		},
		Whisper: WhisperConfig{
			Command: "python",
			Model:   "small",
			Device:  "cpu",
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:1234",
			Model:          "local-model",
			TimeoutSeconds: 120,
			Summary: PromptConfig{
				System:      defaultSummarySystem,
				User:        defaultSummaryUser,
				Temperature: 0.3,
				MaxTokens:   500,
			},
			ActionItems: PromptConfig{
				System:      defaultActionSystem,
				User:        defaultActionUser,
				Temperature: 0.2,
				MaxTokens:   400,
			},
		},
		Workers: WorkersConfig{Count: 2},
		Storage: StorageConfig{
			Enabled:  true,
			TempDir:  "temp",
			Database: "data/meetings.db",
		},
		Cleanup: CleanupConfig{
			IntervalMinutes: 30,
			MaxAgeHours:     2,
		},
		Limits:  LimitsConfig{MaxFileSizeMB: 50},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// .env and MEETING_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}

// LLMTimeout returns the chat-completion request timeout
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown deadline
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// CleanupInterval returns how often the temp sweeper runs
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Cleanup.IntervalMinutes) * time.Minute
}

// CleanupMaxAge returns the age after which temp files are removed
func (c *Config) CleanupMaxAge() time.Duration {
	return time.Duration(c.Cleanup.MaxAgeHours) * time.Hour
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
