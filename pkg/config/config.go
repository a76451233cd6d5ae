// Package config loads and validates the pipeline configuration from
// defaults, an optional YAML file and environment overrides.
package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/ticket"
)

// Config is the full pipeline configuration.
type Config struct {
	API      APIConfig   `yaml:"api"`
	Staff    StaffConfig `yaml:"staff"`
	Run      RunConfig   `yaml:"run"`
	LLM      LLMConfig   `yaml:"llm"`
	Store    StoreConfig `yaml:"store"`
	LogLevel string      `yaml:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// APIConfig configures the ticket platform client.
type APIConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	Key        string `yaml:"key" validate:"required"`
	TimeoutSec int    `yaml:"timeout_sec" validate:"gte=1,lte=600"`
}

// StaffConfig names the staff identity whose replies are ground truth.
type StaffConfig struct {
	ID    string `yaml:"id" validate:"required"`
	Email string `yaml:"email" validate:"required,email"`
	Name  string `yaml:"name" validate:"required"`
	Role  string `yaml:"role"`
}

// RunConfig bounds the batch run.
type RunConfig struct {
	MaxTickets  int `yaml:"max_tickets" validate:"gte=1"`
	BatchSize   int `yaml:"batch_size" validate:"gte=1,lte=500"`
	Concurrency int `yaml:"concurrency" validate:"gte=1,lte=64"`
	Epochs      int `yaml:"epochs" validate:"gte=1,lte=20"`
}

// LLMConfig configures the text-completion service.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key" validate:"required"`
	MaxTokens   int64   `yaml:"max_tokens" validate:"gte=1"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=1"`
	TimeoutSec  int     `yaml:"timeout_sec" validate:"gte=1,lte=600"`
}

// StoreConfig configures the persistence sink.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when nothing overrides it.
// Values mirror the production deployment.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:    ticket.DefaultBaseURL,
			TimeoutSec: 30,
		},
		Staff: StaffConfig{
			ID:    "91",
			Email: "cs@unisco.com",
			Name:  "Celine Escorido",
			Role:  "CSR",
		},
		Run: RunConfig{
			MaxTickets:  200,
			BatchSize:   20,
			Concurrency: 3,
			Epochs:      5,
		},
		LLM: LLMConfig{
			MaxTokens:   2048,
			Temperature: 0.3,
			TimeoutSec:  120,
		},
		Store: StoreConfig{
			Path: "ticketlearn.db",
		},
		LogLevel: "INFO",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or missing), then environment overrides.
// Validation failure is fatal before any work begins.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, errors.Wrap(err, errors.InvalidInput, "read config file")
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, errors.InvalidInput, "parse config file")
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers environment variables over the config. Variable names
// match the legacy deployment so existing environments keep working.
func applyEnv(cfg *Config) {
	setString(&cfg.API.BaseURL, "TICKET_API_BASE_URL")
	setString(&cfg.API.Key, "TICKET_API_KEY")
	setString(&cfg.Staff.ID, "TICKET_STAFF_ID")
	setString(&cfg.Staff.Email, "TICKET_STAFF_EMAIL")
	setString(&cfg.Staff.Name, "TICKET_STAFF_NAME")
	setString(&cfg.Staff.Role, "TICKET_STAFF_ROLE")
	setInt(&cfg.Run.MaxTickets, "MAX_TICKETS")
	setInt(&cfg.Run.BatchSize, "TICKET_BATCH_SIZE")
	setString(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.LLM.Model, "TICKETLEARN_MODEL")
	setString(&cfg.Store.Path, "TICKETLEARN_DB")
	setString(&cfg.LogLevel, "TICKETLEARN_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks the configuration. Missing credentials are reported
// here, before a run starts, rather than mid-batch.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "invalid configuration"),
				errors.Fields{"field": first.Namespace(), "rule": first.Tag()})
		}
		return errors.Wrap(err, errors.ValidationFailed, "invalid configuration")
	}
	return nil
}
