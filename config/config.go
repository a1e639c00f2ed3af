// Package config loads and validates the runtime configuration.
//
// Values come from defaults, an optional YAML or JSON file and DILIGENCE_*
// environment variables, in increasing precedence. Nested keys map to
// environment names by replacing dots with underscores, for example
// DILIGENCE_REASONER_API_KEY.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hupe1980/diligence/core"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DILIGENCE"

// Config contains all configuration of the research service.
type Config struct {
	Reasoner            ReasonerConfig    `mapstructure:"reasoner" json:"reasoner"`
	Registry            SourceConfig      `mapstructure:"registry" json:"registry"`
	WebSearch           SourceConfig      `mapstructure:"web_search" json:"web_search"`
	ProfessionalNetwork SourceConfig      `mapstructure:"professional_network" json:"professional_network"`
	Worker              WorkerConfig      `mapstructure:"worker" json:"worker"`
	Coordinator         CoordinatorConfig `mapstructure:"coordinator" json:"coordinator"`
	Session             SessionConfig     `mapstructure:"session" json:"session"`
	Log                 LogConfig         `mapstructure:"log" json:"log"`
	Tracing             TracingConfig     `mapstructure:"tracing" json:"tracing"`
	Server              ServerConfig      `mapstructure:"server" json:"server"`
}

// ReasonerConfig selects the language model backend.
type ReasonerConfig struct {
	Provider    string  `mapstructure:"provider" json:"provider" validate:"required,oneof=anthropic openai gemini"`
	Model       string  `mapstructure:"model" json:"model"`
	APIKey      string  `mapstructure:"api_key" json:"api_key"`
	BaseURL     string  `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	Temperature float64 `mapstructure:"temperature" json:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens" validate:"min=1,max=200000"`
}

// SourceConfig configures one capability port.
type SourceConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	BaseURL string `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	// Timeout bounds a single request.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" validate:"min=0"`
	// MaxInFlight is the admission limit shared by all workers.
	MaxInFlight       int64   `mapstructure:"max_in_flight" json:"max_in_flight" validate:"min=0,max=256"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" json:"burst" validate:"min=0"`
}

// WorkerConfig bounds the worker loop.
type WorkerConfig struct {
	MaxSteps       int           `mapstructure:"max_steps" json:"max_steps" validate:"min=1,max=100"`
	MaxAttempts    int           `mapstructure:"max_attempts" json:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" json:"initial_backoff" validate:"min=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" json:"max_backoff" validate:"gtefield=InitialBackoff"`
	Multiplier     float64       `mapstructure:"multiplier" json:"multiplier" validate:"min=1"`
}

// CoordinatorConfig configures decomposition and dispatch.
type CoordinatorConfig struct {
	MaxParallel       int      `mapstructure:"max_parallel" json:"max_parallel" validate:"min=1,max=64"`
	DefaultFocusAreas []string `mapstructure:"default_focus_areas" json:"default_focus_areas" validate:"min=1,dive,required"`
	// FocusAreas overrides the capabilities required by a focus area,
	// e.g. {"esg": ["web-search"]}.
	FocusAreas     map[string][]string `mapstructure:"focus_areas" json:"focus_areas,omitempty"`
	SummaryTimeout time.Duration       `mapstructure:"summary_timeout" json:"summary_timeout" validate:"min=0"`
	RunTimeout     time.Duration       `mapstructure:"run_timeout" json:"run_timeout" validate:"min=0"`
}

// SessionConfig configures the conversation context store.
type SessionConfig struct {
	MaxTurns int `mapstructure:"max_turns" json:"max_turns" validate:"min=0"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" json:"format" validate:"oneof=text json"`
}

// TracingConfig configures OpenTelemetry span export over OTLP/HTTP.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Endpoint is the collector host:port.
	Endpoint    string  `mapstructure:"endpoint" json:"endpoint" validate:"required_if=Enabled true"`
	Insecure    bool    `mapstructure:"insecure" json:"insecure"`
	ServiceName string  `mapstructure:"service_name" json:"service_name" validate:"required"`
	SampleRatio float64 `mapstructure:"sample_ratio" json:"sample_ratio" validate:"min=0,max=1"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" json:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" validate:"min=0"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Reasoner: ReasonerConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0.2,
			MaxTokens:   4096,
		},
		// Companies House allows 600 requests per five minutes.
		Registry: SourceConfig{
			Enabled:           true,
			BaseURL:           "https://api.company-information.service.gov.uk",
			Timeout:           30 * time.Second,
			MaxInFlight:       2,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		WebSearch: SourceConfig{
			Enabled:           true,
			BaseURL:           "https://html.duckduckgo.com",
			Timeout:           30 * time.Second,
			MaxInFlight:       2,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		ProfessionalNetwork: SourceConfig{
			Timeout:     30 * time.Second,
			MaxInFlight: 2,
		},
		Worker: WorkerConfig{
			MaxSteps:       12,
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     10 * time.Second,
			Multiplier:     2,
		},
		Coordinator: CoordinatorConfig{
			MaxParallel:       4,
			DefaultFocusAreas: []string{"Profile", "Leadership", "Financials"},
			SummaryTimeout:    60 * time.Second,
			RunTimeout:        10 * time.Minute,
		},
		Session: SessionConfig{MaxTurns: 50},
		Log:     LogConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "diligence",
			SampleRatio: 1,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Minute,
		},
	}
}

// Load reads path (optional) on top of the defaults and applies environment
// overrides. The result is validated.
func Load(path string) (*Config, error) {
	v, err := newViper(Default())
	if err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteFile stores cfg at path. The format follows the file extension
// (.yaml, .yml or .json).
func WriteFile(cfg *Config, path string) error {
	v, err := newViper(cfg)
	if err != nil {
		return err
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func newViper(base *Config) (*viper.Viper, error) {
	settings, err := toMap(base)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	return v, nil
}

// toMap converts cfg into viper settings. Durations are written as strings
// so written files stay readable.
func toMap(cfg *Config) (map[string]any, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	durations := map[string][]string{
		"registry":             {"timeout"},
		"web_search":           {"timeout"},
		"professional_network": {"timeout"},
		"worker":               {"initial_backoff", "max_backoff"},
		"coordinator":          {"summary_timeout", "run_timeout"},
		"server":               {"read_timeout", "write_timeout"},
	}
	for section, keys := range durations {
		sm, ok := m[section].(map[string]any)
		if !ok {
			continue
		}
		for _, k := range keys {
			if n, ok := sm[k].(float64); ok {
				sm[k] = time.Duration(int64(n)).String()
			}
		}
	}
	return m, nil
}

var validate = validator.New()

// Validate checks field constraints and the focus-area capability table.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	for area, kinds := range c.Coordinator.FocusAreas {
		if len(kinds) == 0 {
			return fmt.Errorf("config: focus area %q lists no capabilities", area)
		}
		if _, err := c.FocusAreaCapabilities(area); err != nil {
			return err
		}
	}
	if c.ProfessionalNetwork.Enabled && c.ProfessionalNetwork.BaseURL == "" {
		return fmt.Errorf("config: professional_network.base_url is required when enabled")
	}
	return nil
}

// FocusAreaCapabilities parses the capability override of area.
func (c *Config) FocusAreaCapabilities(area string) (core.CapabilitySet, error) {
	set := core.NewCapabilitySet()
	for _, name := range c.Coordinator.FocusAreas[area] {
		k, err := core.ParseCapabilityKind(name)
		if err != nil {
			return nil, fmt.Errorf("config: focus area %q: %w", area, err)
		}
		set[k] = struct{}{}
	}
	return set, nil
}

// String returns the configuration as JSON with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.Reasoner.APIKey = mask(c.Reasoner.APIKey)
	masked.Registry.APIKey = mask(c.Registry.APIKey)
	masked.WebSearch.APIKey = mask(c.WebSearch.APIKey)
	masked.ProfessionalNetwork.APIKey = mask(c.ProfessionalNetwork.APIKey)

	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return strings.Repeat("*", len(secret))
}
