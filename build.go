package diligence

import (
	"context"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/diligence/agent"
	"github.com/hupe1980/diligence/capability"
	"github.com/hupe1980/diligence/capability/profnet"
	"github.com/hupe1980/diligence/capability/registry"
	"github.com/hupe1980/diligence/capability/websearch"
	"github.com/hupe1980/diligence/chat"
	"github.com/hupe1980/diligence/config"
	"github.com/hupe1980/diligence/coordinator"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/model"
	anthropicmodel "github.com/hupe1980/diligence/model/anthropic"
	"github.com/hupe1980/diligence/model/gemini"
	openaimodel "github.com/hupe1980/diligence/model/openai"
	"github.com/hupe1980/diligence/session"
	"github.com/hupe1980/diligence/tracing"
)

// NewLogger builds the structured logger described by cfg.
func NewLogger(cfg config.LogConfig, out io.Writer) *logging.StructuredLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Level),
		Format:    cfg.Format,
		Output:    out,
		Component: "diligence",
	})
}

// NewReasoner creates the configured model backend.
func NewReasoner(ctx context.Context, cfg config.ReasonerConfig) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "gemini":
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = float32(cfg.Temperature)
			o.MaxOutputTokens = int32(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	default:
		return nil, fmt.Errorf("diligence: unknown reasoner provider %q", cfg.Provider)
	}
}

// NewPorts builds the enabled capability ports, each behind its own
// admission limit.
func NewPorts(cfg *config.Config, logger logging.Logger) ([]core.Port, error) {
	var ports []core.Port

	if src := cfg.Registry; src.Enabled {
		if src.APIKey == "" {
			return nil, fmt.Errorf("diligence: registry.api_key is required when the registry is enabled")
		}
		ports = append(ports, limited(registry.NewPort(func(o *registry.Options) {
			if src.BaseURL != "" {
				o.BaseURL = src.BaseURL
			}
			o.APIKey = src.APIKey
			o.Timeout = src.Timeout
			o.Logger = logger
		}), src, logger))
	}

	if src := cfg.WebSearch; src.Enabled {
		ports = append(ports, limited(websearch.NewPort(func(o *websearch.Options) {
			if src.BaseURL != "" {
				o.BaseURL = src.BaseURL
			}
			o.Timeout = src.Timeout
			o.Logger = logger
		}), src, logger))
	}

	if src := cfg.ProfessionalNetwork; src.Enabled {
		ports = append(ports, limited(profnet.NewPort(func(o *profnet.Options) {
			o.BaseURL = src.BaseURL
			o.APIKey = src.APIKey
			o.Timeout = src.Timeout
			o.Logger = logger
		}), src, logger))
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("diligence: no capability source is enabled")
	}
	return ports, nil
}

func limited(port core.Port, src config.SourceConfig, logger logging.Logger) core.Port {
	return capability.Limit(port, func(o *capability.LimitOptions) {
		o.MaxInFlight = src.MaxInFlight
		o.RequestsPerSecond = src.RequestsPerSecond
		o.Burst = src.Burst
		o.Logger = logger
	})
}

// NewFromConfig wires reasoner, ports and options from cfg. optFns are
// applied after the configuration.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger logging.Logger, optFns ...func(o *Options)) (*Diligence, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.OrNoOp(logger)

	reasoner, err := NewReasoner(ctx, cfg.Reasoner)
	if err != nil {
		return nil, err
	}
	ports, err := NewPorts(cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, shutdown, err := tracing.NewProvider(ctx, tracing.ProviderOptions{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, err
	}

	fns := []func(o *Options){ConfigOptions(cfg, logger), func(o *Options) {
		o.TracerProvider = tp
		o.ShutdownTracing = shutdown
	}}
	d, err := New(reasoner, ports, append(fns, optFns...)...)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return d, nil
}

// ConfigOptions translates cfg into facade options.
func ConfigOptions(cfg *config.Config, logger logging.Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = logger
		o.RunTimeout = cfg.Coordinator.RunTimeout
		o.Store = session.NewInMemoryStore(func(so *session.Options) {
			so.MaxTurns = cfg.Session.MaxTurns
			so.Logger = logger
		})
		o.Coordinator = append(o.Coordinator, func(co *coordinator.Options) {
			co.MaxParallel = cfg.Coordinator.MaxParallel
			co.DefaultFocusAreas = cfg.Coordinator.DefaultFocusAreas
			co.SummaryTimeout = cfg.Coordinator.SummaryTimeout
			co.MaxSteps = cfg.Worker.MaxSteps
			co.Retry = agent.RetryPolicy{
				MaxAttempts:    cfg.Worker.MaxAttempts,
				InitialBackoff: cfg.Worker.InitialBackoff,
				MaxBackoff:     cfg.Worker.MaxBackoff,
				Multiplier:     cfg.Worker.Multiplier,
			}
			policy := coordinator.DefaultPolicy()
			for area := range cfg.Coordinator.FocusAreas {
				if caps, err := cfg.FocusAreaCapabilities(area); err == nil {
					policy.Set(area, caps)
				}
			}
			co.Policy = policy
		})
		o.Chat = append(o.Chat, func(co *chat.Options) {
			co.Timeout = cfg.Coordinator.SummaryTimeout
		})
	}
}
