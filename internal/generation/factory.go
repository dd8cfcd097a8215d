package generation

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/ShayCichocki/arifi/internal/api"
	"github.com/ShayCichocki/arifi/internal/config"
)

// NewFromConfig selects a backend from cfg.Generation.Provider:
//   - stub: always the stub.
//   - auto: Anthropic when a key or Bedrock is configured, else OpenAI when
//     a key is set, else the stub.
//   - anthropic/openai: that provider, or the stub with a warning when its
//     credentials are missing.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) Generator {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := selectProvider(cfg)
	if err != nil {
		logger.Warn("provider unavailable, falling back to stub generator",
			zap.String("provider", cfg.Generation.Provider),
			zap.Error(err),
		)
		return NewStub()
	}
	if provider == nil {
		logger.Info("no provider credentials configured, using stub generator")
		return NewStub()
	}

	fields := []zap.Field{
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
	}
	if c, ok := provider.(*api.Client); ok {
		fields = append(fields, zap.Bool("bedrock", c.Bedrock()))
	}
	logger.Info("using provider", fields...)

	g := cfg.Generation
	return NewAdapter(provider,
		WithRetries(g.MaxRetries, g.RetryDelay),
		WithCallTimeout(g.Timeout),
		WithMaxTokens(g.MaxTokens),
		WithTemperature(g.Temperature),
		WithRateLimit(g.RateLimit),
		WithAdapterLogger(logger),
	)
}

// selectProvider returns nil, nil when the stub should be used.
func selectProvider(cfg *config.Config) (api.Provider, error) {
	switch cfg.Generation.Provider {
	case config.ProviderStub:
		return nil, nil
	case config.ProviderAnthropic:
		return newAnthropic(cfg)
	case config.ProviderOpenAI:
		return newOpenAI(cfg)
	case config.ProviderAuto, "":
		if cfg.Anthropic.UseBedrock {
			return newAnthropic(cfg)
		}
		if _, err := config.GetAnthropicKey(cfg); err == nil {
			return newAnthropic(cfg)
		}
		if _, err := config.GetOpenAIKey(cfg); err == nil {
			return newOpenAI(cfg)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Generation.Provider)
	}
}

func newAnthropic(cfg *config.Config) (api.Provider, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Generation.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !clientCfg.UseAWSBedrock {
		key, err := config.GetAnthropicKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		clientCfg.APIKey = key
	}
	return api.NewClient(clientCfg)
}

func newOpenAI(cfg *config.Config) (api.Provider, error) {
	key, err := config.GetOpenAIKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return api.NewOpenAIClient(api.OpenAIConfig{
		Model:   cfg.Generation.Model,
		APIKey:  key,
		BaseURL: cfg.OpenAI.BaseURL,
	})
}
