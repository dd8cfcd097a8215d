// Package config handles configuration loading and management for arifi.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted by generation.provider.
const (
	ProviderAuto      = "auto"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderStub      = "stub"
)

// projectConfigName is searched for in the working directory and its parents.
const projectConfigName = ".arifi.yaml"

// Config holds all configuration for arifi.
type Config struct {
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic" yaml:"anthropic"`
	OpenAI     OpenAIConfig     `mapstructure:"openai" yaml:"openai"`
	Evolution  EvolutionConfig  `mapstructure:"evolution" yaml:"evolution"`
	Analysis   AnalysisConfig   `mapstructure:"analysis" yaml:"analysis"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// GenerationConfig holds settings for the generation/repair service.
type GenerationConfig struct {
	// Provider is one of auto, anthropic, openai or stub.
	Provider string `mapstructure:"provider" yaml:"provider"`
	// Model is the model identifier; empty selects the provider default.
	Model string `mapstructure:"model" yaml:"model"`
	// MaxRetries is the number of retries after the first attempt on a
	// transient failure.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryDelay is the base delay; attempt n waits n*RetryDelay.
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// Timeout bounds each remote call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MaxTokens is the maximum output size requested from the model.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
	// Temperature is the sampling temperature for initial generation.
	// Repairs always use 0.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	// RateLimit caps remote calls per second; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region" yaml:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// EvolutionConfig holds settings for the evolution loop.
type EvolutionConfig struct {
	// MaxIterations is the number of repair attempts allowed.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
}

// AnalyzerConfig describes one analyzer in the language table.
type AnalyzerConfig struct {
	Name    string        `mapstructure:"name" yaml:"name"`
	Command string        `mapstructure:"command" yaml:"command"`
	Args    []string      `mapstructure:"args" yaml:"args,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// AnalysisConfig holds analyzer settings.
type AnalysisConfig struct {
	// Timeout is the default per-analyzer timeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Concurrency is how many analyzers may run at once for one artifact.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
	// Analyzers replaces the built-in table for each language present.
	Analyzers map[string][]AnalyzerConfig `mapstructure:"analyzers" yaml:"analyzers,omitempty"`
}

// OutputConfig holds artifact output settings.
type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Load loads configuration from XDG paths, project overrides, an optional
// explicit file, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ARIFI_*, ANTHROPIC_API_KEY, OPENAI_API_KEY)
// 2. Explicit config file (configFile, if non-empty)
// 3. Project config (.arifi.yaml in current directory or parent)
// 4. User config (~/.config/arifi/config.yaml)
// 5. Built-in defaults
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Merge project config, then the explicit file (each takes precedence)
	for _, path := range []string{findProjectConfig(), configFile} {
		if path == "" {
			continue
		}
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	bindEnv(v)

	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

// mergeFile merges a single config file into v.
func mergeFile(v *viper.Viper, path string) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := v.MergeConfigMap(fv.AllSettings()); err != nil {
		return fmt.Errorf("merging config %s: %w", path, err)
	}
	return nil
}

// bindEnv maps ARIFI_SECTION_KEY variables and the provider credentials.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("ARIFI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ARIFI_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "ARIFI_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "ARIFI_OPENAI_BASE_URL", "OPENAI_BASE_URL")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that bounds and enumerations are usable.
func (c *Config) Validate() error {
	switch c.Generation.Provider {
	case ProviderAuto, ProviderAnthropic, ProviderOpenAI, ProviderStub:
	default:
		return fmt.Errorf("invalid generation.provider %q: expected one of auto, anthropic, openai, stub", c.Generation.Provider)
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("invalid generation.max_retries %d: must be >= 0", c.Generation.MaxRetries)
	}
	if c.Generation.RetryDelay < 0 {
		return fmt.Errorf("invalid generation.retry_delay %s: must be >= 0", c.Generation.RetryDelay)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("invalid generation.timeout %s: must be > 0", c.Generation.Timeout)
	}
	if c.Generation.RateLimit < 0 {
		return fmt.Errorf("invalid generation.rate_limit %v: must be >= 0", c.Generation.RateLimit)
	}
	if c.Evolution.MaxIterations < 0 {
		return fmt.Errorf("invalid evolution.max_iterations %d: must be >= 0", c.Evolution.MaxIterations)
	}
	if c.Analysis.Timeout <= 0 {
		return fmt.Errorf("invalid analysis.timeout %s: must be > 0", c.Analysis.Timeout)
	}
	if c.Analysis.Concurrency < 1 {
		return fmt.Errorf("invalid analysis.concurrency %d: must be >= 1", c.Analysis.Concurrency)
	}
	for lang, analyzers := range c.Analysis.Analyzers {
		for i, a := range analyzers {
			if a.Name == "" || a.Command == "" {
				return fmt.Errorf("analysis.analyzers.%s[%d]: name and command are required", lang, i)
			}
		}
	}
	return nil
}

// Save writes the current configuration to the user config file.
// Credentials are written only when they were set explicitly.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("generation.provider", cfg.Generation.Provider)
	v.Set("generation.model", cfg.Generation.Model)
	v.Set("generation.max_retries", cfg.Generation.MaxRetries)
	v.Set("generation.retry_delay", cfg.Generation.RetryDelay.String())
	v.Set("generation.timeout", cfg.Generation.Timeout.String())
	v.Set("generation.max_tokens", cfg.Generation.MaxTokens)
	v.Set("generation.temperature", cfg.Generation.Temperature)
	v.Set("generation.rate_limit", cfg.Generation.RateLimit)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("openai.base_url", cfg.OpenAI.BaseURL)
	v.Set("evolution.max_iterations", cfg.Evolution.MaxIterations)
	v.Set("analysis.timeout", cfg.Analysis.Timeout.String())
	v.Set("analysis.concurrency", cfg.Analysis.Concurrency)
	if len(cfg.Analysis.Analyzers) > 0 {
		v.Set("analysis.analyzers", cfg.Analysis.Analyzers)
	}
	v.Set("output.dir", cfg.Output.Dir)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.Set("logging.max_backups", cfg.Logging.MaxBackups)

	if GetAnthropicKeySource(nil) == KeySourceNone && cfg.Anthropic.APIKey != "" {
		v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	}
	if GetOpenAIKeySource(nil) == KeySourceNone && cfg.OpenAI.APIKey != "" {
		v.Set("openai.api_key", cfg.OpenAI.APIKey)
	}

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.max_retries", d.Generation.MaxRetries)
	v.SetDefault("generation.retry_delay", d.Generation.RetryDelay.String())
	v.SetDefault("generation.timeout", d.Generation.Timeout.String())
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.rate_limit", d.Generation.RateLimit)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("evolution.max_iterations", d.Evolution.MaxIterations)

	v.SetDefault("analysis.timeout", d.Analysis.Timeout.String())
	v.SetDefault("analysis.concurrency", d.Analysis.Concurrency)

	v.SetDefault("output.dir", d.Output.Dir)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
}

// getUserConfigDir returns the XDG config directory for arifi.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "arifi")
	}

	// Fall back to ~/.config/arifi
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "arifi")
	}
	return filepath.Join(home, ".config", "arifi")
}

// findProjectConfig searches for .arifi.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Provider:    ProviderAuto,
			MaxRetries:  2,
			RetryDelay:  time.Second,
			Timeout:     60 * time.Second,
			MaxTokens:   2000,
			Temperature: 0.2,
		},
		Evolution: EvolutionConfig{
			MaxIterations: 3,
		},
		Analysis: AnalysisConfig{
			Timeout:     20 * time.Second,
			Concurrency: 1,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
