package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/arifi/internal/analysis"
	"github.com/ShayCichocki/arifi/internal/config"
	"github.com/ShayCichocki/arifi/internal/exec"
)

// analyzersKey shows the effective analyzer table instead of a scalar.
const analyzersKey = "analysis.analyzers"

func newConfigCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Manage configuration",
		Long: `View or modify arifi configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

'arifi config analysis.analyzers' prints the effective analyzer table as
YAML, with whether each analyzer executable is installed.

Configuration is stored at ~/.config/arifi/config.yaml
Project-specific overrides can be placed in .arifi.yaml`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch len(args) {
			case 0:
				displayAllConfig(w, cfg)
				return nil
			case 1:
				return displayConfigKey(w, cfg, args[0])
			default:
				return setConfigKey(w, cfg, args[0], args[1])
			}
		},
	}
}

// configKey reads and writes one dot-notation key.
type configKey struct {
	get func(*config.Config) string
	set func(*config.Config, string) error
}

var configKeys = map[string]configKey{
	"generation.provider": {
		get: func(c *config.Config) string { return c.Generation.Provider },
		set: func(c *config.Config, v string) error { c.Generation.Provider = v; return nil },
	},
	"generation.model": {
		get: func(c *config.Config) string { return c.Generation.Model },
		set: func(c *config.Config, v string) error { c.Generation.Model = v; return nil },
	},
	"generation.max_retries": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Generation.MaxRetries) },
		set: intSetter(func(c *config.Config, n int) { c.Generation.MaxRetries = n }),
	},
	"generation.retry_delay": {
		get: func(c *config.Config) string { return c.Generation.RetryDelay.String() },
		set: durationSetter(func(c *config.Config, d time.Duration) { c.Generation.RetryDelay = d }),
	},
	"generation.timeout": {
		get: func(c *config.Config) string { return c.Generation.Timeout.String() },
		set: durationSetter(func(c *config.Config, d time.Duration) { c.Generation.Timeout = d }),
	},
	"generation.max_tokens": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Generation.MaxTokens) },
		set: intSetter(func(c *config.Config, n int) { c.Generation.MaxTokens = n }),
	},
	"generation.temperature": {
		get: func(c *config.Config) string { return strconv.FormatFloat(c.Generation.Temperature, 'g', -1, 64) },
		set: floatSetter(func(c *config.Config, f float64) { c.Generation.Temperature = f }),
	},
	"generation.rate_limit": {
		get: func(c *config.Config) string { return strconv.FormatFloat(c.Generation.RateLimit, 'g', -1, 64) },
		set: floatSetter(func(c *config.Config, f float64) { c.Generation.RateLimit = f }),
	},
	"anthropic.api_key": {
		get: func(c *config.Config) string {
			return maskedKey(c.Anthropic.APIKey, config.GetAnthropicKeySource(c))
		},
		set: func(c *config.Config, v string) error { c.Anthropic.APIKey = v; return nil },
	},
	"anthropic.use_bedrock": {
		get: func(c *config.Config) string { return strconv.FormatBool(c.Anthropic.UseBedrock) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean: %s", v)
			}
			c.Anthropic.UseBedrock = b
			return nil
		},
	},
	"anthropic.aws_region": {
		get: func(c *config.Config) string { return c.Anthropic.AWSRegion },
		set: func(c *config.Config, v string) error { c.Anthropic.AWSRegion = v; return nil },
	},
	"anthropic.aws_profile": {
		get: func(c *config.Config) string { return c.Anthropic.AWSProfile },
		set: func(c *config.Config, v string) error { c.Anthropic.AWSProfile = v; return nil },
	},
	"openai.api_key": {
		get: func(c *config.Config) string {
			return maskedKey(c.OpenAI.APIKey, config.GetOpenAIKeySource(c))
		},
		set: func(c *config.Config, v string) error { c.OpenAI.APIKey = v; return nil },
	},
	"openai.base_url": {
		get: func(c *config.Config) string { return c.OpenAI.BaseURL },
		set: func(c *config.Config, v string) error { c.OpenAI.BaseURL = v; return nil },
	},
	"evolution.max_iterations": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Evolution.MaxIterations) },
		set: intSetter(func(c *config.Config, n int) { c.Evolution.MaxIterations = n }),
	},
	"analysis.timeout": {
		get: func(c *config.Config) string { return c.Analysis.Timeout.String() },
		set: durationSetter(func(c *config.Config, d time.Duration) { c.Analysis.Timeout = d }),
	},
	"analysis.concurrency": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Analysis.Concurrency) },
		set: intSetter(func(c *config.Config, n int) { c.Analysis.Concurrency = n }),
	},
	"output.dir": {
		get: func(c *config.Config) string { return c.Output.Dir },
		set: func(c *config.Config, v string) error { c.Output.Dir = v; return nil },
	},
	"logging.level": {
		get: func(c *config.Config) string { return c.Logging.Level },
		set: func(c *config.Config, v string) error { c.Logging.Level = v; return nil },
	},
	"logging.format": {
		get: func(c *config.Config) string { return c.Logging.Format },
		set: func(c *config.Config, v string) error { c.Logging.Format = v; return nil },
	},
	"logging.file": {
		get: func(c *config.Config) string { return c.Logging.File },
		set: func(c *config.Config, v string) error { c.Logging.File = v; return nil },
	},
	"logging.max_size_mb": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Logging.MaxSizeMB) },
		set: intSetter(func(c *config.Config, n int) { c.Logging.MaxSizeMB = n }),
	},
	"logging.max_backups": {
		get: func(c *config.Config) string { return strconv.Itoa(c.Logging.MaxBackups) },
		set: intSetter(func(c *config.Config, n int) { c.Logging.MaxBackups = n }),
	},
}

func intSetter(apply func(*config.Config, int)) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", v)
		}
		apply(c, n)
		return nil
	}
}

func floatSetter(apply func(*config.Config, float64)) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %s", v)
		}
		apply(c, f)
		return nil
	}
}

func durationSetter(apply func(*config.Config, time.Duration)) func(*config.Config, string) error {
	return func(c *config.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration: %s", v)
		}
		apply(c, d)
		return nil
	}
}

// maskedKey never reveals more than the key's prefix and last characters.
func maskedKey(key string, source config.KeySource) string {
	if key == "" {
		return config.MaskAPIKey("")
	}
	return fmt.Sprintf("%s (%s)", config.MaskAPIKey(key), source)
}

func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range sortedConfigKeys() {
		fmt.Fprintf(w, "%s: %s\n", key, configKeys[key].get(cfg))
	}
	fmt.Fprintf(w, "%s: (see 'arifi config %s')\n", analyzersKey, analyzersKey)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(w io.Writer, cfg *config.Config, key string) error {
	key = strings.ToLower(key)
	if key == analyzersKey {
		return displayAnalyzers(w, cfg, exec.NewRunner())
	}
	k, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	fmt.Fprintln(w, k.get(cfg))
	return nil
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(w io.Writer, cfg *config.Config, key, value string) error {
	key = strings.ToLower(key)
	k, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err := k.set(cfg, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(w, "Set %s = %s\n", key, k.get(cfg))
	return nil
}

// analyzerStatus is one analyzer in the config dump.
type analyzerStatus struct {
	analysis.Descriptor `yaml:",inline"`
	Installed           bool `yaml:"installed"`
}

// displayAnalyzers prints the effective analyzer table as YAML.
func displayAnalyzers(w io.Writer, cfg *config.Config, runner exec.CommandRunner) error {
	table := analysis.TableFromConfig(cfg.Analysis)
	out := make(map[string][]analyzerStatus, len(table))
	for _, lang := range table.Languages() {
		statuses := []analyzerStatus{}
		for _, d := range table.For(lang) {
			_, err := runner.LookPath(d.Command)
			statuses = append(statuses, analyzerStatus{Descriptor: d, Installed: err == nil})
		}
		out[string(lang)] = statuses
	}
	return writeYAML(w, out)
}
