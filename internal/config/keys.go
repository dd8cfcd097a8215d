// Package config provides API key management utilities.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// Environment variables holding provider credentials.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// GetAnthropicKey returns the Anthropic API key.
// It checks in order: environment variable, config file.
func GetAnthropicKey(cfg *Config) (string, error) {
	var configured string
	if cfg != nil {
		configured = cfg.Anthropic.APIKey
	}
	return resolveKey(EnvAnthropicAPIKey, configured)
}

// GetOpenAIKey returns the OpenAI API key.
// It checks in order: environment variable, config file.
func GetOpenAIKey(cfg *Config) (string, error) {
	var configured string
	if cfg != nil {
		configured = cfg.OpenAI.APIKey
	}
	return resolveKey(EnvOpenAIAPIKey, configured)
}

func resolveKey(envVar, configured string) (string, error) {
	// First check environment variable directly
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}

	// Then check config
	if configured != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAnthropicKeySource returns where the Anthropic API key was sourced from.
func GetAnthropicKeySource(cfg *Config) KeySource {
	var configured string
	if cfg != nil {
		configured = cfg.Anthropic.APIKey
	}
	return keySource(EnvAnthropicAPIKey, configured)
}

// GetOpenAIKeySource returns where the OpenAI API key was sourced from.
func GetOpenAIKeySource(cfg *Config) KeySource {
	var configured string
	if cfg != nil {
		configured = cfg.OpenAI.APIKey
	}
	return keySource(EnvOpenAIAPIKey, configured)
}

func keySource(envVar, configured string) KeySource {
	if os.Getenv(envVar) != "" {
		return KeySourceEnv
	}

	if configured != "" {
		key := os.ExpandEnv(configured)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
