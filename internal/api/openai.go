package api

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig contains configuration for creating an OpenAIClient.
type OpenAIConfig struct {
	// Model is the chat model to use.
	Model string
	// APIKey is the OpenAI API key. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string
}

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	tracker *TokenTracker
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		tracker: NewTokenTracker(),
	}, nil
}

// Name implements Provider.
func (o *OpenAIClient) Name() string {
	return "openai"
}

// Model implements Provider.
func (o *OpenAIClient) Model() string {
	return o.model
}

// Tracker returns the token tracker for this client.
func (o *OpenAIClient) Tracker() *TokenTracker {
	return o.tracker
}

// Complete sends a system and user message and returns the first choice.
func (o *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	// go-openai omits a zero temperature, which the server reads as 1.0.
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", Classify(fmt.Errorf("openai chat completion: %w", err))
	}

	o.tracker.Add(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var (
	_ Provider      = (*OpenAIClient)(nil)
	_ TokenReporter = (*OpenAIClient)(nil)
)
