// Package api provides the remote language-model clients used for code
// generation and repair.
package api

import "context"

// CompletionRequest is a single-turn completion request.
type CompletionRequest struct {
	// System is the system instruction.
	System string
	// User is the user message.
	User string
	// MaxTokens caps the response size.
	MaxTokens int
	// Temperature is the sampling temperature.
	Temperature float64
}

// Provider is a text-in/text-out model backend.
type Provider interface {
	// Name identifies the backend, e.g. "anthropic" or "openai".
	Name() string
	// Model returns the model identifier requests are sent to.
	Model() string
	// Complete sends req and returns the response text. Errors that are
	// worth retrying are wrapped in *TransientError.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
