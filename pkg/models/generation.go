package models

// GenerationRequest is a request for a fresh artifact. It is not modified
// after it has been issued.
type GenerationRequest struct {
	// Prompt is the natural-language description of the program to write.
	Prompt string `json:"prompt" yaml:"prompt"`
	// Language is the target language.
	Language Language `json:"language" yaml:"language"`
	// Instructions are free-form extra requirements appended to the prompt.
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
}

// ProviderInfo identifies the backend that produced a result.
type ProviderInfo struct {
	Name  string `json:"name" yaml:"name"`
	Model string `json:"model" yaml:"model"`
}

// GenerationResult is the outcome of a generate or repair call.
// Code and Error are empty when absent.
type GenerationResult struct {
	// Success reports whether usable code was produced.
	Success bool `json:"success" yaml:"success"`
	// Code is the extracted code payload.
	Code string `json:"code,omitempty" yaml:"code,omitempty"`
	// RawResponse is the unprocessed provider response.
	RawResponse string `json:"raw_response,omitempty" yaml:"raw_response,omitempty"`
	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// Provider identifies the backend and model.
	Provider ProviderInfo `json:"provider" yaml:"provider"`
	// Attempts is the number of remote calls made, including retries.
	Attempts int `json:"attempts" yaml:"attempts"`
	// Fenced is true when Code came from a fenced block rather than the
	// whole response.
	Fenced bool `json:"fenced" yaml:"fenced"`
}
