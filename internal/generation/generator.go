// Package generation turns prompts and analysis reports into code by calling
// a language-model provider, or a deterministic stub when none is available.
package generation

import (
	"context"

	"github.com/ShayCichocki/arifi/pkg/models"
)

// Generator produces initial artifacts and repairs failing ones.
// Implementations never return a nil result; failures are reported through
// GenerationResult.Success and GenerationResult.Error.
type Generator interface {
	// Generate asks for a fresh implementation of req.Prompt.
	Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult
	// Repair asks for a corrected version of code given the findings in report.
	Repair(ctx context.Context, code string, report models.AnalysisReport, lang models.Language) models.GenerationResult
	// Info identifies the backend.
	Info() models.ProviderInfo
}
