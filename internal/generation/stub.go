package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/arifi/pkg/models"
)

// StubName identifies the stub backend in results.
const StubName = "stub"

// Stub is a deterministic offline Generator. Generate returns a small
// language template that embeds the first line of the prompt; Repair
// returns its input unchanged.
type Stub struct{}

// NewStub creates a stub generator.
func NewStub() *Stub {
	return &Stub{}
}

// Info implements Generator.
func (s *Stub) Info() models.ProviderInfo {
	return models.ProviderInfo{Name: StubName, Model: StubName}
}

// Generate implements Generator.
func (s *Stub) Generate(_ context.Context, req models.GenerationRequest) models.GenerationResult {
	code := stubTemplate(req.Language, firstLine(req.Prompt))
	return models.GenerationResult{
		Success:     true,
		Code:        code,
		RawResponse: code,
		Provider:    s.Info(),
	}
}

// Repair implements Generator.
func (s *Stub) Repair(_ context.Context, code string, _ models.AnalysisReport, _ models.Language) models.GenerationResult {
	return models.GenerationResult{
		Success:     true,
		Code:        code,
		RawResponse: code,
		Provider:    s.Info(),
	}
}

func firstLine(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if i := strings.IndexByte(prompt, '\n'); i >= 0 {
		prompt = prompt[:i]
	}
	return strings.TrimSpace(prompt)
}

func stubTemplate(lang models.Language, line string) string {
	switch lang {
	case models.LanguageJavaScript:
		return fmt.Sprintf(`// Generated (stub) JavaScript code for prompt:
// %s

function add(a, b) {
  return a + b;
}

// Example usage:
console.log("2 + 3 =", add(2, 3));
`, line)
	case models.LanguageTypeScript:
		return fmt.Sprintf(`// Generated (stub) TypeScript code for prompt:
// %s

export function add(a: number, b: number): number {
  return a + b;
}

// Example usage:
console.log("2 + 3 =", add(2, 3));
`, line)
	case models.LanguagePython:
		return fmt.Sprintf(`# Generated (stub) Python code for prompt:
# %s


def add(a: int, b: int) -> int:
    return a + b


if __name__ == "__main__":
    print("2 + 3 =", add(2, 3))
`, line)
	default:
		return fmt.Sprintf(`Generated (stub) text for prompt:
%s

add(a, b) = a + b
Example: add(2, 3) = 5
`, line)
	}
}

var _ Generator = (*Stub)(nil)
