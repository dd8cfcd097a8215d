// Package prompt loads prompt files and guesses the target language from
// the prompt text.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/ShayCichocki/arifi/pkg/models"
)

// ErrPromptNotFound is returned when the prompt file does not exist.
var ErrPromptNotFound = errors.New("prompt file not found")

var (
	javascriptPattern = regexp.MustCompile(`\b(javascript|js|node\.?js)\b|\.js\b`)
	typescriptPattern = regexp.MustCompile(`\b(typescript|ts)\b|\.ts\b`)
)

// Load reads the prompt at path and trims surrounding whitespace.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrPromptNotFound, path)
		}
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// DetectLanguage picks a target language from keywords in the prompt.
// JavaScript wins over TypeScript when both appear; anything else is
// Python.
func DetectLanguage(prompt string) models.Language {
	lower := strings.ToLower(prompt)
	switch {
	case javascriptPattern.MatchString(lower):
		return models.LanguageJavaScript
	case typescriptPattern.MatchString(lower):
		return models.LanguageTypeScript
	default:
		return models.LanguagePython
	}
}

// Resolve returns the language named by override, or the detected one
// when override is empty.
func Resolve(prompt, override string) (models.Language, error) {
	if override == "" {
		return DetectLanguage(prompt), nil
	}
	lang, ok := models.ParseLanguage(override)
	if !ok {
		return "", fmt.Errorf("unknown language %q", override)
	}
	return lang, nil
}
