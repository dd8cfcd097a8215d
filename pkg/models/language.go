package models

import "strings"

// Language is the target language of a generated artifact.
type Language string

const (
	// LanguagePython targets Python 3.
	LanguagePython Language = "python"
	// LanguageJavaScript targets Node.js-compatible JavaScript.
	LanguageJavaScript Language = "javascript"
	// LanguageTypeScript targets TypeScript.
	LanguageTypeScript Language = "typescript"
	// LanguageText is used for anything without a known toolchain.
	LanguageText Language = "text"
)

// Valid returns true if the language is a known value.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageText:
		return true
	default:
		return false
	}
}

// Extension returns the file extension (without the dot) used when an
// artifact in this language is persisted.
func (l Language) Extension() string {
	switch l {
	case LanguagePython:
		return "py"
	case LanguageJavaScript:
		return "js"
	case LanguageTypeScript:
		return "ts"
	default:
		return "txt"
	}
}

// ParseLanguage maps a user supplied name or alias to a Language.
// Unrecognised names map to LanguageText and ok=false.
func ParseLanguage(s string) (lang Language, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python", "python3", "py":
		return LanguagePython, true
	case "javascript", "js", "node", "nodejs":
		return LanguageJavaScript, true
	case "typescript", "ts":
		return LanguageTypeScript, true
	case "text", "txt", "plain":
		return LanguageText, true
	default:
		return LanguageText, false
	}
}
