// Package analysis runs the configured static analyzers against an artifact
// and merges their outcomes into a single report.
package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/ShayCichocki/arifi/internal/config"
	"github.com/ShayCichocki/arifi/pkg/models"
)

// PathPlaceholder is replaced by the artifact path in descriptor arguments.
const PathPlaceholder = "{path}"

// DefaultTimeout bounds an analyzer invocation when neither the descriptor
// nor the configuration sets one.
const DefaultTimeout = 20 * time.Second

// Descriptor describes how to invoke one analyzer.
type Descriptor struct {
	// Name identifies the analyzer in reports.
	Name string `json:"name" yaml:"name"`
	// Command is the executable to run.
	Command string `json:"command" yaml:"command"`
	// Args is the argument template. Each occurrence of {path} is replaced
	// by the artifact path; without a placeholder the path is appended.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Timeout overrides the aggregator timeout when positive.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Argv expands the argument template for path.
func (d Descriptor) Argv(path string) []string {
	args := make([]string, 0, len(d.Args)+1)
	substituted := false
	for _, a := range d.Args {
		if strings.Contains(a, PathPlaceholder) {
			a = strings.ReplaceAll(a, PathPlaceholder, path)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}

// Table maps a language to its analyzers, in the order they are reported.
type Table map[models.Language][]Descriptor

// DefaultTable returns the built-in analyzer table.
func DefaultTable() Table {
	return Table{
		models.LanguagePython: {
			{Name: "flake8", Command: "flake8"},
			{Name: "mypy", Command: "mypy"},
			{Name: "radon", Command: "radon", Args: []string{"cc", "-s", PathPlaceholder}},
		},
		models.LanguageJavaScript: {
			{Name: "eslint", Command: "eslint"},
		},
		models.LanguageTypeScript: {
			{Name: "eslint", Command: "eslint"},
		},
		models.LanguageText: nil,
	}
}

// TableFromConfig starts from DefaultTable and replaces the entry of every
// language present in cfg. A present but empty list disables analysis for
// that language.
func TableFromConfig(cfg config.AnalysisConfig) Table {
	table := DefaultTable()
	for key, analyzers := range cfg.Analyzers {
		lang, ok := models.ParseLanguage(key)
		if !ok {
			lang = models.Language(strings.ToLower(key))
		}
		descriptors := make([]Descriptor, 0, len(analyzers))
		for _, a := range analyzers {
			descriptors = append(descriptors, Descriptor{
				Name:    a.Name,
				Command: a.Command,
				Args:    append([]string(nil), a.Args...),
				Timeout: a.Timeout,
			})
		}
		table[lang] = descriptors
	}
	return table
}

// For returns a copy of the descriptors for lang. Unknown languages have
// no analyzers.
func (t Table) For(lang models.Language) []Descriptor {
	return append([]Descriptor(nil), t[lang]...)
}

// Languages returns the languages in the table, sorted.
func (t Table) Languages() []models.Language {
	langs := make([]models.Language, 0, len(t))
	for l := range t {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}
