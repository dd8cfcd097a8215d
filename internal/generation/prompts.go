package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShayCichocki/arifi/pkg/models"
)

const generateSystemPrompt = `You are an assistant that writes correct, well-documented and testable code.
For JavaScript produce idiomatic Node.js-compatible code.
For TypeScript produce strictly typed code that compiles without errors.
For Python produce Python 3.8+ code built from functions or classes with minimal external dependencies.
Return the complete program as a single fenced code block and nothing else.`

const repairSystemPrompt = `You are a code repair assistant. Read the code and the static analysis report and return a corrected, runnable version that resolves every reported problem without changing the program's intent.
Return only the repaired code in a single fenced code block.`

// generateUserPrompt builds the user message for an initial generation.
func generateUserPrompt(req models.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(req.Prompt)
	b.WriteString("\n\nTarget language: ")
	b.WriteString(string(req.Language))
	b.WriteString("\nRequirements: produce a full, runnable implementation, and include comments and example usage.")
	if req.Instructions != "" {
		b.WriteString("\nAdditional instructions: ")
		b.WriteString(req.Instructions)
	}
	return b.String()
}

// repairUserPrompt builds the user message for a repair, embedding the
// report as indented JSON.
func repairUserPrompt(code string, report models.AnalysisReport, lang models.Language) (string, error) {
	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding analysis report: %w", err)
	}

	return fmt.Sprintf("Language: %s\n\nCode:\n```%s\n%s\n```\n\nAnalysis report (lint/errors):\n%s\n\nPlease return only the repaired code inside triple backticks, and nothing else.",
		lang, lang.Extension(), code, reportJSON), nil
}
