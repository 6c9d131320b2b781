package llm

import (
	"strings"

	"healthflow/internal/core"
)

const thinkingFormat = `Please provide your response in this format:
REASONING:
[Your step-by-step thought process]

DECISION:
[Your final recommendation]

EXPLANATION:
[Brief explanation for the user]
`

const jsonSuffix = "Respond ONLY with valid JSON, no markdown formatting."

// BuildPrompt renders the text sent to the model for req.
// Thinking prompts carry the system instruction inline followed by the
// REASONING / DECISION / EXPLANATION format block.
func BuildPrompt(req core.GenerationRequest) string {
	if req.Kind == core.KindJSON {
		return req.Prompt + "\n\n" + jsonSuffix
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(req.SystemInstruction)
	b.WriteString("\n\n")
	b.WriteString(req.Prompt)
	b.WriteString("\n\n")
	b.WriteString(thinkingFormat)
	return b.String()
}

// StripCodeFences removes a surrounding Markdown code fence (``` or ```json).
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop the info string (e.g. "json") up to the first newline.
		if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "{[") {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Section extracts the body of a REASONING / DECISION / EXPLANATION block
// from a thinking-mode response. Returns "" when the heading is absent.
func Section(text, heading string) string {
	marker := heading + ":"
	start := strings.Index(text, marker)
	if start < 0 {
		return ""
	}
	rest := text[start+len(marker):]
	end := len(rest)
	for _, next := range []string{"REASONING:", "DECISION:", "EXPLANATION:"} {
		if next == marker {
			continue
		}
		if i := strings.Index(rest, next); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}
