package llm

import (
	"encoding/json"
	"strings"
)

// coerceJSON parses model output that should be a JSON object but may
// arrive wrapped in a code fence or surrounded by prose.
func coerceJSON(text string, out any) error {
	snippet := stripCodeFence(text)
	if err := json.Unmarshal([]byte(snippet), out); err == nil {
		return nil
	}
	block := extractJSONBlock(snippet)
	if block == "" {
		return json.Unmarshal([]byte(snippet), out)
	}
	return json.Unmarshal([]byte(block), out)
}

// coerceJSONArray is coerceJSON for top-level arrays.
func coerceJSONArray(text string, out any) error {
	snippet := stripCodeFence(text)
	if err := json.Unmarshal([]byte(snippet), out); err == nil {
		return nil
	}
	start := strings.Index(snippet, "[")
	end := strings.LastIndex(snippet, "]")
	if start == -1 || end <= start {
		return json.Unmarshal([]byte(snippet), out)
	}
	return json.Unmarshal([]byte(snippet[start:end+1]), out)
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractJSONBlock(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}
