package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseArguments decodes the function-call argument JSON. The model
// occasionally emits typographic quotes or trailing commas; one repair
// pass is attempted before giving up.
func ParseArguments(raw string) (map[string]interface{}, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]interface{}{}, nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}

	repaired := repairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	return args, nil
}

func repairJSON(raw string) string {
	replacer := strings.NewReplacer(
		"“", `"`, // left double quote
		"”", `"`, // right double quote
		"‘", "'",
		"’", "'",
	)
	raw = replacer.Replace(raw)

	// Strip trailing commas outside string literals.
	var out strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			out.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(raw) && (raw[j] == ' ' || raw[j] == '\t' || raw[j] == '\n' || raw[j] == '\r') {
				j++
			}
			if j < len(raw) && (raw[j] == '}' || raw[j] == ']') {
				continue
			}
		}
		out.WriteByte(ch)
	}
	return out.String()
}
