package main

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sprocket/internal/api"
)

var titleCaser = cases.Title(language.English)

// operationLabel turns "extract_audio" into "Extract Audio".
func operationLabel(operation string) string {
	return titleCaser.String(strings.ReplaceAll(operation, "_", " "))
}

func formatProgress(view api.JobView) string {
	return fmt.Sprintf("%.1f%%", view.Progress)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncatePath(path string, max int) string {
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-max+3:]
}

// parseParamValue turns a --param value into the type the resolver
// expects: bool, int, float, or string.
func parseParamValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if b, err := strconv.ParseBool(trimmed); err == nil {
		return b
	}
	if i, err := strconv.Atoi(trimmed); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}

// parseParams splits repeated key=value flags into a parameter map.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		params[key] = parseParamValue(value)
	}
	return params, nil
}
