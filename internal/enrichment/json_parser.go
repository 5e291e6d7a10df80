package enrichment

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled patterns; compiling per parse is far slower than reuse.
var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	lineCommentRegex   = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	jsonObjectRegex    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// maxResponseSize guards against pathological responses blowing up memory
const maxResponseSize = 4 * 1024 * 1024

// parseResponse decodes a model response into T, tolerating the common
// formatting quirks of LLM JSON output. Strategies, in order:
//
//  1. direct JSON parse
//  2. strip markdown code fences and retry
//  3. fix trailing commas and comments and retry
//  4. extract the outermost JSON object from mixed prose and retry
//
// context names the call site in error messages and debug logs.
func parseResponse[T any](text, context string) (T, error) {
	var zero T

	if len(text) > maxResponseSize {
		return zero, fmt.Errorf("%s: response exceeds %d bytes", context, maxResponseSize)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("%s: empty response", context)
	}

	if v, err := tryDecode[T](trimmed); err == nil {
		return v, nil
	} else {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"context", context, "error", err, "preview", preview(trimmed, 120))
	}

	unfenced := trimmed
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		unfenced = strings.TrimSpace(m[1])
		if v, err := tryDecode[T](unfenced); err == nil {
			return v, nil
		}
	}

	cleaned := cleanupJSON(unfenced)
	if v, err := tryDecode[T](cleaned); err == nil {
		return v, nil
	}

	if extracted := jsonObjectRegex.FindString(cleaned); extracted != "" {
		if v, err := tryDecode[T](extracted); err == nil {
			return v, nil
		}
	}

	return zero, fmt.Errorf("%s: no parsing strategy produced valid JSON (preview: %s)", context, preview(text, 200))
}

func tryDecode[T any](text string) (T, error) {
	var v T
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// cleanupJSON removes comments and trailing commas, the two quirks that
// show up most often in model output.
func cleanupJSON(text string) string {
	out := blockCommentRegex.ReplaceAllString(text, "")
	out = lineCommentRegex.ReplaceAllString(out, "")
	out = trailingCommaRegex.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
