package wellness

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ErrEmptyOutput is returned for blank model output.
var ErrEmptyOutput = errors.New("model returned empty output")

// extractJSON returns the contents of the first fenced code block in
// content, or content itself when there is none.
func extractJSON(content string) string {
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return strings.TrimSpace(content)
}

// decodeInto parses model output onto dst. Keys missing from the output keep
// the values dst already holds, which is how per-key defaults are applied.
func decodeInto(content string, dst any) error {
	body := extractJSON(content)
	if body == "" {
		return ErrEmptyOutput
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
