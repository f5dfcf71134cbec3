// Package prompt builds task instructions and wraps them in the model's chat template.
package prompt

import (
	"fmt"
	"strings"
)

// Default role markers of the Granite instruct chat template.
const (
	DefaultUserMarker      = "<|user|>"
	DefaultAssistantMarker = "<|assistant|>"
)

// Template wraps instructions between role markers and recovers the
// assistant turn from decoded model output.
type Template struct {
	UserMarker      string
	AssistantMarker string
}

// DefaultTemplate returns the Granite template.
func DefaultTemplate() Template {
	return Template{UserMarker: DefaultUserMarker, AssistantMarker: DefaultAssistantMarker}
}

// Format returns the exact string the model expects for a single user turn.
// The instruction is not escaped or truncated.
func (t Template) Format(instruction string) string {
	var b strings.Builder
	b.Grow(len(t.UserMarker) + len(instruction) + len(t.AssistantMarker) + 3)
	b.WriteString(t.UserMarker)
	b.WriteByte('\n')
	b.WriteString(instruction)
	b.WriteByte('\n')
	b.WriteString(t.AssistantMarker)
	b.WriteByte('\n')
	return b.String()
}

// Extract returns the trimmed text after the last assistant marker. Without a
// marker the whole trimmed text is returned. An empty result is reported as ok=false.
func (t Template) Extract(decoded string) (text string, ok bool) {
	if t.AssistantMarker != "" {
		if i := strings.LastIndex(decoded, t.AssistantMarker); i >= 0 {
			decoded = decoded[i+len(t.AssistantMarker):]
		}
	}
	text = strings.TrimSpace(decoded)
	return text, text != ""
}

// Validate rejects templates the extractor cannot split.
func (t Template) Validate() error {
	if t.UserMarker == "" || t.AssistantMarker == "" {
		return fmt.Errorf("prompt: role markers must not be empty")
	}
	if t.UserMarker == t.AssistantMarker {
		return fmt.Errorf("prompt: user and assistant markers must differ")
	}
	return nil
}
