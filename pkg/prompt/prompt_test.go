package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	got := DefaultTemplate().Format("write a loop")
	assert.Equal(t, "<|user|>\nwrite a loop\n<|assistant|>\n", got)
}

func TestExtract(t *testing.T) {
	tmpl := DefaultTemplate()

	tests := []struct {
		name    string
		decoded string
		want    string
		ok      bool
	}{
		{"after marker", "<|user|>\nq\n<|assistant|>\n  answer \n", "answer", true},
		{"last marker wins", "<|assistant|>\nfirst\n<|assistant|>\nsecond", "second", true},
		{"no marker", "  plain text\n", "plain text", true},
		{"empty after marker", "<|user|>\nq\n<|assistant|>\n \n", "", false},
		{"empty input", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tmpl.Extract(tt.decoded)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestExtractNeverReturnsMarkers(t *testing.T) {
	tmpl := Template{UserMarker: "<role:user>", AssistantMarker: "<role:assistant>"}
	formatted := tmpl.Format("reverse a string")

	got, ok := tmpl.Extract(formatted + "def reverse(s): return s[::-1]")
	require.True(t, ok)
	assert.Equal(t, "def reverse(s): return s[::-1]", got)
	assert.NotContains(t, got, tmpl.UserMarker)
	assert.NotContains(t, got, tmpl.AssistantMarker)
}

func TestBuild(t *testing.T) {
	got, err := Build(TaskGenerate, "python", "reverse a string")
	require.NoError(t, err)
	assert.Contains(t, got, "Generate python code based on the following requirements:\n\nreverse a string")
	assert.Contains(t, got, "4. Example usage")

	got, err = Build(TaskDebug, "go", "x := 1")
	require.NoError(t, err)
	assert.Contains(t, got, "Analyze the following go code for bugs and improvements:\n```go\nx := 1\n```")

	got, err = Build(TaskExplain, "rust", "fn main() {}")
	require.NoError(t, err)
	assert.Equal(t, "Explain this rust code step by step:\n```rust\nfn main() {}\n```", got)

	got, err = Build(TaskOptimize, "python", "pass")
	require.NoError(t, err)
	assert.Contains(t, got, "Give performance improvements and a better version.")

	_, err = Build(Task("translate"), "python", "pass")
	assert.Error(t, err)
}

func TestParseTask(t *testing.T) {
	for _, task := range Tasks {
		got, err := ParseTask(string(task))
		require.NoError(t, err)
		assert.Equal(t, task, got)
	}
	_, err := ParseTask("nope")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultTemplate().Validate())
	assert.Error(t, Template{UserMarker: "<u>"}.Validate())
	assert.Error(t, Template{UserMarker: "<x>", AssistantMarker: "<x>"}.Validate())
}
