package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/code-assistant/pkg/gen"
	"github.com/abdhe/code-assistant/pkg/logging"
	"github.com/abdhe/code-assistant/pkg/prompt"
	"github.com/abdhe/code-assistant/pkg/provider"
)

// echoTokenizer treats the whole text as a single token kept in a side table.
type echoTokenizer struct{ texts []string }

func (e *echoTokenizer) Encode(_ context.Context, text string, _ int) ([]int, error) {
	e.texts = append(e.texts, text)
	return []int{len(e.texts) - 1}, nil
}

func (e *echoTokenizer) Decode(_ context.Context, tokens []int) (string, error) {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(e.texts[t])
	}
	return b.String(), nil
}

func (e *echoTokenizer) EOSTokenID() int { return -1 }

type recordingModel struct {
	tok     *echoTokenizer
	reply   string
	err     error
	calls   int
	prompts []string
	params  []provider.SamplingParams
}

func (m *recordingModel) Generate(_ context.Context, tokens []int, p provider.SamplingParams) ([]int, error) {
	m.calls++
	m.prompts = append(m.prompts, m.tok.texts[tokens[0]])
	m.params = append(m.params, p)
	if m.err != nil {
		return nil, m.err
	}
	m.tok.texts = append(m.tok.texts, m.reply)
	return append(tokens, len(m.tok.texts)-1), nil
}

func newService(t *testing.T, reply string) (*Service, *recordingModel) {
	t.Helper()
	tok := &echoTokenizer{}
	m := &recordingModel{tok: tok, reply: reply}
	inv := gen.NewInvoker(gen.Config{
		Handle:    provider.NewHandle("stub", tok, m),
		Template:  prompt.Template{UserMarker: "<role:user>", AssistantMarker: "<role:assistant>"},
		QueueSize: -1,
		Logger:    logging.Discard(),
	})
	return NewService(inv, DefaultOptions(), logging.Discard()), m
}

func ptr[T any](v T) *T { return &v }

func TestGenerateScenario(t *testing.T) {
	svc, m := newService(t, "def reverse(s): return s[::-1]")

	res, err := svc.Generate(context.Background(), GenerateInput{Prompt: "reverse a string", Language: "python"})
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "def reverse(s): return s[::-1]", res.Text)

	require.Len(t, m.prompts, 1)
	assert.True(t, strings.HasPrefix(m.prompts[0], "<role:user>\nGenerate python code"))
	assert.Contains(t, m.prompts[0], "reverse a string")
	assert.True(t, strings.HasSuffix(m.prompts[0], "<role:assistant>\n"))
	assert.Equal(t, 1024, m.params[0].MaxNewTokens)
	assert.InDelta(t, 0.7, m.params[0].Temperature, 1e-9)
}

func TestGenerateOverridesAndCap(t *testing.T) {
	svc, m := newService(t, "ok")

	_, err := svc.Generate(context.Background(), GenerateInput{Prompt: "p", MaxLength: ptr(4096), Temperature: ptr(1.2)})
	require.NoError(t, err)
	assert.Equal(t, 2048, m.params[0].MaxNewTokens)
	assert.InDelta(t, 1.2, m.params[0].Temperature, 1e-9)
}

func TestGenerateDefaultsLanguage(t *testing.T) {
	svc, m := newService(t, "ok")

	_, err := svc.Generate(context.Background(), GenerateInput{Prompt: "p"})
	require.NoError(t, err)
	assert.Contains(t, m.prompts[0], "Generate python code")
}

func TestMissingFieldNeverInvokesModel(t *testing.T) {
	svc, m := newService(t, "ok")
	ctx := context.Background()

	_, err := svc.Generate(ctx, GenerateInput{Prompt: "  "})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "Prompt is required.")

	for _, fn := range []func(context.Context, CodeInput) (gen.Result, error){svc.Debug, svc.Explain, svc.Optimize} {
		_, err := fn(ctx, CodeInput{Language: "go"})
		require.ErrorIs(t, err, ErrInvalidInput)
		assert.EqualError(t, err, "Code is required.")
	}
	assert.Zero(t, m.calls)
}

func TestGenerateRejectsBadSampling(t *testing.T) {
	svc, m := newService(t, "ok")

	_, err := svc.Generate(context.Background(), GenerateInput{Prompt: "p", Temperature: ptr(3.0)})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualError(t, err, "temperature must be between 0 and 2.")

	_, err = svc.Generate(context.Background(), GenerateInput{Prompt: "p", MaxLength: ptr(0)})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, m.calls)
}

func TestCodeTasksUseFixedSampling(t *testing.T) {
	svc, m := newService(t, "analysis")
	ctx := context.Background()

	tasks := map[string]func(context.Context, CodeInput) (gen.Result, error){
		"Analyze the following go code":  svc.Debug,
		"Explain this go code":           svc.Explain,
		"Optimize the following go code": svc.Optimize,
	}
	for want, fn := range tasks {
		res, err := fn(ctx, CodeInput{Code: "x := 1", Language: "go"})
		require.NoError(t, err)
		require.True(t, res.OK())
		assert.Equal(t, "analysis", res.Text)

		last := len(m.params) - 1
		assert.Equal(t, 1024, m.params[last].MaxNewTokens)
		assert.InDelta(t, 0.3, m.params[last].Temperature, 1e-9)
		assert.Contains(t, m.prompts[last], want)
		assert.Contains(t, m.prompts[last], "```go\nx := 1\n```")
	}
}

func TestGenerationFaultIsResultNotError(t *testing.T) {
	svc, m := newService(t, "ok")
	m.err = errors.New("boom")

	res, err := svc.Debug(context.Background(), CodeInput{Code: "x"})
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.Equal(t, "Generation error: generate: boom", res.Err.Message)

	m.err = nil
	res, err = svc.Debug(context.Background(), CodeInput{Code: "x"})
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestHealthReflectsHandle(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	unloaded := NewService(gen.NewInvoker(gen.Config{}), DefaultOptions(), nil)
	unloaded.now = func() time.Time { return fixed }
	h := unloaded.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.False(t, h.ModelLoaded)
	assert.False(t, h.TokenizerLoaded)
	assert.Equal(t, fixed, h.Timestamp)

	res, err := unloaded.Generate(context.Background(), GenerateInput{Prompt: "p"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, gen.ErrModelUnavailable)

	loaded, _ := newService(t, "ok")
	h = loaded.Health()
	assert.True(t, h.ModelLoaded)
	assert.True(t, h.TokenizerLoaded)
}
