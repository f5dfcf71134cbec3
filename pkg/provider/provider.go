// Package provider defines the model provider contract and the loaded model handle.
package provider

import "context"

// SamplingParams controls a single generation call.
type SamplingParams struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	DoSample     bool
	PadTokenID   int // -1 lets the backend pick
	EOSTokenID   int // -1 lets the backend pick
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Encode tokenizes text. When maxLength > 0 the result is truncated to
	// at most maxLength tokens, keeping the most recent ones.
	Encode(ctx context.Context, text string, maxLength int) ([]int, error)

	// Decode turns tokens back into text, dropping BOS and EOS.
	Decode(ctx context.Context, tokens []int) (string, error)

	// EOSTokenID returns the end-of-sequence token, or -1 if unknown.
	EOSTokenID() int
}

// Model generates tokens from a prompt.
type Model interface {
	// Generate returns the prompt tokens followed by the newly sampled ones.
	Generate(ctx context.Context, tokens []int, params SamplingParams) ([]int, error)
}

// Loader authenticates against a model source and loads a tokenizer/model pair.
type Loader interface {
	Authenticate(ctx context.Context, token string) error
	Load(ctx context.Context, modelID string) (Tokenizer, Model, error)
}

// Truncate keeps the last maxLength tokens. A non-positive maxLength disables truncation.
func Truncate(tokens []int, maxLength int) []int {
	if maxLength <= 0 || len(tokens) <= maxLength {
		return tokens
	}
	return tokens[len(tokens)-maxLength:]
}
