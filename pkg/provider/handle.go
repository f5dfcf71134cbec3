package provider

import (
	"context"
	"fmt"
)

// Handle is the loaded tokenizer/model pair. It is immutable after Load and
// safe to share; a nil *Handle reports nothing loaded.
type Handle struct {
	modelID   string
	tokenizer Tokenizer
	model     Model
}

// NewHandle wraps an already loaded pair.
func NewHandle(modelID string, tok Tokenizer, m Model) *Handle {
	return &Handle{modelID: modelID, tokenizer: tok, model: m}
}

// Load authenticates with token and loads modelID through l.
func Load(ctx context.Context, l Loader, token, modelID string) (*Handle, error) {
	if err := l.Authenticate(ctx, token); err != nil {
		return nil, fmt.Errorf("provider: authenticate: %w", err)
	}
	tok, m, err := l.Load(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("provider: load %q: %w", modelID, err)
	}
	return NewHandle(modelID, tok, m), nil
}

// ModelID returns the id the handle was loaded for.
func (h *Handle) ModelID() string {
	if h == nil {
		return ""
	}
	return h.modelID
}

// Tokenizer returns the loaded tokenizer, or nil.
func (h *Handle) Tokenizer() Tokenizer {
	if h == nil {
		return nil
	}
	return h.tokenizer
}

// Model returns the loaded model, or nil.
func (h *Handle) Model() Model {
	if h == nil {
		return nil
	}
	return h.model
}

// ModelLoaded reports whether a model is present.
func (h *Handle) ModelLoaded() bool { return h.Model() != nil }

// TokenizerLoaded reports whether a tokenizer is present.
func (h *Handle) TokenizerLoaded() bool { return h.Tokenizer() != nil }

// Ready reports whether both halves are loaded.
func (h *Handle) Ready() bool { return h.ModelLoaded() && h.TokenizerLoaded() }
