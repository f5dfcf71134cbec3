package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// LlamaCppLoader loads models served by a llama.cpp compatible HTTP server.
// The server exposes token level endpoints, which lets the tokenizer and the
// model be driven separately.
type LlamaCppLoader struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewLlamaCppLoader creates a loader for the server at baseURL.
func NewLlamaCppLoader(baseURL string, timeout time.Duration) *LlamaCppLoader {
	return &LlamaCppLoader{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type tokenizeRequest struct {
	Content      string `json:"content"`
	AddSpecial   bool   `json:"add_special"`
	ParseSpecial bool   `json:"parse_special"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

type completionRequest struct {
	Prompt       []int   `json:"prompt"`
	NPredict     int     `json:"n_predict"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	Stream       bool    `json:"stream"`
	ReturnTokens bool    `json:"return_tokens"`
	CachePrompt  bool    `json:"cache_prompt"`
}

type completionResponse struct {
	Content string `json:"content"`
	Tokens  []int  `json:"tokens"`
	Stop    bool   `json:"stop"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type propsResponse struct {
	BOSToken  string `json:"bos_token"`
	EOSToken  string `json:"eos_token"`
	ModelPath string `json:"model_path"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Authenticate records the bearer token and checks the server accepts it.
// An empty token is allowed for servers started without --api-key.
func (l *LlamaCppLoader) Authenticate(ctx context.Context, token string) error {
	l.apiKey = token
	if _, err := l.listModels(ctx); err != nil {
		return fmt.Errorf("llamacpp: authenticate: %w", err)
	}
	return nil
}

// Load verifies the server is healthy and serving modelID, then resolves the
// special tokens used for padding and stopping.
func (l *LlamaCppLoader) Load(ctx context.Context, modelID string) (Tokenizer, Model, error) {
	if err := l.do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return nil, nil, err
	}

	ids, err := l.listModels(ctx)
	if err != nil {
		return nil, nil, err
	}
	if modelID != "" && len(ids) > 0 && !slices.Contains(ids, modelID) {
		return nil, nil, fmt.Errorf("llamacpp: %w: want %q, serving %s", ErrModelNotServed, modelID, strings.Join(ids, ", "))
	}

	b := &llamaCppBackend{loader: l, bosID: -1, eosID: -1}

	var props propsResponse
	if err := l.do(ctx, http.MethodGet, "/props", nil, &props); err == nil {
		b.bosID = l.specialTokenID(ctx, props.BOSToken)
		b.eosID = l.specialTokenID(ctx, props.EOSToken)
	}
	return b, b, nil
}

func (l *LlamaCppLoader) listModels(ctx context.Context) ([]string, error) {
	var resp modelsResponse
	if err := l.do(ctx, http.MethodGet, "/v1/models", nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// specialTokenID maps a special token's text to its id, or -1.
func (l *LlamaCppLoader) specialTokenID(ctx context.Context, text string) int {
	if text == "" {
		return -1
	}
	var resp tokenizeResponse
	err := l.do(ctx, http.MethodPost, "/tokenize", tokenizeRequest{Content: text, ParseSpecial: true}, &resp)
	if err != nil || len(resp.Tokens) != 1 {
		return -1
	}
	return resp.Tokens[0]
}

func (l *LlamaCppLoader) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("llamacpp: marshal %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("llamacpp: create request %s: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("llamacpp: do request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Op: "llamacpp " + path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("llamacpp: decode %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tokenizer + Model
// ---------------------------------------------------------------------------

type llamaCppBackend struct {
	loader *LlamaCppLoader
	bosID  int
	eosID  int
}

func (b *llamaCppBackend) EOSTokenID() int { return b.eosID }

func (b *llamaCppBackend) Encode(ctx context.Context, text string, maxLength int) ([]int, error) {
	var resp tokenizeResponse
	req := tokenizeRequest{Content: text, AddSpecial: true, ParseSpecial: true}
	if err := b.loader.do(ctx, http.MethodPost, "/tokenize", req, &resp); err != nil {
		return nil, err
	}
	return Truncate(resp.Tokens, maxLength), nil
}

func (b *llamaCppBackend) Decode(ctx context.Context, tokens []int) (string, error) {
	kept := make([]int, 0, len(tokens))
	for _, t := range tokens {
		if (b.bosID >= 0 && t == b.bosID) || (b.eosID >= 0 && t == b.eosID) {
			continue
		}
		kept = append(kept, t)
	}

	var resp detokenizeResponse
	if err := b.loader.do(ctx, http.MethodPost, "/detokenize", detokenizeRequest{Tokens: kept}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (b *llamaCppBackend) Generate(ctx context.Context, tokens []int, params SamplingParams) ([]int, error) {
	req := completionRequest{
		Prompt:       tokens,
		NPredict:     params.MaxNewTokens,
		Temperature:  params.Temperature,
		TopP:         params.TopP,
		ReturnTokens: true,
		CachePrompt:  true,
	}
	// Greedy decoding when sampling is off.
	if !params.DoSample {
		req.Temperature = 0
	}

	var resp completionResponse
	if err := b.loader.do(ctx, http.MethodPost, "/completion", req, &resp); err != nil {
		return nil, err
	}

	generated := resp.Tokens
	if len(generated) == 0 && resp.Content != "" {
		// Older servers ignore return_tokens.
		var tr tokenizeResponse
		if err := b.loader.do(ctx, http.MethodPost, "/tokenize", tokenizeRequest{Content: resp.Content}, &tr); err != nil {
			return nil, err
		}
		generated = tr.Tokens
	}

	eos := params.EOSTokenID
	if eos < 0 {
		eos = b.eosID
	}
	if eos >= 0 {
		if i := slices.Index(generated, eos); i >= 0 {
			generated = generated[:i]
		}
	}

	out := make([]int, 0, len(tokens)+len(generated))
	out = append(out, tokens...)
	return append(out, generated...), nil
}
