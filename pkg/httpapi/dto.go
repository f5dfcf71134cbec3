package httpapi

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

type generateRequest struct {
	Prompt      string      `json:"prompt"`
	Language    string      `json:"language"`
	MaxLength   *flexNumber `json:"max_length"`
	Temperature *flexNumber `json:"temperature"`
}

type codeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type replyBody struct {
	Response string `json:"response"`
}

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	Status          string `json:"status"`
	ModelLoaded     bool   `json:"model_loaded"`
	TokenizerLoaded bool   `json:"tokenizer_loaded"`
	Timestamp       string `json:"timestamp"`
}

// flexNumber accepts both 512 and "512"; browser forms often send strings.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		return n.set(f)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	return n.set(f)
}

func (n *flexNumber) set(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v", f)
	}
	*n = flexNumber(f)
	return nil
}

func (n *flexNumber) intPtr() *int {
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

func (n *flexNumber) floatPtr() *float64 {
	if n == nil {
		return nil
	}
	v := float64(*n)
	return &v
}
