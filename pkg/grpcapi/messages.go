package grpcapi

// GenerateRequest asks for code from a natural language prompt.
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Language    string   `json:"language,omitempty"`
	MaxLength   *int32   `json:"max_length,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// CodeRequest carries the code for the debug, explain and optimize tasks.
type CodeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// Reply is the generated text of a successful task.
type Reply struct {
	Response string `json:"response"`
	Cached   bool   `json:"cached,omitempty"`
}

type HealthRequest struct{}

type HealthReply struct {
	Status          string `json:"status"`
	ModelLoaded     bool   `json:"model_loaded"`
	TokenizerLoaded bool   `json:"tokenizer_loaded"`
	Timestamp       string `json:"timestamp"`
}
