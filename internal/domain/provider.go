package domain

import "context"

// Provider is the interface all language-model backends must implement.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	// Configured reports whether a credential is present. Callers must not
	// invoke Chat on an unconfigured provider.
	Configured() bool
	Healthy(ctx context.Context) error
}

// ChatRequest is a single conversational exchange. Prompt is the new user
// turn and is never part of History.
type ChatRequest struct {
	System      string
	History     []Turn
	Prompt      string
	Model       string
	Temperature *float64 // nil leaves the service default; 0 is sent as 0
}

type ChatResponse struct {
	Text         string
	FinishReason string
	Usage        Usage
	LatencyMs    int64 // time taken for this call in milliseconds
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
