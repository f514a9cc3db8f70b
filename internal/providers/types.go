package providers

import (
	"context"
	"strconv"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of the transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generation parameter defaults applied when an agent does not override them.
const (
	DefaultTemperature     = 0.7
	DefaultTopP            = 0.95
	DefaultTopK            = 40
	DefaultMaxOutputTokens = 8192
)

// GenerationParams are the sampling settings sent with every request.
type GenerationParams struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultParams returns the gateway defaults.
func DefaultParams() GenerationParams {
	return GenerationParams{
		Temperature:     DefaultTemperature,
		TopP:            DefaultTopP,
		TopK:            DefaultTopK,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}

// generationKeys lists accepted override keys, camelCase and snake_case.
var generationKeys = map[string]string{
	"temperature":       "temperature",
	"topP":              "topP",
	"top_p":             "topP",
	"topK":              "topK",
	"top_k":             "topK",
	"maxOutputTokens":   "maxOutputTokens",
	"max_output_tokens": "maxOutputTokens",
	"maxTokens":         "maxOutputTokens",
	"max_tokens":        "maxOutputTokens",
}

// IsGenerationParam reports whether key is a sampling override rather than
// custom prompt context.
func IsGenerationParam(key string) bool {
	_, ok := generationKeys[key]
	return ok
}

// ResolveParams applies overrides from an agent's parameter map on top of
// the defaults. Values that are not numeric are ignored.
func ResolveParams(overrides map[string]any) GenerationParams {
	p := DefaultParams()
	for k, v := range overrides {
		canonical, ok := generationKeys[k]
		if !ok {
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			continue
		}
		switch canonical {
		case "temperature":
			p.Temperature = f
		case "topP":
			p.TopP = f
		case "topK":
			p.TopK = int(f)
		case "maxOutputTokens":
			p.MaxOutputTokens = int(f)
		}
	}
	return p
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

// ChatRequest is one gateway call.
type ChatRequest struct {
	Model    string
	Messages []Message
	Params   GenerationParams
}

// Provider sends a transcript to a model backend and returns the reply text.
// Implementations never retry; failures are one of the gateway error types.
type Provider interface {
	Name() string
	DefaultModel() string
	Send(ctx context.Context, req ChatRequest) (string, error)
}
