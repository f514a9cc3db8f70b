package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	antoption "github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultModel = "claude-sonnet-4-5"
	anthropicName         = "anthropic"
)

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client       *anthropic.Client
	defaultModel string
}

func NewAnthropicProvider(apiKey, baseURL, defaultModel string, httpClient *http.Client) *AnthropicProvider {
	if defaultModel == "" {
		defaultModel = anthropicDefaultModel
	}
	opts := []antoption.RequestOption{
		antoption.WithAPIKey(apiKey),
		antoption.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, antoption.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, antoption.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{client: &client, defaultModel: defaultModel}
}

func (p *AnthropicProvider) Name() string         { return anthropicName }
func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

func (p *AnthropicProvider) Send(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(req.Params.MaxOutputTokens),
		Messages:    anthropicMessages(req.Messages),
		Temperature: anthropic.Float(req.Params.Temperature),
		TopK:        anthropic.Int(int64(req.Params.TopK)),
	}
	// The API rejects temperature and top_p together on newer models.
	if req.Params.Temperature == 0 {
		params.TopP = anthropic.Float(req.Params.TopP)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.classify(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.AsText().Text != "" {
			return block.AsText().Text, nil
		}
	}
	if string(resp.StopReason) == "refusal" {
		return "", blocked(anthropicName, "refusal")
	}
	if len(resp.Content) == 0 {
		return "", &EmptyResponseError{Provider: anthropicName, Reason: "no content blocks"}
	}
	return "", malformed(anthropicName, "message has no text blocks")
}

// anthropicMessages merges consecutive same-role turns; the Messages API
// expects alternating roles.
func anthropicMessages(in []Message) []anthropic.MessageParam {
	type turn struct {
		role Role
		text []string
	}
	var turns []turn
	for _, m := range in {
		if n := len(turns); n > 0 && turns[n-1].role == m.Role {
			turns[n-1].text = append(turns[n-1].text, m.Content)
			continue
		}
		turns = append(turns, turn{role: m.Role, text: []string{m.Content}})
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.role == RoleModel {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func (p *AnthropicProvider) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Provider: anthropicName, Err: err}
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &BackendError{Provider: anthropicName, StatusCode: apiErr.StatusCode, Message: http.StatusText(apiErr.StatusCode)}
	}
	return classifyTransport(anthropicName, err)
}
