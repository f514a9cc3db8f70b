package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
)

const (
	openaiDefaultModel = "gpt-4o-mini"

	dashscopeDefaultBase  = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"
	dashscopeDefaultModel = "qwen3-max"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	name         string
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider creates a provider for api.openai.com or a compatible base URL.
func NewOpenAIProvider(name, apiKey, baseURL, defaultModel string, httpClient *http.Client) *OpenAIProvider {
	if name == "" {
		name = "openai"
	}
	if defaultModel == "" {
		defaultModel = openaiDefaultModel
	}
	opts := []oaioption.RequestOption{
		oaioption.WithAPIKey(apiKey),
		oaioption.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, oaioption.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, oaioption.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{name: name, client: &client, defaultModel: defaultModel}
}

// NewDashScopeProvider is the OpenAI-compatible preset for Alibaba DashScope (Qwen).
func NewDashScopeProvider(apiKey, baseURL, defaultModel string, httpClient *http.Client) *OpenAIProvider {
	if baseURL == "" {
		baseURL = dashscopeDefaultBase
	}
	if defaultModel == "" {
		defaultModel = dashscopeDefaultModel
	}
	return NewOpenAIProvider("dashscope", apiKey, baseURL, defaultModel, httpClient)
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

func (p *OpenAIProvider) Send(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleModel {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(model),
		Messages:            msgs,
		Temperature:         openai.Float(req.Params.Temperature),
		TopP:                openai.Float(req.Params.TopP),
		MaxCompletionTokens: openai.Int(int64(req.Params.MaxOutputTokens)),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", p.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &EmptyResponseError{Provider: p.name, Reason: "no choices"}
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", blocked(p.name, choice.Message.Refusal)
	}
	if choice.Message.Content == "" {
		if choice.FinishReason == "content_filter" {
			return "", blocked(p.name, "content_filter")
		}
		return "", malformed(p.name, "choice has no content")
	}
	return choice.Message.Content, nil
}

func (p *OpenAIProvider) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Provider: p.name, Err: err}
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &BackendError{Provider: p.name, StatusCode: apiErr.StatusCode, Message: msg}
	}
	return classifyTransport(p.name, err)
}
