package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const (
	geminiDefaultModel = "gemini-2.0-flash"
	geminiName         = "gemini"
)

// GeminiProvider talks to the Gemini generateContent API.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGeminiProvider builds a Gemini client. baseURL may be empty for the
// public endpoint.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL, defaultModel string, httpClient *http.Client) (*GeminiProvider, error) {
	if defaultModel == "" {
		defaultModel = geminiDefaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GeminiProvider) Name() string         { return geminiName }
func (p *GeminiProvider) DefaultModel() string { return p.defaultModel }

func (p *GeminiProvider) Send(ctx context.Context, req ChatRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Params.Temperature)),
		TopP:            genai.Ptr(float32(req.Params.TopP)),
		TopK:            genai.Ptr(float32(req.Params.TopK)),
		MaxOutputTokens: int32(req.Params.MaxOutputTokens),
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", p.classify(err)
	}
	return geminiText(resp)
}

func (p *GeminiProvider) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Provider: geminiName, Err: err}
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{Provider: geminiName, StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &BackendError{Provider: geminiName, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return classifyTransport(geminiName, err)
}

var geminiBlockingFinish = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonRecitation:        true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonSPII:              true,
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", &EmptyResponseError{Provider: geminiName}
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", blocked(geminiName, string(fb.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", &EmptyResponseError{Provider: geminiName, Reason: "no candidates"}
	}

	// The reply is the first candidate's first text part; thought parts are skipped.
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			return part.Text, nil
		}
	}
	if geminiBlockingFinish[cand.FinishReason] {
		return "", blocked(geminiName, string(cand.FinishReason))
	}
	return "", malformed(geminiName, "candidate has no text parts")
}
