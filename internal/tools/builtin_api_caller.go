package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextlevelbuilder/agentloop/internal/store"
)

const (
	apiCallerTimeout      = 30 * time.Second
	apiCallerMaxBodyBytes = 5 << 20
	apiCallerMaxRedirects = 5
)

// APICaller issues an HTTP request and returns the decoded response.
type APICaller struct {
	client *http.Client
}

// NewAPICaller uses client, or a default client with bounded redirects when nil.
func NewAPICaller(client *http.Client) *APICaller {
	if client == nil {
		client = &http.Client{
			Timeout: apiCallerTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 15 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= apiCallerMaxRedirects {
					return fmt.Errorf("stopped after %d redirects", apiCallerMaxRedirects)
				}
				return nil
			},
		}
	}
	return &APICaller{client: client}
}

func (a *APICaller) Name() string { return "api_caller" }
func (a *APICaller) Description() string {
	return "Calls an HTTP API and returns the status, headers and response body (parsed as JSON when possible)."
}
func (a *APICaller) ReturnType() store.ParamType { return store.ParamObject }
func (a *APICaller) Parameters() []store.ParamSpec {
	return []store.ParamSpec{
		{Name: "url", Type: store.ParamString, Required: true, Description: "Absolute http(s) URL"},
		{Name: "method", Type: store.ParamString, Description: "HTTP method, default GET"},
		{Name: "headers", Type: store.ParamObject, Description: "Request headers"},
		{Name: "body", Type: store.ParamObject, Description: "Request body, JSON-encoded for POST, PUT and PATCH"},
	}
}

func (a *APICaller) Execute(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, validationErr(a.Name(), "url must be an absolute http or https URL")
	}

	method := http.MethodGet
	if m, _ := args["method"].(string); strings.TrimSpace(m) != "" {
		method = strings.ToUpper(strings.TrimSpace(m))
	}

	var body io.Reader
	if b, ok := args["body"]; ok && b != nil && hasRequestBody(method) {
		switch v := b.(type) {
		case string:
			body = strings.NewReader(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, validationErr(a.Name(), "body is not JSON-serializable: %v", err)
			}
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, validationErr(a.Name(), "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if hdrs, ok := args["headers"].(map[string]any); ok {
		for k, v := range hdrs {
			req.Header.Set(k, fmt.Sprint(v))
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &ExecutionError{Tool: a.Name(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, apiCallerMaxBodyBytes))
	if err != nil {
		return nil, &ExecutionError{Tool: a.Name(), Err: fmt.Errorf("read response: %w", err)}
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		data = string(raw)
	}

	return map[string]any{
		"status":     resp.StatusCode,
		"statusText": statusText(resp),
		"headers":    headers,
		"data":       data,
	}, nil
}

func hasRequestBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// statusText returns the reason phrase the server sent.
func statusText(resp *http.Response) string {
	if _, phrase, ok := strings.Cut(resp.Status, " "); ok {
		return phrase
	}
	return http.StatusText(resp.StatusCode)
}
