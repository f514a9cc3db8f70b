package protocol

// Error codes returned in ErrorShape.Code.
const (
	ErrInvalidRequest    = "INVALID_REQUEST"
	ErrNotFound          = "NOT_FOUND"
	ErrPayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	ErrResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrRunFailed         = "RUN_FAILED"
	ErrToolError         = "TOOL_ERROR"
	ErrUnavailable       = "UNAVAILABLE"
	ErrInternal          = "INTERNAL"
)

// ErrorShape describes an API error.
type ErrorShape struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
	RetryAfterMs int    `json:"retryAfterMs,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorShape `json:"error"`
}
