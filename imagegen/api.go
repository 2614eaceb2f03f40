// ABOUTME: Wire types and error codes of the image generation HTTP API.
// ABOUTME: Shared by the chi server and the orchestrator-side client.
package imagegen

// ErrorCode identifies a failure class in API error responses.
type ErrorCode string

const (
	CodeMissingAPIToken        ErrorCode = "MISSING_API_TOKEN"
	CodeConfigError            ErrorCode = "CONFIG_ERROR"
	CodeInvalidJSON            ErrorCode = "INVALID_JSON"
	CodeInvalidPrompt          ErrorCode = "INVALID_PROMPT"
	CodeGenerationFailed       ErrorCode = "GENERATION_FAILED"
	CodeInvalidImageURL        ErrorCode = "INVALID_IMAGE_URL"
	CodeIPFSUploadFailed       ErrorCode = "IPFS_UPLOAD_FAILED"
	CodeAuthFailed             ErrorCode = "AUTH_FAILED"
	CodeRateLimited            ErrorCode = "RATE_LIMITED"
	CodeTimeout                ErrorCode = "TIMEOUT"
	CodeContentPolicyViolation ErrorCode = "CONTENT_POLICY_VIOLATION"
	CodeInternalError          ErrorCode = "INTERNAL_ERROR"
	CodeMethodNotAllowed       ErrorCode = "METHOD_NOT_ALLOWED"
)

// GenerateRequest is the POST /api/generate body.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse is the success body.
type GenerateResponse struct {
	Success    bool   `json:"success"`
	TokenURI   string `json:"tokenURI"`
	PreviewURL string `json:"previewURL"`
}

// APIError is the failure body. Timestamp is RFC 3339.
type APIError struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	Details   any       `json:"details,omitempty"`
	Timestamp string    `json:"timestamp"`
}

// HealthResponse is the GET /api/health body.
type HealthResponse struct {
	Status     string `json:"status"`
	Generation bool   `json:"generation"`
	Pinning    bool   `json:"pinning"`
}
