// ABOUTME: Orchestrator-side adapter for the generation API.
// ABOUTME: Maps service error codes onto the error taxonomy and transport failures onto RawFailure.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/2389-research/promptmint/apperr"
)

// DefaultClientTimeout bounds one generate call end to end.
const DefaultClientTimeout = 2 * time.Minute

// Result is what a successful generation yields to the orchestrator.
type Result struct {
	ImageURL string
	TokenURI string
}

// Client calls POST /api/generate on a generation server.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for endpoint, the full URL of /api/generate.
// A nil hc uses a client with DefaultClientTimeout.
func NewClient(endpoint string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultClientTimeout}
	}
	return &Client{endpoint: endpoint, http: hc}
}

// Generate submits prompt and returns the preview image URL and token URI.
func (c *Client) Generate(ctx context.Context, prompt string) (Result, error) {
	body, err := json.Marshal(GenerateRequest{Prompt: prompt})
	if err != nil {
		return Result{}, fmt.Errorf("marshal generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Result{}, err
		}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Result{}, &apperr.RawFailure{Message: "request timeout: " + err.Error(), Cause: err}
		}
		return Result{}, &apperr.RawFailure{Message: "fetch failed: " + err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, &apperr.RawFailure{Message: "read generate response: " + err.Error(), Status: resp.StatusCode, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr != nil || apiErr.Code == "" {
			return Result{}, &apperr.RawFailure{
				Message: fmt.Sprintf("generation service returned %s", resp.Status),
				Status:  resp.StatusCode,
			}
		}
		log.Printf("component=imagegen action=client_failure status=%d code=%s", resp.StatusCode, apiErr.Code)
		return Result{}, ServiceError(resp.StatusCode, apiErr)
	}

	var ok GenerateResponse
	if err := json.Unmarshal(raw, &ok); err != nil {
		return Result{}, apperr.New(apperr.KindGenerationFailed, "Invalid response from generation service", true, err.Error())
	}
	return Result{ImageURL: ok.PreviewURL, TokenURI: ok.TokenURI}, nil
}

// ServiceError converts an API error body into a classified error. Known
// service codes map directly to a kind; anything else goes through the
// generic classifier as a RawFailure.
func ServiceError(status int, body APIError) *apperr.AppError {
	details := map[string]any{"code": string(body.Code), "status": status}
	if body.Details != nil {
		details["details"] = body.Details
	}

	switch body.Code {
	case CodeRateLimited:
		return apperr.New(apperr.KindRateLimit, "Too many requests. Please wait a moment before trying again.", true, details)
	case CodeTimeout:
		return apperr.New(apperr.KindTimeout, "Request timed out. Please try again.", true, details)
	case CodeAuthFailed, CodeMissingAPIToken, CodeConfigError:
		return apperr.New(apperr.KindAuthentication, "Authentication failed. Please check your configuration.", false, details)
	case CodeContentPolicyViolation:
		return apperr.New(apperr.KindContentPolicy, "Content policy violation. Please modify your prompt and try again.", false, details)
	case CodeGenerationFailed, CodeInvalidImageURL:
		return apperr.New(apperr.KindGenerationFailed, nonEmpty(body.Error, "Failed to generate image"), true, details)
	case CodeIPFSUploadFailed:
		return apperr.New(apperr.KindIPFSUploadFailed, nonEmpty(body.Error, "Failed to upload to IPFS"), true, details)
	case CodeInvalidPrompt, CodeInvalidJSON:
		if classified := apperr.FromMessage(body.Error); classified.Kind == apperr.KindContentPolicy {
			classified.Details = details
			return classified
		}
		return apperr.New(apperr.KindValidation, nonEmpty(body.Error, "Invalid prompt"), false, details)
	}

	return apperr.Classify(&apperr.RawFailure{Message: body.Error, Status: status, Code: string(body.Code)})
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
