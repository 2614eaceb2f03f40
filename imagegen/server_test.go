// ABOUTME: Tests for the generation API server and its orchestrator-side client.
// ABOUTME: Uses httptest with fake image model and pinner collaborators.
package imagegen_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/imagegen"
	"github.com/2389-research/promptmint/ipfs"
)

type fakeModel struct {
	url string
	err error

	mu      sync.Mutex
	prompts []string
}

func (f *fakeModel) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.url, f.err
}

type fakePinner struct {
	configured bool
	err        error
}

func (f *fakePinner) Configured() bool { return f.configured }

func (f *fakePinner) Upload(ctx context.Context, imageURL, prompt string) (ipfs.UploadResult, error) {
	if f.err != nil {
		return ipfs.UploadResult{}, f.err
	}
	return ipfs.UploadResult{
		CID:        "bafymeta",
		ImageCID:   "bafyimage",
		TokenURI:   "ipfs://bafymeta",
		PreviewURL: "https://ipfs.io/ipfs/bafyimage",
	}, nil
}

func fixedClock() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestServer(t *testing.T, model imagegen.ImageModel, pinner imagegen.Pinner) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(imagegen.NewServer("", model, pinner, imagegen.WithServerClock(fixedClock)))
	t.Cleanup(srv.Close)
	return srv
}

func postGenerate(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url+"/api/generate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decodeAPIError(t *testing.T, raw []byte) imagegen.APIError {
	t.Helper()
	var e imagegen.APIError
	if err := json.Unmarshal(raw, &e); err != nil {
		t.Fatalf("decode error body %q: %v", raw, err)
	}
	return e
}

func TestGenerateSuccess(t *testing.T) {
	model := &fakeModel{url: "https://images.example/cat.png"}
	srv := newTestServer(t, model, &fakePinner{configured: true})

	resp, raw := postGenerate(t, srv.URL, `{"prompt":"  a cat in space  "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", resp.StatusCode, raw)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
	var got imagegen.GenerateResponse
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Success || got.TokenURI != "ipfs://bafymeta" || got.PreviewURL != "https://ipfs.io/ipfs/bafyimage" {
		t.Errorf("response = %+v", got)
	}
	if len(model.prompts) != 1 || model.prompts[0] != "a cat in space" {
		t.Errorf("model prompts = %q, want trimmed prompt", model.prompts)
	}
}

func TestGenerateFailureCodes(t *testing.T) {
	cases := []struct {
		name       string
		model      imagegen.ImageModel
		pinner     imagegen.Pinner
		body       string
		wantStatus int
		wantCode   imagegen.ErrorCode
	}{
		{"missing key", nil, &fakePinner{configured: true}, `{"prompt":"a cat"}`,
			http.StatusInternalServerError, imagegen.CodeMissingAPIToken},
		{"bad json", &fakeModel{url: "u"}, &fakePinner{configured: true}, `{"prompt":`,
			http.StatusBadRequest, imagegen.CodeInvalidJSON},
		{"empty prompt", &fakeModel{url: "u"}, &fakePinner{configured: true}, `{"prompt":"   "}`,
			http.StatusBadRequest, imagegen.CodeInvalidPrompt},
		{"denylisted", &fakeModel{url: "u"}, &fakePinner{configured: true}, `{"prompt":"some NSFW thing"}`,
			http.StatusBadRequest, imagegen.CodeInvalidPrompt},
		{"empty result", &fakeModel{err: imagegen.ErrEmptyResult}, &fakePinner{configured: true}, `{"prompt":"a cat"}`,
			http.StatusInternalServerError, imagegen.CodeGenerationFailed},
		{"no url", &fakeModel{err: imagegen.ErrInvalidImageURL}, &fakePinner{configured: true}, `{"prompt":"a cat"}`,
			http.StatusInternalServerError, imagegen.CodeInvalidImageURL},
		{"rate limited", &fakeModel{err: errors.New("Rate limit reached for images")}, &fakePinner{configured: true}, `{"prompt":"a cat"}`,
			http.StatusTooManyRequests, imagegen.CodeRateLimited},
		{"auth", &fakeModel{err: errors.New("401 Incorrect API key provided")}, &fakePinner{configured: true}, `{"prompt":"a cat"}`,
			http.StatusUnauthorized, imagegen.CodeAuthFailed},
		{"deadline", &fakeModel{err: context.DeadlineExceeded}, &fakePinner{configured: true}, `{"prompt":"a cat"}`,
			http.StatusRequestTimeout, imagegen.CodeTimeout},
		{"other upstream", &fakeModel{err: errors.New("boom")}, &fakePinner{configured: true}, `{"prompt":"a cat"}`,
			http.StatusInternalServerError, imagegen.CodeInternalError},
		{"pin failure", &fakeModel{url: "u"}, &fakePinner{configured: true, err: errors.New("Pinata upload failed: 500")}, `{"prompt":"a cat"}`,
			http.StatusInternalServerError, imagegen.CodeIPFSUploadFailed},
		{"pinning unconfigured", &fakeModel{url: "u"}, &fakePinner{}, `{"prompt":"a cat"}`,
			http.StatusInternalServerError, imagegen.CodeIPFSUploadFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.model, tc.pinner)
			resp, raw := postGenerate(t, srv.URL, tc.body)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tc.wantStatus, raw)
			}
			e := decodeAPIError(t, raw)
			if e.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", e.Code, tc.wantCode)
			}
			if e.Error == "" {
				t.Errorf("empty error message")
			}
			if e.Timestamp != "2026-03-01T12:00:00Z" {
				t.Errorf("timestamp = %q", e.Timestamp)
			}
		})
	}
}

func TestGenerateMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeModel{url: "u"}, &fakePinner{configured: true})
	resp, err := http.Get(srv.URL + "/api/generate")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if e := decodeAPIError(t, raw); e.Code != imagegen.CodeMethodNotAllowed {
		t.Errorf("code = %s, want METHOD_NOT_ALLOWED", e.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeModel{url: "u"}, &fakePinner{})

	resp, err := http.Head(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("HEAD status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var h imagegen.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" || !h.Generation || h.Pinning {
		t.Errorf("health = %+v", h)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeModel{url: "u"}, &fakePinner{configured: true})
	postGenerate(t, srv.URL, `{"prompt":"a cat"}`)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "promptmint_imagegen_generate_total") {
		t.Errorf("metrics output missing generate counter")
	}
}

func TestClientGenerate(t *testing.T) {
	srv := newTestServer(t, &fakeModel{url: "u"}, &fakePinner{configured: true})
	c := imagegen.NewClient(srv.URL+"/api/generate", nil)

	got, err := c.Generate(context.Background(), "a cat")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.ImageURL != "https://ipfs.io/ipfs/bafyimage" || got.TokenURI != "ipfs://bafymeta" {
		t.Errorf("result = %+v", got)
	}
}

func TestClientMapsServiceCodes(t *testing.T) {
	cases := []struct {
		name      string
		model     imagegen.ImageModel
		pinner    imagegen.Pinner
		prompt    string
		wantKind  apperr.Kind
		retryable bool
	}{
		{"rate limited", &fakeModel{err: errors.New("rate limit")}, &fakePinner{configured: true}, "a cat",
			apperr.KindRateLimit, true},
		{"missing token", nil, &fakePinner{configured: true}, "a cat",
			apperr.KindAuthentication, false},
		{"content policy", &fakeModel{url: "u"}, &fakePinner{configured: true}, "hate speech",
			apperr.KindContentPolicy, false},
		{"empty result", &fakeModel{err: imagegen.ErrEmptyResult}, &fakePinner{configured: true}, "a cat",
			apperr.KindGenerationFailed, true},
		{"upload", &fakeModel{url: "u"}, &fakePinner{configured: true, err: errors.New("down")}, "a cat",
			apperr.KindIPFSUploadFailed, true},
		{"internal", &fakeModel{err: errors.New("boom")}, &fakePinner{configured: true}, "a cat",
			apperr.KindUnknown, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.model, tc.pinner)
			c := imagegen.NewClient(srv.URL+"/api/generate", nil)
			_, err := c.Generate(context.Background(), tc.prompt)
			if err == nil {
				t.Fatalf("expected error")
			}
			got := apperr.Classify(err)
			if got.Kind != tc.wantKind || got.Retryable != tc.retryable {
				t.Errorf("classified = %s retryable=%t, want %s retryable=%t", got.Kind, got.Retryable, tc.wantKind, tc.retryable)
			}
		})
	}
}

func TestClientTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := imagegen.NewClient(url+"/api/generate", nil).Generate(context.Background(), "a cat")
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := apperr.Classify(err); got.Kind != apperr.KindNetwork || !got.Retryable {
		t.Errorf("classified = %s retryable=%t, want NETWORK_ERROR retryable", got.Kind, got.Retryable)
	}
}
