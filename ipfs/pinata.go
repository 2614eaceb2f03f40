// ABOUTME: Pinata pinning client: downloads generated images and pins image plus metadata.
// ABOUTME: Uploads run under the retry engine; failures surface as RawFailure for classification.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/retry"
)

var (
	// ErrNotConfigured indicates the Pinata credentials are missing.
	ErrNotConfigured = errors.New("pinata API keys not configured")

	// ErrImageTooLarge indicates the generated image exceeds MaxImageBytes.
	ErrImageTooLarge = errors.New("generated image exceeds size limit")
)

const (
	DefaultAPIBase    = "https://api.pinata.cloud"
	DefaultGateway    = "https://ipfs.io"
	DefaultModelLabel = "DALL-E-3"

	DefaultMaxImageBytes = 20 << 20
)

// UploadRetryConfig makes three upload attempts with 2s and 4s waits.
func UploadRetryConfig() retry.Config {
	return retry.Config{
		MaxRetries:        2,
		BaseDelay:         2 * time.Second,
		MaxDelay:          8 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Config configures a Client.
type Config struct {
	APIKey     string
	SecretKey  string
	APIBase    string // defaults to DefaultAPIBase
	Gateway    string // defaults to DefaultGateway
	ModelLabel string // defaults to DefaultModelLabel
	HTTPClient *http.Client
	Retry      *retry.Config // defaults to UploadRetryConfig

	MaxImageBytes int64 // defaults to DefaultMaxImageBytes
}

// UploadResult is what the generation service returns to callers.
type UploadResult struct {
	CID        string // metadata CID
	ImageCID   string
	TokenURI   string // ipfs://<metadata CID>
	PreviewURL string // <gateway>/ipfs/<image CID>
}

// Client pins files to Pinata.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

// NewClient returns a Client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Gateway == "" {
		cfg.Gateway = DefaultGateway
	}
	if cfg.ModelLabel == "" {
		cfg.ModelLabel = DefaultModelLabel
	}
	if cfg.Retry == nil {
		r := UploadRetryConfig()
		cfg.Retry = &r
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg, http: hc, now: time.Now}
}

// Configured reports whether both keys are present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.SecretKey != ""
}

// Upload downloads imageURL, pins it, then pins the metadata that points at it.
func (c *Client) Upload(ctx context.Context, imageURL, prompt string) (UploadResult, error) {
	if !c.Configured() {
		return UploadResult{}, ErrNotConfigured
	}

	attempt := 0
	result, err := retry.Do(ctx, *c.cfg.Retry, func(ctx context.Context) (UploadResult, error) {
		attempt++
		log.Printf("component=ipfs action=upload attempt=%d max_attempts=%d", attempt, c.cfg.Retry.MaxRetries+1)
		return c.uploadOnce(ctx, imageURL, prompt)
	}, nil)
	if err != nil {
		return UploadResult{}, fmt.Errorf("IPFS upload failed after %d attempts: %w", attempt, err)
	}
	return result, nil
}

func (c *Client) uploadOnce(ctx context.Context, imageURL, prompt string) (UploadResult, error) {
	image, contentType, err := c.download(ctx, imageURL)
	if err != nil {
		return UploadResult{}, err
	}
	imageCID, err := c.PinFile(ctx, "generated-image.png", contentType, image)
	if err != nil {
		return UploadResult{}, err
	}
	log.Printf("component=ipfs action=pinned kind=image cid=%s", imageCID)

	meta := BuildMetadata(prompt, imageCID, c.cfg.ModelLabel, c.now())
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return UploadResult{}, fmt.Errorf("marshal metadata: %w", err)
	}
	metaCID, err := c.PinFile(ctx, "metadata.json", "application/json", metaJSON)
	if err != nil {
		return UploadResult{}, err
	}
	log.Printf("component=ipfs action=pinned kind=metadata cid=%s", metaCID)

	return UploadResult{
		CID:        metaCID,
		ImageCID:   imageCID,
		TokenURI:   "ipfs://" + metaCID,
		PreviewURL: strings.TrimRight(c.cfg.Gateway, "/") + "/ipfs/" + imageCID,
	}, nil
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", apperr.Normalize(fmt.Errorf("failed to fetch image: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", apperr.Rawf(resp.StatusCode, "", "Failed to download image: %s", resp.Status)
	}
	limit := c.cfg.MaxImageBytes
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", apperr.New(apperr.KindIPFSUploadFailed,
			fmt.Sprintf("Generated image is larger than %d bytes", limit), false, ErrImageTooLarge.Error())
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// PinFile pins one file and returns its CID.
func (c *Client) PinFile(ctx context.Context, name, contentType string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}

	pinMeta, err := json.Marshal(map[string]any{
		"name": name,
		"keyvalues": map[string]string{
			"uploadedBy": "PromptMint",
			"timestamp":  c.now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal pin metadata: %w", err)
	}
	if err := mw.WriteField("pinataMetadata", string(pinMeta)); err != nil {
		return "", fmt.Errorf("write pin metadata: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", fmt.Errorf("build pin request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Normalize(fmt.Errorf("pinata connection failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperr.Rawf(resp.StatusCode, "", "Pinata upload failed: %d %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var out struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", errors.New("pin response missing IpfsHash")
	}
	return out.IpfsHash, nil
}

// TestAuthentication reports whether Pinata accepts the configured keys.
func (c *Client) TestAuthentication(ctx context.Context) bool {
	if !c.Configured() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+"/data/testAuthentication", nil)
	if err != nil {
		return false
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("component=ipfs action=test_auth_failed err=%v", err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("pinata_api_key", c.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", c.cfg.SecretKey)
}
