// ABOUTME: Image model backed by the OpenAI images API through openai-go.
// ABOUTME: Requests one 1024x1024 standard-quality image and returns its URL.
package imagegen

import (
	"context"
	"errors"
	"log"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyResult indicates the model returned no image.
var ErrEmptyResult = errors.New("image model returned no data")

// ErrInvalidImageURL indicates the model returned an image without a URL.
var ErrInvalidImageURL = errors.New("image model returned no image url")

// ImageModel turns a prompt into a hosted image URL.
type ImageModel interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// OpenAIImages implements ImageModel with the OpenAI images endpoint.
type OpenAIImages struct {
	client openai.Client
	model  string
}

// NewOpenAIImages creates a client. An empty baseURL uses the OpenAI default;
// an empty model uses dall-e-3.
func NewOpenAIImages(apiKey, baseURL, model string) *OpenAIImages {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = string(openai.ImageModelDallE3)
	}
	return &OpenAIImages{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// GenerateImage implements ImageModel.
func (o *OpenAIImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(o.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		Quality:        openai.ImageGenerateParamsQualityStandard,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Data) == 0 {
		return "", ErrEmptyResult
	}
	url := resp.Data[0].URL
	if url == "" {
		return "", ErrInvalidImageURL
	}
	log.Printf("component=imagegen action=image_generated model=%s", o.model)
	return url, nil
}
