// ABOUTME: -server mode: wires the OpenAI image model and Pinata pinning into the generation API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/2389-research/promptmint/config"
	"github.com/2389-research/promptmint/imagegen"
	"github.com/2389-research/promptmint/ipfs"
)

func runServer(ctx context.Context, cfg *config.Config, stderr io.Writer) int {
	var model imagegen.ImageModel
	if cfg.OpenAIKey != "" {
		model = imagegen.NewOpenAIImages(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.ImageModel)
	} else {
		fmt.Fprintln(stderr, "warning: OPENAI_API_KEY is not set; /api/generate will answer MISSING_API_TOKEN")
	}

	pinner := ipfs.NewClient(ipfs.Config{
		APIKey:     cfg.PinataAPIKey,
		SecretKey:  cfg.PinataSecretKey,
		Gateway:    cfg.PinataGateway,
		ModelLabel: cfg.ImageModel,
	})
	if !pinner.Configured() {
		fmt.Fprintln(stderr, "warning: PINATA_API_KEY / PINATA_SECRET_KEY are not set; uploads will fail")
	} else if !pinner.TestAuthentication(ctx) {
		fmt.Fprintln(stderr, "warning: Pinata rejected the configured credentials")
	}

	srv := imagegen.NewServer(cfg.Bind, model, pinner)
	fmt.Fprintf(stderr, "promptmint %s serving generation API on http://%s\n", version, cfg.Bind)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("component=cmd action=server_failed err=%v", err)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
