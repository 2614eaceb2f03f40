// ABOUTME: Generation orchestrator: validates, probes, calls the image service under retry and records the outcome.
// ABOUTME: Drives idle -> generating -> uploading -> completed | error through the state controller.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/2389-research/promptmint/apperr"
	"github.com/2389-research/promptmint/core"
	"github.com/2389-research/promptmint/imagegen"
	"github.com/2389-research/promptmint/retry"
)

// ImageService produces an image URL and token URI for a prompt.
type ImageService interface {
	Generate(ctx context.Context, prompt string) (imagegen.Result, error)
}

const generationSuperseded = "Generation was interrupted before it finished"

// Generator runs the generation workflow against a controller.
type Generator struct {
	ctrl    *core.Controller
	images  ImageService
	network NetworkChecker
	retry   retry.Config
	tick    time.Duration
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGenerationRetry overrides the retry policy.
func WithGenerationRetry(cfg retry.Config) GeneratorOption {
	return func(g *Generator) { g.retry = cfg }
}

// WithTickInterval overrides the simulated progress cadence.
func WithTickInterval(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.tick = d }
}

// WithGenerationNetwork sets the reachability probe. nil disables probing.
func WithGenerationNetwork(nc NetworkChecker) GeneratorOption {
	return func(g *Generator) { g.network = nc }
}

// NewGenerator creates a Generator using GenerationConfig and no network probe.
func NewGenerator(ctrl *core.Controller, images ImageService, opts ...GeneratorOption) *Generator {
	g := &Generator{
		ctrl:   ctrl,
		images: images,
		retry:  retry.GenerationConfig(),
		tick:   DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs one generation for the controller's current prompt.
//
// It returns core.ErrCannotGenerate without touching state when a workflow
// is already running or the run was superseded by another intent. Every
// other failure is classified, written to the state and the ledger, and
// returned as *apperr.AppError.
func (g *Generator) Generate(ctx context.Context) (imagegen.Result, error) {
	s := g.ctrl.Snapshot()
	if s.IsGenerating() || s.IsMinting() {
		return imagegen.Result{}, core.ErrCannotGenerate
	}
	if appErr := ValidatePrompt(s.Prompt); appErr != nil {
		return imagegen.Result{}, g.abort(appErr)
	}
	if !s.CanGenerate() {
		return imagegen.Result{}, core.ErrCannotGenerate
	}
	if !online(ctx, g.network) {
		return imagegen.Result{}, g.abort(apperr.New(apperr.KindNetwork,
			"Network connection failed. Please check your internet connection.", true, nil))
	}

	if err := g.ctrl.StartGeneration(); err != nil {
		return imagegen.Result{}, err
	}
	prompt := g.ctrl.Snapshot().Generation.Prompt
	opID, err := g.ctrl.AddOperation(core.OperationGeneration, prompt)
	if err != nil {
		return imagegen.Result{}, fmt.Errorf("add generation operation: %w", err)
	}
	log.Printf("component=workflow action=generation_started operation_id=%s", opID)

	stop := startProgressTicker(g.ctrl, g.tick)
	result, err := retry.Do(ctx, g.retry, func(ctx context.Context) (imagegen.Result, error) {
		return g.images.Generate(ctx, prompt)
	}, func(attempt int, cause *apperr.AppError) {
		workflowRetries.WithLabelValues("generation").Inc()
		log.Printf("component=workflow action=generation_retry operation_id=%s attempt=%d type=%s", opID, attempt, cause.Kind)
		if err := g.ctrl.UpdateGenerationProgress(core.ProgressStarted, core.GenerationGenerating); err != nil {
			log.Printf("component=workflow action=progress_reset_failed err=%v", err)
		}
	})
	stop()
	if err != nil {
		return imagegen.Result{}, g.fail(opID, err)
	}

	if err := g.ctrl.UpdateGenerationProgress(core.ProgressUploading, core.GenerationUploading); err != nil {
		return imagegen.Result{}, g.fail(opID, err)
	}
	if result.ImageURL == "" || result.TokenURI == "" {
		return imagegen.Result{}, g.fail(opID, apperr.New(apperr.KindGenerationFailed,
			"Invalid response: missing image URL or token URI", true, nil))
	}

	if err := g.ctrl.CompleteGeneration(result.ImageURL, result.TokenURI); err != nil {
		return imagegen.Result{}, g.fail(opID, err)
	}
	if err := g.ctrl.UpdateOperation(opID, core.OperationUpdate{
		Status: core.StatusPtr(core.OperationSuccess),
		Result: &core.OperationResult{ImageURL: result.ImageURL, TokenURI: result.TokenURI},
	}); err != nil {
		log.Printf("component=workflow action=ledger_update_failed operation_id=%s err=%v", opID, err)
	}
	recordOutcome("generation", "success")
	log.Printf("component=workflow action=generation_completed operation_id=%s token_uri=%s", opID, result.TokenURI)
	return result, nil
}

// Retry clears the active error and runs a fresh generation.
func (g *Generator) Retry(ctx context.Context) (imagegen.Result, error) {
	if err := g.ctrl.ClearError(); err != nil {
		return imagegen.Result{}, err
	}
	return g.Generate(ctx)
}

// abort records a failure that happened before the ledger entry existed.
// A workflow that started in the meantime is left alone.
func (g *Generator) abort(appErr *apperr.AppError) error {
	recorded, err := g.ctrl.AbortGeneration(appErr)
	if errors.Is(err, core.ErrCannotGenerate) {
		return core.ErrCannotGenerate
	}
	if err != nil {
		return errors.Join(appErr, err)
	}
	recordOutcome("generation", string(recorded.Kind))
	return recorded
}

// fail records a failure in the state and on the ledger entry. A reducer
// rejection means another intent replaced this run; only its ledger entry
// is closed.
func (g *Generator) fail(opID string, failure error) error {
	if errors.Is(failure, core.ErrControllerClosed) {
		return failure
	}
	if core.IsRejection(failure) {
		if err := g.ctrl.UpdateOperation(opID, core.OperationUpdate{
			Status: core.StatusPtr(core.OperationFailed),
			Error:  core.StringPtr(generationSuperseded),
		}); err != nil {
			log.Printf("component=workflow action=ledger_update_failed operation_id=%s err=%v", opID, err)
		}
		recordOutcome("generation", "superseded")
		log.Printf("component=workflow action=generation_superseded operation_id=%s err=%v", opID, failure)
		return fmt.Errorf("%w: %v", core.ErrCannotGenerate, failure)
	}
	appErr, err := g.ctrl.FailGeneration(failure)
	if err != nil {
		return errors.Join(appErr, err)
	}
	if err := g.ctrl.UpdateOperation(opID, core.OperationUpdate{
		Status: core.StatusPtr(core.OperationFailed),
		Error:  core.StringPtr(appErr.Message),
	}); err != nil {
		log.Printf("component=workflow action=ledger_update_failed operation_id=%s err=%v", opID, err)
	}
	recordOutcome("generation", string(appErr.Kind))
	log.Printf("component=workflow action=generation_failed operation_id=%s type=%s retryable=%t", opID, appErr.Kind, appErr.Retryable)
	return appErr
}
