// ABOUTME: Simulated progress ticker shown while the generation call is in flight.
// ABOUTME: Ticks stay inside the 10-80 band and stop before stop() returns.
package workflow

import (
	"context"
	"time"

	"github.com/2389-research/promptmint/core"
)

// DefaultTickInterval is the simulated progress cadence.
const DefaultTickInterval = 500 * time.Millisecond

const progressStep = 10

// startProgressTicker dispatches a tick every interval until stop is called.
// No tick is dispatched after stop returns.
func startProgressTicker(ctrl *core.Controller, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				// Rejected ticks (status moved on) are expected and ignored.
				_ = ctrl.Dispatch(core.GenerationProgressTicked{
					Step:    progressStep,
					Ceiling: core.ProgressSimulated,
				})
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
