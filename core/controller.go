// ABOUTME: Goroutine-based Controller that serializes every AppState mutation.
// ABOUTME: Broadcasts each accepted change to subscribers and exposes intent helpers.
package core

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/promptmint/apperr"
)

// Change is broadcast after an action is applied.
type Change struct {
	Action Action
	State  AppState
}

// ChangeBroadcaster fans changes out to subscribers. Each subscriber gets a
// buffered channel. Broadcast drops for a full lossy subscriber and counts
// the drop; a lossless subscriber blocks Broadcast until it has room.
type ChangeBroadcaster struct {
	mu          sync.RWMutex
	subscribers []*subscription

	// released is guarded by releaseMu, not mu: Unsubscribe must reach it
	// while a blocked Broadcast holds mu.
	releaseMu sync.Mutex
	released  map[chan Change]*subscription
}

type subscription struct {
	ch       chan Change
	lossless bool
	gone     chan struct{}
}

const subscriberBuffer = 1024

// Subscribe creates a new buffered channel for receiving changes. Changes
// are dropped when the buffer is full.
func (b *ChangeBroadcaster) Subscribe() chan Change {
	return b.subscribe(false)
}

// SubscribeLossless creates a channel that never drops a change. The
// subscriber must keep draining it or unsubscribe.
func (b *ChangeBroadcaster) SubscribeLossless() chan Change {
	return b.subscribe(true)
}

func (b *ChangeBroadcaster) subscribe(lossless bool) chan Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &subscription{
		ch:       make(chan Change, subscriberBuffer),
		lossless: lossless,
		gone:     make(chan struct{}),
	}
	b.subscribers = append(b.subscribers, sub)

	b.releaseMu.Lock()
	if b.released == nil {
		b.released = make(map[chan Change]*subscription)
	}
	b.released[sub.ch] = sub
	b.releaseMu.Unlock()
	return sub.ch
}

func (b *ChangeBroadcaster) release(ch chan Change) {
	b.releaseMu.Lock()
	defer b.releaseMu.Unlock()
	if sub, ok := b.released[ch]; ok {
		close(sub.gone)
		delete(b.released, ch)
	}
}

// Unsubscribe removes a channel from the subscriber list and closes it.
func (b *ChangeBroadcaster) Unsubscribe(ch chan Change) {
	b.release(ch)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub.ch == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Broadcast sends a change to all subscribers.
func (b *ChangeBroadcaster) Broadcast(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.lossless {
			select {
			case sub.ch <- c:
			case <-sub.gone:
			}
			continue
		}
		select {
		case sub.ch <- c:
		default:
			broadcastDrops.WithLabelValues(c.Action.ActionType()).Inc()
			log.Printf("component=core action=broadcast_drop type=%s", c.Action.ActionType())
		}
	}
}

func (b *ChangeBroadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		b.release(sub.ch)
		close(sub.ch)
	}
	b.subscribers = nil
}

type actionMessage struct {
	action Action
	reply  chan error
}

// Option configures a Controller.
type Option func(*Controller)

// WithReporter sets the monitoring side channel used by FailGeneration and
// FailMinting. Defaults to apperr.LogReporter.
func WithReporter(r apperr.Reporter) Option {
	return func(c *Controller) { c.reporter = r }
}

// WithClock overrides the time source used to stamp state and ledger entries.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns the canonical AppState. It is safe for concurrent use;
// all mutations run one at a time on the controller goroutine.
type Controller struct {
	actionCh    chan actionMessage
	done        chan struct{}
	closeOnce   sync.Once
	broadcaster *ChangeBroadcaster
	reporter    apperr.Reporter
	now         func() time.Time

	mu    sync.RWMutex // protects state
	state AppState
}

// Spawn starts a Controller goroutine seeded with initial.
func Spawn(initial AppState, opts ...Option) *Controller {
	c := &Controller{
		actionCh:    make(chan actionMessage, 64),
		done:        make(chan struct{}),
		broadcaster: &ChangeBroadcaster{},
		reporter:    apperr.LogReporter{},
		now:         time.Now,
		state:       initial,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	for {
		select {
		case msg := <-c.actionCh:
			select {
			case <-c.done:
				msg.reply <- ErrControllerClosed
				continue
			default:
			}
			msg.reply <- c.apply(msg.action)
		case <-c.done:
			c.broadcaster.closeAll()
			return
		}
	}
}

func (c *Controller) apply(a Action) error {
	c.mu.RLock()
	current := c.state
	c.mu.RUnlock()

	next, err := Reduce(current, a, c.now())
	if err != nil {
		log.Printf("component=core action=reject type=%s err=%v", a.ActionType(), err)
		return err
	}

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	c.broadcaster.Broadcast(Change{Action: a, State: next})
	return nil
}

// Dispatch applies an action and waits for the result.
func (c *Controller) Dispatch(a Action) error {
	select {
	case <-c.done:
		return ErrControllerClosed
	default:
	}

	reply := make(chan error, 1)
	select {
	case c.actionCh <- actionMessage{action: a, reply: reply}:
	case <-c.done:
		return ErrControllerClosed
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return ErrControllerClosed
	}
}

// Close stops the controller and closes every subscriber channel.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() AppState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe returns a channel receiving every accepted change.
func (c *Controller) Subscribe() chan Change {
	return c.broadcaster.Subscribe()
}

// SubscribeLossless returns a channel receiving every accepted change
// without drops. Mutations wait while its buffer is full.
func (c *Controller) SubscribeLossless() chan Change {
	return c.broadcaster.SubscribeLossless()
}

// Unsubscribe removes and closes a subscriber channel.
func (c *Controller) Unsubscribe(ch chan Change) {
	c.broadcaster.Unsubscribe(ch)
}

// Now returns the controller's clock reading.
func (c *Controller) Now() time.Time { return c.now() }

func (c *Controller) SetPrompt(prompt string) error {
	return c.Dispatch(SetPrompt{Prompt: prompt})
}

func (c *Controller) StartGeneration() error {
	return c.Dispatch(StartGeneration{})
}

func (c *Controller) UpdateGenerationProgress(progress int, status GenerationStatus) error {
	return c.Dispatch(UpdateGenerationProgress{Progress: progress, Status: status})
}

func (c *Controller) CompleteGeneration(imageURL, tokenURI string) error {
	return c.Dispatch(CompleteGeneration{ImageURL: imageURL, TokenURI: tokenURI})
}

// FailGeneration classifies failure, reports it and records it as the
// generation error. The classified error is returned for ledger use.
func (c *Controller) FailGeneration(failure any) (*apperr.AppError, error) {
	return c.fail(failure, "generation", false)
}

// AbortGeneration records a failure raised before a generation started. It
// returns ErrCannotGenerate and leaves state alone while a workflow runs.
func (c *Controller) AbortGeneration(failure any) (*apperr.AppError, error) {
	return c.fail(failure, "generation", true)
}

func (c *Controller) StartMinting() error {
	return c.Dispatch(StartMinting{})
}

func (c *Controller) UpdateMintingStatus(status MintingStatus, txHash string) error {
	return c.Dispatch(UpdateMintingStatus{Status: status, TxHash: txHash})
}

func (c *Controller) CompleteMinting(txHash string) error {
	return c.Dispatch(CompleteMinting{TxHash: txHash})
}

// FailMinting classifies failure, reports it and records it as the minting
// error. The classified error is returned for ledger use.
func (c *Controller) FailMinting(failure any) (*apperr.AppError, error) {
	return c.fail(failure, "minting", false)
}

// AbortMinting records a failure raised before a minting started. It
// returns ErrCannotMint and leaves state alone while a minting runs.
func (c *Controller) AbortMinting(failure any) (*apperr.AppError, error) {
	return c.fail(failure, "minting", true)
}

func (c *Controller) ClearError() error {
	return c.Dispatch(ClearError{})
}

func (c *Controller) ResetGeneration() error {
	return c.Dispatch(ResetGeneration{})
}

func (c *Controller) ResetMinting() error {
	return c.Dispatch(ResetMinting{})
}

// AddOperation creates a pending ledger entry and returns its id.
func (c *Controller) AddOperation(t OperationType, prompt string) (string, error) {
	now := c.now()
	item := OperationHistoryItem{
		ID:        NewOperationID(t, now),
		Type:      t,
		Prompt:    prompt,
		Status:    OperationPending,
		Timestamp: now.UnixMilli(),
	}
	if err := c.Dispatch(AddOperation{Item: item}); err != nil {
		return "", err
	}
	return item.ID, nil
}

func (c *Controller) UpdateOperation(id string, u OperationUpdate) error {
	return c.Dispatch(UpdateOperation{ID: id, Update: u})
}

func (c *Controller) LoadPersistedState(p PersistedState) error {
	return c.Dispatch(LoadPersistedState{Snapshot: p})
}

func (c *Controller) fail(failure any, operation string, precondition bool) (*apperr.AppError, error) {
	var appErr *apperr.AppError
	if msg, ok := failure.(string); ok {
		appErr = apperr.FromMessage(msg)
	} else {
		appErr = apperr.Classify(failure)
	}
	if appErr == nil {
		appErr = apperr.New(apperr.KindUnknown, "An unexpected error occurred.", true, nil)
	}

	var action Action = FailGeneration{Err: appErr, Precondition: precondition}
	if operation == "minting" {
		action = FailMinting{Err: appErr, Precondition: precondition}
	}
	if err := c.Dispatch(action); err != nil {
		return appErr, err
	}

	prompt := strings.TrimSpace(c.Snapshot().Prompt)
	apperr.SafeReport(c.reporter, appErr.ToErrorState(), map[string]string{
		"operation": operation,
		"prompt":    prompt,
	})
	return appErr, nil
}
