package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"styleforge-server/modules/common/cancel"
	"styleforge-server/modules/common/model"
	"styleforge-server/modules/common/notify"
)

// User-visible messages.
const (
	msgEmptyPrompt = "Please enter a prompt before generating!"
	msgGenerating  = "Generating your AI art..."
	msgSucceeded   = "🎨 AI art generated successfully!"
	msgCancelled   = "Generation cancelled"
	msgCancelling  = "Cancelling generation..."
)

// Orchestrator runs at most one submission at a time through the
// submit / retry / cancel state machine.
type Orchestrator struct {
	gen         Generator
	history     HistoryRecorder
	notifier    notify.Notifier
	log         zerolog.Logger
	maxAttempts int
	backoffBase time.Duration
	sleep       cancel.Sleeper
	newID       func() string

	mu        sync.Mutex
	state     State
	active    *Submission
	observers []func(State)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithHistory(h HistoryRecorder) Option { return func(o *Orchestrator) { o.history = h } }
func WithNotifier(n notify.Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }
func WithLogger(log zerolog.Logger) Option { return func(o *Orchestrator) { o.log = log } }
func WithSleeper(s cancel.Sleeper) Option { return func(o *Orchestrator) { o.sleep = s } }
func WithIDGenerator(f func() string) Option { return func(o *Orchestrator) { o.newID = f } }
func WithBackoffBase(d time.Duration) Option { return func(o *Orchestrator) { o.backoffBase = d } }
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// New - 3 attempts, 2^attempt * 500ms backoff unless overridden
func New(gen Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:         gen,
		notifier:    notify.Func(func(context.Context, notify.Notice) {}),
		log:         zerolog.Nop(),
		maxAttempts: 3,
		backoffBase: 500 * time.Millisecond,
		sleep:       cancel.Sleep,
		newID:       uuid.NewString,
		state:       idleState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnState registers fn to be called with every orchestrator state change.
// fn runs on the submission goroutine and must not block.
func (o *Orchestrator) OnState(fn func(State)) {
	o.mu.Lock()
	o.observers = append(o.observers, fn)
	o.mu.Unlock()
}

// State - current orchestrator state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Active returns the in-flight submission, or nil.
func (o *Orchestrator) Active() *Submission {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// Backoff - delay before the retry that follows attempt
func (o *Orchestrator) Backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * o.backoffBase
}

// Submit validates req and starts it in the background. The submission is
// detached from ctx's cancellation; use Submission.Cancel to stop it.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Submission, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		o.notifier.Notify(ctx, notify.Error(msgEmptyPrompt))
		return nil, ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrSubmissionActive
	}

	subCtx, cancelFn := context.WithCancel(context.WithoutCancel(ctx))
	s := &Submission{
		id:     o.newID(),
		orch:   o,
		ctx:    subCtx,
		cancel: cancelFn,
		done:   make(chan struct{}),
	}
	s.state = submittingState(s.id, 1)
	o.active = s
	o.state = s.state
	observers := o.snapshotObserversLocked()
	o.mu.Unlock()

	emit(observers, s.state)

	payload := Payload{
		ImageDataURL: req.Asset.DataURL(),
		Prompt:       req.Prompt,
		Style:        string(req.Style),
	}

	o.log.Info().
		Str("submission_id", s.id).
		Str("style", payload.Style).
		Bool("with_image", payload.ImageDataURL != "").
		Msg("🚀 Generation submitted")

	o.notifier.Notify(subCtx, notify.Loading(s.id, msgGenerating))
	go o.run(s, payload)
	return s, nil
}

func (o *Orchestrator) run(s *Submission, payload Payload) {
	defer close(s.done)
	defer s.cancel()

	for attempt := 1; ; attempt++ {
		if cancel.CheckBeforeAttempt(s.ctx, o.log, s.id, attempt) {
			o.finish(s, abortedState(s.id, attempt))
			return
		}
		if attempt > 1 {
			o.transition(s, submittingState(s.id, attempt))
		}

		res, err := o.attempt(s.ctx, payload)

		if cancel.CheckAfterAttempt(s.ctx, o.log, s.id, attempt) {
			o.finish(s, abortedState(s.id, attempt))
			return
		}

		switch {
		case err == nil:
			o.log.Info().Str("submission_id", s.id).Int("attempt", attempt).Str("result_id", res.ID).Msg("✅ Generation succeeded")
			o.finish(s, succeededState(s.id, attempt, res))
			return

		case errors.Is(err, ErrOverloaded) && attempt < o.maxAttempts:
			delay := o.Backoff(attempt)
			o.log.Warn().Str("submission_id", s.id).Int("attempt", attempt).Dur("backoff", delay).Msg("⚠️  Model overloaded, retrying")
			o.notifier.Notify(s.ctx, notify.Error(fmt.Sprintf("⚠️ Model overloaded (attempt %d). Retrying...", attempt)))

			if err := o.sleep(s.ctx, delay); err != nil || cancel.CheckBeforeRetry(s.ctx, o.log, s.id) {
				o.finish(s, abortedState(s.id, attempt))
				return
			}

		case errors.Is(err, ErrOverloaded):
			o.log.Error().Str("submission_id", s.id).Int("attempt", attempt).Msg("❌ Model overloaded, attempts exhausted")
			o.finish(s, failedState(s.id, attempt, ErrOverloaded))
			return

		default:
			var other *OtherError
			if !errors.As(err, &other) {
				other = &OtherError{Message: err.Error()}
			}
			o.log.Error().Err(err).Str("submission_id", s.id).Int("attempt", attempt).Msg("❌ Generation failed")
			o.finish(s, failedState(s.id, attempt, other))
			return
		}
	}
}

// attempt issues one remote call. The call runs on its own goroutine so a
// cancellation is observed even if the generator ignores ctx; its late
// outcome then lands in the buffered channel and is dropped.
func (o *Orchestrator) attempt(ctx context.Context, payload Payload) (model.GenerationResult, error) {
	type outcome struct {
		res model.GenerationResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := o.gen.Generate(ctx, payload)
		ch <- outcome{res, err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return model.GenerationResult{}, ctx.Err()
	}
}

// transition publishes a non-terminal state unless cancellation was requested.
func (o *Orchestrator) transition(s *Submission, st State) {
	s.mu.Lock()
	if s.cancelRequested || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	o.mu.Lock()
	o.state = st
	observers := o.snapshotObserversLocked()
	o.mu.Unlock()
	emit(observers, st)
}

// finish commits the terminal state. A cancellation requested before the
// commit always wins.
func (o *Orchestrator) finish(s *Submission, st State) {
	s.mu.Lock()
	if s.cancelRequested && st.Status != model.StatusAborted {
		st = abortedState(s.id, st.Attempt)
	}
	s.state = st
	s.mu.Unlock()

	ctx := context.WithoutCancel(s.ctx)
	switch st.Status {
	case model.StatusSucceeded:
		if o.history != nil {
			if err := o.history.Record(ctx, *st.Result); err != nil {
				o.log.Error().Err(err).Str("submission_id", s.id).Msg("❌ Failed to record history")
			}
		}
		o.notifier.Notify(ctx, notify.Update(s.id, notify.KindSuccess, msgSucceeded))
	case model.StatusFailed:
		o.notifier.Notify(ctx, notify.Update(s.id, notify.KindError, "❌ Generation failed: "+st.Error))
	case model.StatusAborted:
		o.log.Info().Str("submission_id", s.id).Msg("🛑 Generation aborted")
		o.notifier.Notify(ctx, notify.Dismiss(s.id))
		o.notifier.Notify(ctx, notify.Info(msgCancelled))
	}

	o.mu.Lock()
	if o.active == s {
		o.active = nil
	}
	o.state = st
	observers := o.snapshotObserversLocked()
	o.mu.Unlock()
	emit(observers, st)
}

func (o *Orchestrator) snapshotObserversLocked() []func(State) {
	if len(o.observers) == 0 {
		return nil
	}
	out := make([]func(State), len(o.observers))
	copy(out, o.observers)
	return out
}

func emit(observers []func(State), st State) {
	for _, fn := range observers {
		fn(st)
	}
}

// Submission - handle to one in-flight generation
type Submission struct {
	id     string
	orch   *Orchestrator
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu              sync.Mutex
	state           State
	cancelRequested bool
}

func (s *Submission) ID() string { return s.id }

// Done is closed once the submission reached a terminal state.
func (s *Submission) Done() <-chan struct{} { return s.done }

// State - latest state of this submission
func (s *Submission) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel requests cancellation. After it returns the submission can only end
// as Aborted, unless it had already finished. Repeated calls are no-ops.
func (s *Submission) Cancel() {
	s.mu.Lock()
	if s.cancelRequested || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.cancelRequested = true
	// notice goes out before the run loop can observe the cancellation
	s.orch.notifier.Notify(context.WithoutCancel(s.ctx), notify.Info(msgCancelling))
	s.mu.Unlock()

	s.orch.log.Info().Str("submission_id", s.id).Msg("🛑 Cancellation requested")
	s.cancel()
}

// Wait blocks until the submission finishes or ctx is done.
func (s *Submission) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.done:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Result waits for the submission and maps its terminal state onto the
// result or the matching error.
func (s *Submission) Result(ctx context.Context) (model.GenerationResult, error) {
	st, err := s.Wait(ctx)
	if err != nil {
		return model.GenerationResult{}, err
	}
	switch st.Status {
	case model.StatusSucceeded:
		return *st.Result, nil
	case model.StatusAborted:
		return model.GenerationResult{}, ErrAborted
	default:
		return model.GenerationResult{}, st.Err
	}
}
