package generation

import (
	"context"
	"errors"

	"styleforge-server/modules/common/model"
	"styleforge-server/modules/ingest"
)

var (
	// ErrEmptyPrompt - the prompt is blank after trimming; nothing was sent
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrOverloaded - the backend is temporarily overloaded; retryable
	ErrOverloaded = errors.New("model overloaded")
	// ErrAborted - the user cancelled the submission
	ErrAborted = errors.New("request aborted")
	// ErrSubmissionActive - another submission is still in flight
	ErrSubmissionActive = errors.New("a generation is already in progress")
)

// OtherError - any non-retryable backend failure, carrying the raw message
type OtherError struct {
	Message string
}

func (e *OtherError) Error() string { return e.Message }

// Request - what the shell asks to generate
type Request struct {
	Asset  *ingest.UploadedAsset
	Prompt string
	Style  model.Style
}

// Payload - what is sent to the remote capability
type Payload struct {
	ImageDataURL string `json:"imageDataUrl,omitempty"`
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
}

// Generator is the remote generation capability. Implementations should
// return promptly once ctx is cancelled and report overload as ErrOverloaded.
type Generator interface {
	Generate(ctx context.Context, p Payload) (model.GenerationResult, error)
}

// HistoryRecorder receives every successful result.
type HistoryRecorder interface {
	Record(ctx context.Context, r model.GenerationResult) error
}

// Error kinds reported in State.
const (
	ErrorKindOverloaded = "overloaded"
	ErrorKindOther      = "other"
)

// State - snapshot of an orchestrator or a submission
type State struct {
	Status       string                  `json:"status"`
	SubmissionID string                  `json:"submissionId,omitempty"`
	Attempt      int                     `json:"attempt,omitempty"`
	Result       *model.GenerationResult `json:"result,omitempty"`
	ErrorKind    string                  `json:"errorKind,omitempty"`
	Error        string                  `json:"error,omitempty"`

	Err error `json:"-"`
}

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	switch s.Status {
	case model.StatusSucceeded, model.StatusFailed, model.StatusAborted:
		return true
	}
	return false
}

func idleState() State { return State{Status: model.StatusIdle} }

func submittingState(id string, attempt int) State {
	return State{Status: model.StatusSubmitting, SubmissionID: id, Attempt: attempt}
}

func succeededState(id string, attempt int, r model.GenerationResult) State {
	return State{Status: model.StatusSucceeded, SubmissionID: id, Attempt: attempt, Result: &r}
}

func failedState(id string, attempt int, err error) State {
	kind := ErrorKindOther
	if errors.Is(err, ErrOverloaded) {
		kind = ErrorKindOverloaded
	}
	return State{Status: model.StatusFailed, SubmissionID: id, Attempt: attempt, ErrorKind: kind, Error: err.Error(), Err: err}
}

func abortedState(id string, attempt int) State {
	return State{Status: model.StatusAborted, SubmissionID: id, Attempt: attempt, Err: ErrAborted}
}
