package session

import (
	"errors"
	"fmt"
)

// ErrAlreadyFinalized is returned when finalize is invoked on a session that
// already reached a terminal state.
var ErrAlreadyFinalized = errors.New("session already finalized")

// ErrFinalizeInProgress is returned when finalize is invoked while another
// finalize for the same session is still running.
var ErrFinalizeInProgress = errors.New("finalize already in progress")

// ValidationError rejects a request before any pipeline work; no state has
// changed when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Pipeline stages for upstream failures.
const (
	StageTranscode  = "transcode"
	StageTranscribe = "transcribe"
	StageStore      = "store"
	StagePersist    = "persist"
)

// PipelineError is a fatal upstream failure in a finalize/train call. It
// always means nothing was persisted by that call.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func pipelineErr(stage string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}
