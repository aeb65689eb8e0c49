package rag

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds. Every error returned by Pipeline and Retriever matches exactly
// one of these with errors.Is.
var (
	// ErrNoContent means the transcript had nothing to retrieve from. The
	// caller can fix it; retrying will not help.
	ErrNoContent = errors.New("no usable content")
	// ErrUpstream means the embedder or the generator failed, timed out or
	// answered with something unusable. Retrying may help.
	ErrUpstream = errors.New("upstream model failure")
	// ErrConfiguration means the pipeline was wired wrong, for example the
	// index and the query were embedded by different models.
	ErrConfiguration = errors.New("configuration error")
)

type Phase string

const (
	PhaseChunk    Phase = "chunk"
	PhaseEmbed    Phase = "embed"
	PhaseIndex    Phase = "index"
	PhaseRetrieve Phase = "retrieve"
	PhaseAssemble Phase = "assemble"
	PhaseGenerate Phase = "generate"
)

// PipelineError records which phase failed, the error kind and the
// underlying cause.
type PipelineError struct {
	Kind    error
	Phase   Phase
	Timeout bool
	Err     error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s phase: %v", e.Phase, e.Kind)
	if e.Timeout {
		msg += " (timeout)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTimeout reports whether err is an upstream call that ran out of time.
func IsTimeout(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Timeout
}

func noContent(phase Phase, err error) *PipelineError {
	return &PipelineError{Kind: ErrNoContent, Phase: phase, Err: err}
}

func upstream(phase Phase, err error) *PipelineError {
	return &PipelineError{Kind: ErrUpstream, Phase: phase, Timeout: isTimeout(err), Err: err}
}

func misconfigured(phase Phase, err error) *PipelineError {
	return &PipelineError{Kind: ErrConfiguration, Phase: phase, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
