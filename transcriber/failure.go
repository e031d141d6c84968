package transcriber

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a transcription did not produce text.
type FailureKind string

const (
	// FailureTimeout: the network deadline elapsed.
	FailureTimeout FailureKind = "timeout"
	// FailureNetwork: transport-level failure that persisted through
	// the retry (connection reset, EOF, unreachable host).
	FailureNetwork FailureKind = "network"
	// FailureService: the service rejected the request (bad credentials
	// or a persistent 5xx). Never retried beyond the single transient
	// attempt.
	FailureService FailureKind = "service"
	// FailureEmptyAudio: the recording was empty or near-silent and
	// was rejected locally, without a network call.
	FailureEmptyAudio FailureKind = "empty_audio"
)

// Failure is the typed outcome for a failed transcription. It wraps
// the underlying cause so callers can both classify and log it.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind, or FailureNetwork for untyped
// errors that escaped classification.
func KindOf(err error) FailureKind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return FailureNetwork
}
