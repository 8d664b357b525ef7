package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled matches any CancelledError via errors.Is.
var ErrCancelled = errors.New("cancelled")

type ProcessSpawnError struct {
	Command string
	Err     error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Command, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error { return e.Err }

type ProcessError struct {
	Command   string
	ExitCode  int
	Stderr    string
	Truncated bool
}

func (e *ProcessError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, stderr)
}

type CancelledError struct {
	Command string
	Cause   error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", e.Command, e.Cause)
}

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

func (e *CancelledError) Unwrap() error { return e.Cause }

type ProbeParseError struct {
	Path   string
	Detail string
	Err    error
}

func (e *ProbeParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse probe output for %s: %s: %v", e.Path, e.Detail, e.Err)
	}
	return fmt.Sprintf("parse probe output for %s: %s", e.Path, e.Detail)
}

func (e *ProbeParseError) Unwrap() error { return e.Err }

type NoVideoStreamError struct {
	Path string
}

func (e *NoVideoStreamError) Error() string {
	return fmt.Sprintf("no video stream found in %s", e.Path)
}

// ConstraintViolation is reported through ValidationResult, never returned.
type ConstraintViolation struct {
	Field  string  `json:"field"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`
	Detail string  `json:"detail"`
}

func (v ConstraintViolation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Detail)
}

type FailureKind string

const (
	KindThumbnail FailureKind = "thumbnail"
	KindEncode    FailureKind = "encode"
	KindPlaylist  FailureKind = "playlist"
	KindHash      FailureKind = "hash"
	KindAudio     FailureKind = "audio"
	KindCompress  FailureKind = "compress"
)

// Failure is a fatal stage error. Op names the unit of work, e.g. "720p".
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *Failure) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failure: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Failure) Unwrap() error { return e.Err }

func NewFailure(kind FailureKind, op string, err error) error {
	return &Failure{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err carries a Failure of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}
