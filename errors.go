package nanoindex

import (
	"errors"
	"fmt"
)

// Sentinel errors for the caller-facing error kinds named in the error
// handling design: InvalidInput, Conflict, NotFound, Timeout, StorageFatal,
// CorruptState. NotTrained is deliberately absent — an untrained IVF search
// returns an empty result, never an error.
var (
	ErrInvalidInput  = errors.New("nanoindex: invalid input")
	ErrConflict      = errors.New("nanoindex: conflict")
	ErrNotFound      = errors.New("nanoindex: not found")
	ErrTimeout       = errors.New("nanoindex: deadline exceeded")
	ErrStorageFatal  = errors.New("nanoindex: storage is fatally poisoned")
	ErrCorruptState  = errors.New("nanoindex: corrupt on-disk state")
	ErrEngineClosed  = errors.New("nanoindex: engine is closed")
	ErrUnknownMetric = errors.New("nanoindex: unknown distance metric")
)

// ErrorCode classifies an error for structured reporting to the transport
// layer, mirroring the teacher's error codes without its severity levels or
// retry bookkeeping (NanoIndex never retries — see DESIGN.md).
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeInvalidInput
	CodeConflict
	CodeNotFound
	CodeTimeout
	CodeStorageFatal
	CodeCorruptState
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidInput:
		return "INVALID_INPUT"
	case CodeConflict:
		return "CONFLICT"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeTimeout:
		return "TIMEOUT"
	case CodeStorageFatal:
		return "STORAGE_FATAL"
	case CodeCorruptState:
		return "CORRUPT_STATE"
	default:
		return "UNKNOWN"
	}
}

// CodeOf maps an error produced by this module to its ErrorCode by walking
// the wrap chain. Errors that do not wrap one of the sentinels above report
// CodeUnknown.
func CodeOf(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrStorageFatal):
		return CodeStorageFatal
	case errors.Is(err, ErrCorruptState):
		return CodeCorruptState
	default:
		return CodeUnknown
	}
}

// wrapf wraps a sentinel with additional context, keeping errors.Is working.
func wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
