package core

import (
	"errors"
	"strings"
)

var (
	ErrExtraction        = errors.New("document extraction failed")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyResponse     = errors.New("empty response from model")
)

// ExtractionError reports a document that could not be parsed. The message is shown to
// the uploader as-is.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// Is makes every ExtractionError match ErrExtraction.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

type ErrorKind string

const (
	ErrorQuota     ErrorKind = "quota"
	ErrorRate      ErrorKind = "rate"
	ErrorTransient ErrorKind = "transient"
	ErrorPermanent ErrorKind = "permanent"
	ErrorContext   ErrorKind = "context"
)

// BackendError is a failed exchange with the generative backend.
type BackendError struct {
	Kind ErrorKind
	Err  error
}

func NewBackendError(err error) *BackendError {
	return &BackendError{Kind: ClassifyError(err), Err: err}
}

func (e *BackendError) Error() string { return e.Err.Error() }
func (e *BackendError) Unwrap() error { return e.Err }

// ClassifyError buckets a provider failure by its message.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "resource_exhausted"), strings.Contains(e, "resource exhausted"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "ratelimit"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "deadline"), strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"):
		return ErrorTransient
	case strings.Contains(e, "context"), strings.Contains(e, "too long"), strings.Contains(e, "token count"):
		return ErrorContext
	default:
		return ErrorPermanent
	}
}
