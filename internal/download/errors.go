package download

import (
	"errors"
	"fmt"

	"github.com/hbomb79/Siphon/internal/media"
	"github.com/hbomb79/Siphon/pkg/worker"
)

// Code is the stable, transport facing identifier for a failure.
type Code string

const (
	CodeVideoNotFound    Code = "VIDEO_NOT_FOUND"
	CodeAgeRestricted    Code = "AGE_RESTRICTED"
	CodeFetchError       Code = "FETCH_ERROR"
	CodeDownloadError    Code = "DOWNLOAD_ERROR"
	CodeFileNotCreated   Code = "FILE_NOT_CREATED"
	CodeConversionError  Code = "CONVERSION_ERROR"
	CodeOutputNotCreated Code = "OUTPUT_NOT_CREATED"
	CodeServerError      Code = "SERVER_ERROR"
)

// Error is returned from every Service operation. Message is safe to show to
// a client; Err carries the internal cause and is only ever logged.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// enumerationError translates the extractor's failure taxonomy. A tool that
// ran and reported a failure is a DOWNLOAD_ERROR; anything else (decode
// failures, the tool being missing) is a FETCH_ERROR.
func enumerationError(err error) *Error {
	switch {
	case errors.Is(err, worker.ErrTaskPanicked):
		return newError(CodeServerError, "An unexpected error occurred", err)
	case errors.Is(err, media.ErrAgeRestricted):
		return newError(CodeAgeRestricted, "This video is age restricted", err)
	case errors.Is(err, media.ErrVideoNotFound):
		return newError(CodeVideoNotFound, "Video is private or unavailable", err)
	case errors.Is(err, media.ErrToolFailed):
		return newError(CodeDownloadError, "Failed to fetch formats", err)
	default:
		return newError(CodeFetchError, "Failed to fetch formats", err)
	}
}
