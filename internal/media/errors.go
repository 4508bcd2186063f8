package media

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrVideoNotFound is returned when the video is private, removed or
	// otherwise unavailable.
	ErrVideoNotFound = errors.New("video not found or unavailable")

	// ErrAgeRestricted is returned when the platform requires sign-in to
	// confirm the viewer's age.
	ErrAgeRestricted = errors.New("video is age restricted")

	// ErrToolFailed marks failures reported by the extractor itself (as
	// opposed to failures talking to it, or decoding its output).
	ErrToolFailed = errors.New("extractor reported an error")
)

// ExtractionError carries the classified failure along with the
// extractor's own message, which is kept for diagnostics.
type ExtractionError struct {
	Kind    error
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var (
	notFoundMarkers = []string{"private", "not available", "unavailable"}
	ageMarkers      = []string{"age-restricted", "age restricted", "confirm your age"}
)

// Classify maps an extractor failure on to the failure taxonomy. Errors
// already carrying a known kind are kept; anything else is classified by
// looking for well-known phrases in the message. Extractors do not expose
// stable error codes, so the phrase matching is best-effort.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}

	message := err.Error()
	switch {
	case errors.Is(err, ErrVideoNotFound):
		return &ExtractionError{Kind: ErrVideoNotFound, Message: message, Err: err}
	case errors.Is(err, ErrAgeRestricted):
		return &ExtractionError{Kind: ErrAgeRestricted, Message: message, Err: err}
	}

	lower := strings.ToLower(message)
	for _, marker := range ageMarkers {
		if strings.Contains(lower, marker) {
			return &ExtractionError{Kind: ErrAgeRestricted, Message: message, Err: err}
		}
	}
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return &ExtractionError{Kind: ErrVideoNotFound, Message: message, Err: err}
		}
	}

	if errors.Is(err, ErrToolFailed) {
		return &ExtractionError{Kind: ErrToolFailed, Message: message, Err: err}
	}

	return err
}
