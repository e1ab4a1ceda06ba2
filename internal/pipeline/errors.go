package pipeline

import (
	"errors"
	"fmt"
)

// Fatal error kinds. Any of these aborts the invocation before entries are materialized.
const (
	KindExtractionParse = "EXTRACTION_PARSE"
	KindDateParse       = "DATE_PARSE"
)

// Stage names carried by Error
const (
	StageDecode    = "decode"
	StageDateRange = "date_range"
)

// Error is the tagged error returned by fatal pipeline stages
type Error struct {
	Kind    string
	Stage   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the tagged kind of err, or "" when err is not a pipeline error
func KindOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is a pipeline error of the given kind
func IsKind(err error, kind string) bool {
	return err != nil && KindOf(err) == kind
}

func extractionParseError(message string, cause error) *Error {
	return &Error{Kind: KindExtractionParse, Stage: StageDecode, Message: message, Cause: cause}
}

func dateParseError(message string, cause error) *Error {
	return &Error{Kind: KindDateParse, Stage: StageDateRange, Message: message, Cause: cause}
}
