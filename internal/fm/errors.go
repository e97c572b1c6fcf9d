package fm

import (
	"errors"
	"fmt"
)

// Pipeline-level failures. They abort a run and reach the caller wrapped with
// context; test for them with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrNotFound          = errors.New("archive not found")
	ErrPasswordRequired  = errors.New("password required")
	ErrExtraction        = errors.New("extraction failed")
	ErrCancelled         = errors.New("classification cancelled")
)

// ExtractionError wraps an underlying archive library failure. It matches
// both ErrExtraction and the wrapped cause.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// NewExtractionError wraps err unless it already is an ExtractionError.
func NewExtractionError(archive string, err error) error {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractionError{Archive: archive, Err: err}
}

// UndoError describes why a single operation could not be reversed.
// Undo never returns it to callers; it is what gets logged.
type UndoError struct {
	OperationID string
	Reason      string
	Err         error
}

func (e *UndoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("undo %s: %s: %v", e.OperationID, e.Reason, e.Err)
	}
	return fmt.Sprintf("undo %s: %s", e.OperationID, e.Reason)
}

func (e *UndoError) Unwrap() error { return e.Err }
