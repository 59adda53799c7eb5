package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every lookup failure.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates the question id does not exist (or is not presented).
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrSessionNotFound is returned when a quiz session does not exist.
	ErrSessionNotFound = fmt.Errorf("quiz session %w", ErrNotFound)

	// ErrNoQuizOpen is returned when a session operation needs an open quiz.
	ErrNoQuizOpen = errors.New("no quiz open in session")
	// ErrNothingToRetry is returned when the last grading left no wrong answers.
	ErrNothingToRetry = errors.New("no wrong answers to retry")
	// ErrInvalidTransition is returned when an operation is not allowed in the current session state.
	ErrInvalidTransition = errors.New("operation not allowed in current session state")
)

// ParseError reports a source document that cannot be imported.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse: " + e.Msg + ": " + e.Err.Error()
	}
	return "parse: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Msg
	}
	return "invalid " + e.Field + ": " + e.Msg
}

// Invalid is shorthand for building a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// StorageError wraps a persistence or blob store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it is nil, a domain not-found
// or validation error, or already a StorageError.
func Storage(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
