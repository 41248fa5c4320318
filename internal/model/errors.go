package model

import (
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindNotDefined            ErrorKind = "not_defined"
	KindResourceNotFound      ErrorKind = "resource_not_found"
	KindLocalPathNotFound     ErrorKind = "local_path_not_found"
	KindInvalidCredentials    ErrorKind = "invalid_credentials"
	KindHostUnreachable       ErrorKind = "host_unreachable"
	KindInvalidScheme         ErrorKind = "invalid_scheme"
	KindInvalidSelectionInput ErrorKind = "invalid_selection_input"
	KindInvalidSettings       ErrorKind = "invalid_settings"
	KindExecutionCannotStart  ErrorKind = "execution_cannot_start"
	KindInvalidExecution      ErrorKind = "invalid_execution"
	KindRunMode               ErrorKind = "run_mode"
)

// Error is the typed error returned across conductor packages.
// Missing carries the names of absent inputs or outputs, when relevant.
type Error struct {
	Kind    ErrorKind
	Msg     string
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, " [%s]", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

var (
	ErrNotDefined            = &Error{Kind: KindNotDefined}
	ErrResourceNotFound      = &Error{Kind: KindResourceNotFound}
	ErrLocalPathNotFound     = &Error{Kind: KindLocalPathNotFound}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials}
	ErrHostUnreachable       = &Error{Kind: KindHostUnreachable}
	ErrInvalidScheme         = &Error{Kind: KindInvalidScheme}
	ErrInvalidSelectionInput = &Error{Kind: KindInvalidSelectionInput}
	ErrInvalidSettings       = &Error{Kind: KindInvalidSettings}
	ErrExecutionCannotStart  = &Error{Kind: KindExecutionCannotStart}
	ErrInvalidExecution      = &Error{Kind: KindInvalidExecution}
	ErrRunMode               = &Error{Kind: KindRunMode}
)

type ValidationError struct {
	FieldPath string
	Message   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.FieldPath, e.Message)
}

// ValidationErrors accumulates settings problems so they can be reported together.
type ValidationErrors struct {
	Errors []ValidationError
}

func (ve *ValidationErrors) Add(fieldPath, message string) {
	ve.Errors = append(ve.Errors, ValidationError{FieldPath: fieldPath, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// Err returns nil when nothing was recorded, otherwise an InvalidSettings error wrapping ve.
func (ve *ValidationErrors) Err() error {
	if !ve.HasErrors() {
		return nil
	}
	return WrapError(KindInvalidSettings, ve, "%d problem(s)", len(ve.Errors))
}
