// Package apperr holds the error taxonomy shared by the dashboard components.
//
// Every failure that leaves a component is a *DomainError whose Kind is one of
// the sentinels below, so callers branch with errors.Is instead of inspecting
// strings or status codes.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrTransientNetwork       = errors.New("transient network error")
	ErrAuthorizationExpired   = errors.New("authorization expired")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrValidation             = errors.New("validation error")
	ErrAuthentication         = errors.New("authentication failed")
	ErrTransitionFailed       = errors.New("transition failed")
	ErrQualification          = errors.New("qualification failed")
	ErrNoSession              = errors.New("no session")
)

type DomainError struct {
	Kind    error
	Code    string
	Message string
	// Status is the HTTP status returned by the collaborator, 0 when the
	// failure never reached it.
	Status int
	Err    error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *DomainError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func New(kind error, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

func Wrap(kind error, code, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(code, message string) *DomainError {
	return New(ErrValidation, code, message)
}

// Permission reports that role may not perform action. No network call is
// made before this error is returned.
func Permission(role, action string) *DomainError {
	return New(ErrPermissionDenied, "FORBIDDEN", fmt.Sprintf("role %q may not %s", role, action))
}

func IsAuthorizationExpired(err error) bool {
	return errors.Is(err, ErrAuthorizationExpired)
}

// As returns the outermost *DomainError in err's chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
