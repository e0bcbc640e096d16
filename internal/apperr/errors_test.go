package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrTransitionFailed, "TRANSITION_FAILED", "update rejected", cause)
	wrapped := fmt.Errorf("triage: %w", err)

	if !errors.Is(wrapped, ErrTransitionFailed) {
		t.Fatalf("expected errors.Is(ErrTransitionFailed)")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected errors.Is(cause)")
	}
	if errors.Is(wrapped, ErrPermissionDenied) {
		t.Fatalf("did not expect ErrPermissionDenied")
	}
	de, ok := As(wrapped)
	if !ok || de.Code != "TRANSITION_FAILED" {
		t.Fatalf("As() = %+v, %v", de, ok)
	}
}

func TestNestedKindsAreVisible(t *testing.T) {
	inner := New(ErrAuthorizationExpired, "UNAUTHORIZED", "token expired")
	outer := Wrap(ErrQualification, "QUALIFICATION_FAILED", "qualify report", inner)

	if !IsAuthorizationExpired(outer) {
		t.Fatalf("expected authorization expiry to be visible through the outer error")
	}
	if !errors.Is(outer, ErrQualification) {
		t.Fatalf("expected qualification kind")
	}
}

func TestErrorString(t *testing.T) {
	cases := []struct {
		name string
		err  *DomainError
		want string
	}{
		{name: "message", err: Validation("MISSING_REGION", "region is required"), want: "MISSING_REGION: region is required"},
		{name: "kind fallback", err: New(ErrNoSession, "NO_SESSION", ""), want: "NO_SESSION: no session"},
		{name: "cause", err: Wrap(ErrTransientNetwork, "NETWORK", "fetch reports", errors.New("eof")), want: "NETWORK: fetch reports: eof"},
		{name: "nil", err: nil, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}
