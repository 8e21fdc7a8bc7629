// Package autherr defines the classified error taxonomy for authentication
// flows. Every terminal failure of a login attempt maps to exactly one Kind
// so the UI can pick the right message and fallback affordance.
package autherr

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication failure.
type Kind string

const (
	// KindConfigurationIncomplete means tenant or client ID were missing
	// when the login was initiated. No window is opened, no network call made.
	KindConfigurationIncomplete Kind = "configuration_incomplete"

	// KindStateMismatch means a callback carried a state parameter that did
	// not match the pending session. No token exchange is attempted.
	KindStateMismatch Kind = "state_mismatch"

	// KindAuthorizationDenied means the provider returned error= on redirect.
	KindAuthorizationDenied Kind = "authorization_denied"

	// KindNetworkFailure is a transport-level failure reaching the provider.
	KindNetworkFailure Kind = "network_failure"

	// KindTimeout means a single network call exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindInvalidGrant means the token endpoint rejected the authorization
	// code (expired, already used, or bound to a different verifier).
	KindInvalidGrant Kind = "invalid_grant"

	// KindInvalidClient means the token endpoint rejected the client
	// credentials.
	KindInvalidClient Kind = "invalid_client"

	// KindMalformedResponse means the token endpoint returned 2xx but the
	// body was missing the access_token field.
	KindMalformedResponse Kind = "malformed_response"

	// KindTimedOut means the whole login session exhausted its polling
	// budget without any completion channel firing.
	KindTimedOut Kind = "timed_out"

	// KindCancelled means the user cancelled the session, typically by
	// closing the authentication window before completing the login.
	KindCancelled Kind = "cancelled"

	// KindWindowCreationFailed means the authentication window could not be
	// opened. The caller should fall back to the external browser.
	KindWindowCreationFailed Kind = "window_creation_failed"

	// KindUnknown covers everything that resists classification.
	KindUnknown Kind = "unknown"
)

// Error is a classified authentication error.
type Error struct {
	Kind   Kind
	Detail string
	err    error
}

// New creates a classified error with a human-readable detail.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap creates a classified error wrapping an underlying cause.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error of the same Kind, so callers can
// use errors.Is(err, autherr.New(autherr.KindTimeout, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the Kind from an error chain.
// Unclassified errors report KindUnknown; nil reports an empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
