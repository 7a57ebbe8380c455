// Package acdperr provides the typed error taxonomy shared by every ACDP
// component. Each error carries a Kind so callers (handlers, the
// verification pipeline, delegation checks) can map it to an HTTP status
// without string matching.
package acdperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of ACDP failure.
type Kind string

const (
	InvalidCredential           Kind = "invalid_credential"
	CredentialExpired           Kind = "credential_expired"
	RateLimitExceeded           Kind = "rate_limit_exceeded"
	ToolNotAllowed              Kind = "tool_not_allowed"
	ResourceLimitExceeded       Kind = "resource_limit_exceeded"
	DelegationNotAllowed        Kind = "delegation_not_allowed"
	DelegationDepthExceeded     Kind = "delegation_depth_exceeded"
	CapabilityReductionViolation Kind = "capability_reduction_violation"
	InvalidIDJAG                Kind = "invalid_id_jag"
	TokenExchangeFailed         Kind = "token_exchange_failed"
	MCPError                    Kind = "mcp_error"
	ARCVerificationFailed       Kind = "arc_verification_failed"
	CryptoError                 Kind = "crypto_error"
	DatabaseError               Kind = "database_error"
	HTTPError                   Kind = "http_error"
	ConfigError                 Kind = "config_error"
	InternalError                Kind = "internal_error"
)

// Error is the typed error value returned across ACDP package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on Kind alone (errors.New(string(kind)) sentinels
// are not used here — callers compare via errors.Is against an *Error of
// the same Kind, or via KindOf).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error around an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to InternalError when err
// does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// IsRetryable reports whether the failure represents a transient condition
// worth retrying. Only transport, storage, and unclassified internal
// failures are retryable — every policy/validation rejection is final.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case HTTPError, DatabaseError, InternalError:
		return true
	default:
		return false
	}
}

// StatusCode maps a Kind to the HTTP status the gateway responds with.
func StatusCode(kind Kind) int {
	switch kind {
	case InvalidCredential, CredentialExpired, InvalidIDJAG, ARCVerificationFailed:
		return 401
	case RateLimitExceeded:
		return 429
	case ToolNotAllowed, ResourceLimitExceeded, DelegationNotAllowed, DelegationDepthExceeded:
		return 403
	case CapabilityReductionViolation, TokenExchangeFailed, MCPError:
		return 400
	case CryptoError, DatabaseError, ConfigError, InternalError:
		return 500
	case HTTPError:
		return 502
	default:
		return 500
	}
}
