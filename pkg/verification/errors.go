package verification

import "errors"

var (
	ErrMissingARCPresentation = errors.New("verification: anonymous/hybrid credential requires an ARC presentation")
	ErrCASRetryExhausted      = errors.New("verification: counter commit retries exhausted")
)
