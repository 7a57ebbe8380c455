package crypto

import "errors"

var (
	ErrInvalidSignature = errors.New("crypto: invalid signature")
	ErrInvalidPoint      = errors.New("crypto: invalid curve point")
	ErrInvalidScalar     = errors.New("crypto: invalid scalar")
)
