package arc

import "errors"

var (
	ErrRateLimitExceeded = errors.New("arc: rate limit exceeded")
	ErrInvalidPresentation = errors.New("arc: invalid presentation")
	ErrTagReplayed       = errors.New("arc: presentation tag already observed")
)
