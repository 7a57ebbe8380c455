package capability

import "errors"

var (
	ErrInvalidMaxPresentations = errors.New("capability: max_presentations out of range")
	ErrInvalidWindow           = errors.New("capability: window out of range")
	ErrToolNotAllowed          = errors.New("capability: tool not allowed")
)
