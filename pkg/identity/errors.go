package identity

import "errors"

var (
	ErrInvalidPrincipal = errors.New("identity: invalid principal")
	ErrInvalidIDJAG     = errors.New("identity: id-jag claims do not match principal")
	ErrInvalidAgent     = errors.New("identity: invalid agent")
)
