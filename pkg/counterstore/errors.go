package counterstore

import "errors"

var (
	ErrNotFound         = errors.New("counterstore: credential not found")
	ErrAlreadyExists    = errors.New("counterstore: credential already recorded")
	ErrRevoked          = errors.New("counterstore: credential revoked")
	ErrCounterExhausted = errors.New("counterstore: presentation budget exhausted")
	ErrCASConflict      = errors.New("counterstore: compare-and-swap conflict, retry")
)
