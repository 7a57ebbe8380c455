package credential

import "errors"

var (
	ErrInvalidCredential = errors.New("credential: invalid credential")
	ErrCredentialExpired = errors.New("credential: expired")
	ErrMissingVariantData = errors.New("credential: missing data for declared variant")
)
