package arczkp

import "errors"

var ErrARCVerificationFailed = errors.New("arczkp: proof does not satisfy relation")
