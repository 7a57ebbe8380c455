package delegation

import "errors"

var (
	ErrDelegationNotAllowed    = errors.New("delegation: parent credential not usable for delegation")
	ErrDelegationDepthExceeded = errors.New("delegation: chain would exceed maximum depth")
	ErrCycleDetected           = errors.New("delegation: child agent already present in chain")
)

// MaxDepth is the maximum number of links a DelegationChain may hold.
const MaxDepth = 5
