// Package verification runs the ordered checks an MCP server's credential
// presentation must pass before a tool call is allowed through.
package verification

import (
	"time"

	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/credential"
	"github.com/maceip/acdp/pkg/identity"
)

// PresentationContext describes the circumstances a credential is being
// presented under.
type PresentationContext struct {
	Tool      string
	Resource  string
	Timestamp time.Time
	ServerID  string
}

// Request is what an MCP server sends the gateway to verify a credential.
type Request struct {
	Credential      *credential.ACDPCredential
	Context         PresentationContext
	ARCPresentation *arc.ARCPresentation
}

// Result is the outcome the gateway returns for a Request. Anonymous and
// Hybrid credentials never populate Principal, AgentID, or DelegationChain —
// those fields only ever come from an IdentityBound credential.
type Result struct {
	Valid                  bool
	Principal              *identity.Principal
	AgentID                string
	PresentationsRemaining uint64
	DelegationChain        []string
	FailureReason          string
	VerifiedAt             time.Time
}

func success(principal *identity.Principal, agentID string, remaining uint64, chain []string) *Result {
	return &Result{
		Valid:                  true,
		Principal:              principal,
		AgentID:                agentID,
		PresentationsRemaining: remaining,
		DelegationChain:        chain,
		VerifiedAt:             time.Now(),
	}
}

func failure(reason string) *Result {
	return &Result{
		Valid:         false,
		FailureReason: reason,
		VerifiedAt:    time.Now(),
	}
}
