// Package credential implements ACDPCredential: the tagged-union envelope
// issued to an agent and presented to MCP servers, in its three variants.
package credential

import (
	"time"

	"github.com/google/uuid"

	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/capability"
	"github.com/maceip/acdp/pkg/identity"
)

// Variant discriminates the three credential shapes a single ACDPCredential
// value may take.
type Variant string

const (
	VariantIdentityBound Variant = "identity_bound"
	VariantAnonymous     Variant = "anonymous"
	VariantHybrid        Variant = "hybrid"
)

// ProtocolVersion is the canonical-serialization version tag every signed
// credential body carries.
const ProtocolVersion = "ACDP/0.3"

// DelegationLink is one parent-to-child delegation step: the reduced
// capabilities a parent agent granted a child, signed by the parent's
// Ed25519 key.
type DelegationLink struct {
	ParentCredentialID uuid.UUID
	ParentAgentID      string
	ChildAgentID       string
	ReducedCapabilities capability.Capabilities
	Signature          []byte
}

// DelegationChain is the ordered history of delegation steps a credential
// has passed through. Length is bounded by delegation.MaxDepth and no agent
// may appear twice.
type DelegationChain []DelegationLink

// AuditTrail renders the chain as "parent -> child -> ..." agent ids, in
// delegation order.
func (c DelegationChain) AuditTrail() []string {
	if len(c) == 0 {
		return nil
	}
	trail := make([]string, 0, len(c)+1)
	trail = append(trail, c[0].ParentAgentID)
	for _, link := range c {
		trail = append(trail, link.ChildAgentID)
	}
	return trail
}

// ContainsAgent reports whether agentID already appears anywhere in the
// chain (as either a parent or a child), the cycle-rejection check
// delegation enforces.
func (c DelegationChain) ContainsAgent(agentID string) bool {
	for _, link := range c {
		if link.ParentAgentID == agentID || link.ChildAgentID == agentID {
			return true
		}
	}
	return false
}

// ACDPCredential is the signed envelope a Gateway issues. Which of the
// variant-specific fields are populated is selected by Variant.
type ACDPCredential struct {
	CredentialID uuid.UUID
	Variant      Variant
	Issuer       string
	Capabilities capability.Capabilities
	Delegation   DelegationChain
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Signature    []byte

	// Principal is IdentityBound only; Agent is set in every variant.
	Principal *identity.Principal
	Agent     *identity.Agent

	// Anonymous / Hybrid only: the opaque epoch binding replaces Principal,
	// and the holder's ARC credential plus the issuer's ARC public key
	// material travel with the envelope.
	EpochBinding string
	ARCCred      *arc.ARCCredential
	ARCServerKey *arc.ServerPublicKey

	// Hybrid only: the sealed IdentityBound half, carried as opaque bytes.
	// This package neither encrypts nor inspects it; the gateway's issuance
	// handler fills it with the principal claims as plain JSON, not
	// encrypted to an auditor key.
	SealedIdentityBound []byte
}

// IsExpired reports whether now is at or past ExpiresAt.
func (c *ACDPCredential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
