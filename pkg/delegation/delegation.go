// Package delegation implements parent-to-child credential delegation:
// capability reduction, depth limiting, cycle rejection, and the signed
// audit trail that results.
package delegation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maceip/acdp/pkg/capability"
	"github.com/maceip/acdp/pkg/credential"
	"github.com/maceip/acdp/pkg/crypto"
	"github.com/maceip/acdp/pkg/identity"
	"github.com/maceip/acdp/pkg/metrics"
)

// RevocationChecker reports whether a credential_id has been revoked. The
// gateway supplies an adapter over its counterstore.Store.
type RevocationChecker interface {
	IsRevoked(credentialID uuid.UUID) (bool, error)
}

// Delegate runs the six ordered checks spec.md assigns DelegationEngine and,
// on success, produces a new credential that appends one DelegationLink to
// parent's chain, re-signed end to end by the gateway.
func Delegate(
	gatewayKey *crypto.Ed25519KeyPair,
	revocation RevocationChecker,
	parent *credential.ACDPCredential,
	parentAgentKey *crypto.Ed25519KeyPair,
	childAgent *identity.Agent,
	reducedCaps capability.Capabilities,
	duration time.Duration,
) (*credential.ACDPCredential, error) {
	child, result, err := delegate(gatewayKey, revocation, parent, parentAgentKey, childAgent, reducedCaps, duration)
	metrics.DelegationsTotal.WithLabelValues(result).Inc()
	return child, err
}

func delegate(
	gatewayKey *crypto.Ed25519KeyPair,
	revocation RevocationChecker,
	parent *credential.ACDPCredential,
	parentAgentKey *crypto.Ed25519KeyPair,
	childAgent *identity.Agent,
	reducedCaps capability.Capabilities,
	duration time.Duration,
) (*credential.ACDPCredential, string, error) {
	// 1. Parent credential must verify, be unexpired, and not revoked.
	if err := parent.VerifySignature(gatewayKey.PublicKey); err != nil {
		return nil, "not_allowed", ErrDelegationNotAllowed
	}
	if parent.IsExpired(time.Now()) {
		return nil, "not_allowed", ErrDelegationNotAllowed
	}
	if revocation != nil {
		revoked, err := revocation.IsRevoked(parent.CredentialID)
		if err != nil {
			return nil, "store_error", err
		}
		if revoked {
			return nil, "not_allowed", ErrDelegationNotAllowed
		}
	}

	// 2. Capability reduction.
	if err := reducedCaps.SubsetOf(parent.Capabilities); err != nil {
		return nil, "capability_reduction_violation", err
	}

	// 3. Depth limit.
	if len(parent.Delegation)+1 > MaxDepth {
		return nil, "depth_exceeded", ErrDelegationDepthExceeded
	}

	// 4. Cycle rejection.
	if parent.Delegation.ContainsAgent(childAgent.AgentID) {
		return nil, "cycle_detected", ErrCycleDetected
	}
	if parent.Agent != nil && parent.Agent.AgentID == childAgent.AgentID {
		return nil, "cycle_detected", ErrCycleDetected
	}

	parentAgentID := ""
	if parent.Agent != nil {
		parentAgentID = parent.Agent.AgentID
	} else if len(parent.Delegation) > 0 {
		parentAgentID = parent.Delegation[len(parent.Delegation)-1].ChildAgentID
	}

	// 5. Build the new link and have the parent agent sign it.
	link := credential.DelegationLink{
		ParentCredentialID: parent.CredentialID,
		ParentAgentID:       parentAgentID,
		ChildAgentID:        childAgent.AgentID,
		ReducedCapabilities: reducedCaps,
	}
	link.Signature = parentAgentKey.Sign(linkSigningBytes(link))

	// 6. Gateway re-signs the whole new credential body.
	child := *parent
	child.CredentialID = uuid.New()
	child.Capabilities = reducedCaps
	child.Delegation = append(copyChain(parent.Delegation), link)
	child.Agent = childAgent
	now := time.Now()
	child.IssuedAt = now
	child.ExpiresAt = now.Add(duration)
	child.Sign(gatewayKey)

	return &child, "success", nil
}

// copyChain returns a defensive copy of chain so appending a link never
// aliases the parent credential's slice.
func copyChain(chain credential.DelegationChain) credential.DelegationChain {
	out := make(credential.DelegationChain, len(chain))
	copy(out, chain)
	return out
}

func linkSigningBytes(link credential.DelegationLink) []byte {
	var buf []byte
	buf = append(buf, link.ParentCredentialID[:]...)
	buf = append(buf, []byte(link.ParentAgentID)...)
	buf = append(buf, []byte(link.ChildAgentID)...)
	caps := link.ReducedCapabilities
	buf = fmt.Appendf(buf, "%q|%q|%d|%d", caps.AllowedTools, caps.DeniedTools, caps.MaxPresentations, int64(caps.Window))
	if rl := caps.ResourceLimits; rl != nil {
		buf = fmt.Appendf(buf, "|%d,%d,%d", rl.MaxConcurrentTasks, rl.MaxTokensPerRequest, rl.MaxWallClockSeconds)
	}
	return buf
}
