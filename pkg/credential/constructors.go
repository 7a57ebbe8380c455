package credential

import (
	"time"

	"github.com/google/uuid"

	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/capability"
	"github.com/maceip/acdp/pkg/identity"
	"github.com/maceip/acdp/pkg/metrics"
)

// NewIdentityBound constructs a fully identified credential: the holder's
// Principal and Agent are both visible to anyone who inspects it.
func NewIdentityBound(issuer string, principal *identity.Principal, agent *identity.Agent, caps capability.Capabilities, duration time.Duration) (*ACDPCredential, error) {
	if principal == nil || agent == nil {
		return nil, ErrMissingVariantData
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	metrics.IssuanceTotal.WithLabelValues("identity_bound").Inc()
	return &ACDPCredential{
		CredentialID: uuid.New(),
		Variant:      VariantIdentityBound,
		Issuer:       issuer,
		Capabilities: caps,
		IssuedAt:     now,
		ExpiresAt:    now.Add(duration),
		Principal:    principal,
		Agent:        agent,
	}, nil
}

// NewAnonymous constructs a privacy-preserving credential: no Principal is
// attached, only an opaque epoch binding and the ARC material the holder
// will present with each use.
func NewAnonymous(issuer string, epochBinding string, agent *identity.Agent, arcCred *arc.ARCCredential, arcServerKey *arc.ServerPublicKey, caps capability.Capabilities, duration time.Duration) (*ACDPCredential, error) {
	if agent == nil || arcCred == nil || arcServerKey == nil {
		return nil, ErrMissingVariantData
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	metrics.IssuanceTotal.WithLabelValues("anonymous").Inc()
	return &ACDPCredential{
		CredentialID: uuid.New(),
		Variant:      VariantAnonymous,
		Issuer:       issuer,
		Capabilities: caps,
		IssuedAt:     now,
		ExpiresAt:    now.Add(duration),
		EpochBinding: epochBinding,
		Agent:        agent,
		ARCCred:      arcCred,
		ARCServerKey: arcServerKey,
	}, nil
}

// NewHybrid constructs a credential whose public half is identical in shape
// to an Anonymous credential (what MCP servers verify) plus a sealed
// IdentityBound half, stored as the opaque bytes the caller supplies.
func NewHybrid(issuer string, epochBinding string, agent *identity.Agent, arcCred *arc.ARCCredential, arcServerKey *arc.ServerPublicKey, sealedIdentityBound []byte, caps capability.Capabilities, duration time.Duration) (*ACDPCredential, error) {
	if agent == nil || arcCred == nil || arcServerKey == nil || len(sealedIdentityBound) == 0 {
		return nil, ErrMissingVariantData
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	metrics.IssuanceTotal.WithLabelValues("hybrid").Inc()
	return &ACDPCredential{
		CredentialID:        uuid.New(),
		Variant:             VariantHybrid,
		Issuer:               issuer,
		Capabilities:        caps,
		IssuedAt:            now,
		ExpiresAt:           now.Add(duration),
		EpochBinding:        epochBinding,
		Agent:               agent,
		ARCCred:             arcCred,
		ARCServerKey:        arcServerKey,
		SealedIdentityBound: sealedIdentityBound,
	}, nil
}
