package identity

import (
	"fmt"
	"time"

	"github.com/maceip/acdp/pkg/crypto"
)

// AgentMetadata is optional provenance for an agent's runtime: the build
// that produced it, and whatever capability description the platform wants
// attached for audit.
type AgentMetadata struct {
	Version                 string
	CodeHash                string
	BuildTimestamp          time.Time
	CapabilitiesDescription string
	Custom                  map[string]any
}

// Agent is the autonomous actor a credential binds to a public key.
// agent_id follows "agent://{platform}/{instance}" by convention but is not
// parsed; it is an opaque, stable identifier within a delegation chain.
type Agent struct {
	AgentID   string
	PublicKey []byte // Ed25519, 32 bytes
	Platform  string
	Verified  bool
	Metadata  *AgentMetadata
}

// New validates and constructs an Agent.
func New(agentID string, publicKey []byte, platform string, verified bool) (*Agent, error) {
	if len(agentID) < 1 || len(agentID) > 255 {
		return nil, fmt.Errorf("%w: agent_id length out of bounds", ErrInvalidAgent)
	}
	if len(platform) < 1 || len(platform) > 100 {
		return nil, fmt.Errorf("%w: platform length out of bounds", ErrInvalidAgent)
	}
	if len(publicKey) != 32 {
		return nil, fmt.Errorf("%w: public key must be 32 bytes", ErrInvalidAgent)
	}

	return &Agent{
		AgentID:   agentID,
		PublicKey: publicKey,
		Platform:  platform,
		Verified:  verified,
	}, nil
}

// WithMetadata attaches optional provenance metadata to an Agent.
func (a *Agent) WithMetadata(metadata *AgentMetadata) *Agent {
	a.Metadata = metadata
	return a
}

// VerifySignature checks that sig is a valid Ed25519 signature by this
// agent over message.
func (a *Agent) VerifySignature(message, sig []byte) error {
	return crypto.VerifyEd25519(a.PublicKey, message, sig)
}
