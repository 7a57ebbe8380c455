package server

import (
	"time"

	"github.com/google/uuid"
)

// IssueRequest is the body of POST /acdp/v1/credentials/issue.
type IssueRequest struct {
	AgentID         string          `json:"agent_id"`
	AgentPublicKey  string          `json:"agent_public_key"` // hex, 32 bytes
	CredentialType  string          `json:"credential_type"`  // identity_bound|anonymous|hybrid
	Capabilities    capabilitiesDTO `json:"capabilities"`
	DurationDays    int             `json:"duration_days"`
}

// IssueResponse is the response shared by issuance and delegation.
type IssueResponse struct {
	Credential     credentialDTO `json:"credential"`
	CredentialID   uuid.UUID     `json:"credential_id"`
	CredentialType string        `json:"credential_type"`
}

// VerifyRequest is the body of POST /acdp/v1/verify.
type VerifyRequest struct {
	CredentialID        uuid.UUID           `json:"credential_id"`
	PresentationContext presentationContext `json:"presentation_context"`
	Nonce               string              `json:"nonce"`
	Credential          string              `json:"credential"` // serialized credentialDTO JSON
	ARCPresentation     *arcPresentationDTO `json:"arc_presentation,omitempty"`
}

type presentationContext struct {
	Tool      string    `json:"tool"`
	Resource  string    `json:"resource"`
	Timestamp time.Time `json:"timestamp"`
	ServerID  string    `json:"server_id"`
}

// VerifyResponse mirrors verification.Result on the wire.
type VerifyResponse struct {
	Valid                  bool      `json:"valid"`
	Principal              *string   `json:"principal,omitempty"`
	AgentID                string    `json:"agent_id,omitempty"`
	PresentationsRemaining uint64    `json:"presentations_remaining"`
	DelegationChain        []string  `json:"delegation_chain,omitempty"`
	FailureReason          string    `json:"failure_reason,omitempty"`
	VerifiedAt             time.Time `json:"verified_at"`
}

// DelegateRequest is the body of POST /acdp/v1/credentials/delegate. The
// parent credential body travels alongside its id since the gateway does
// not persist full credential bodies, only their counter state — the same
// reason VerifyRequest carries a serialized credential.
type DelegateRequest struct {
	ParentCredentialID  uuid.UUID       `json:"parent_credential_id"`
	ParentCredential    string          `json:"parent_credential"`
	ChildAgentID        string          `json:"child_agent_id"`
	ChildAgentPublicKey string          `json:"child_agent_public_key"` // hex, 32 bytes
	Capabilities        capabilitiesDTO `json:"capabilities"`
	DurationDays        int             `json:"duration_days"`
}

// errorResponse is the body written for every non-2xx response.
type errorResponse struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}
