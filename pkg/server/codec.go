// Package server implements the ACDP Gateway's HTTP surface: issuance,
// verification, and delegation, using a handler-struct-plus-plain-
// encoding/json style.
package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/capability"
	"github.com/maceip/acdp/pkg/credential"
	"github.com/maceip/acdp/pkg/crypto"
	"github.com/maceip/acdp/pkg/identity"
)

// pointDTO is the wire form of a crypto.Point: hex-encoded, the empty
// string for the point at infinity.
type pointDTO string

func encodePoint(p crypto.Point) pointDTO {
	if p.X == nil || p.Y == nil {
		return ""
	}
	return pointDTO(crypto.EncodeHex(crypto.MarshalPoint(p)))
}

func decodePoint(d pointDTO) (crypto.Point, error) {
	if d == "" {
		return crypto.Point{}, nil
	}
	raw, err := crypto.DecodeHex(string(d))
	if err != nil {
		return crypto.Point{}, fmt.Errorf("decode point hex: %w", err)
	}
	return crypto.UnmarshalPoint(raw)
}

func encodeScalar(s *big.Int) string {
	if s == nil {
		return ""
	}
	return crypto.EncodeHex(s.Bytes())
}

func decodeScalar(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := crypto.DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("decode scalar hex: %w", err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// resourceLimitsDTO is the wire form of capability.ResourceLimits.
type resourceLimitsDTO struct {
	MaxConcurrentTasks  uint32 `json:"max_concurrent_tasks"`
	MaxTokensPerRequest uint64 `json:"max_tokens_per_request"`
	MaxWallClockSeconds uint32 `json:"max_wall_clock_seconds"`
}

// capabilitiesDTO is the wire form of capability.Capabilities.
type capabilitiesDTO struct {
	AllowedTools     []string           `json:"allowed_tools"`
	DeniedTools      []string           `json:"denied_tools,omitempty"`
	MaxPresentations uint64             `json:"max_presentations"`
	WindowSeconds    int64              `json:"window_seconds"`
	ResourceLimits   *resourceLimitsDTO `json:"resource_limits,omitempty"`
}

func capsToDTO(c capability.Capabilities) capabilitiesDTO {
	dto := capabilitiesDTO{
		AllowedTools:     c.AllowedTools,
		DeniedTools:      c.DeniedTools,
		MaxPresentations: c.MaxPresentations,
		WindowSeconds:    int64(c.Window.Seconds()),
	}
	if c.ResourceLimits != nil {
		dto.ResourceLimits = &resourceLimitsDTO{
			MaxConcurrentTasks:  c.ResourceLimits.MaxConcurrentTasks,
			MaxTokensPerRequest: c.ResourceLimits.MaxTokensPerRequest,
			MaxWallClockSeconds: c.ResourceLimits.MaxWallClockSeconds,
		}
	}
	return dto
}

func capsFromDTO(dto capabilitiesDTO) capability.Capabilities {
	c := capability.Capabilities{
		AllowedTools:     dto.AllowedTools,
		DeniedTools:      dto.DeniedTools,
		MaxPresentations: dto.MaxPresentations,
		Window:           time.Duration(dto.WindowSeconds) * time.Second,
	}
	if dto.ResourceLimits != nil {
		c.ResourceLimits = &capability.ResourceLimits{
			MaxConcurrentTasks:  dto.ResourceLimits.MaxConcurrentTasks,
			MaxTokensPerRequest: dto.ResourceLimits.MaxTokensPerRequest,
			MaxWallClockSeconds: dto.ResourceLimits.MaxWallClockSeconds,
		}
	}
	return c
}

type delegationLinkDTO struct {
	ParentCredentialID  uuid.UUID       `json:"parent_credential_id"`
	ParentAgentID       string          `json:"parent_agent_id"`
	ChildAgentID        string          `json:"child_agent_id"`
	ReducedCapabilities capabilitiesDTO `json:"reduced_capabilities"`
	Signature           string          `json:"signature"`
}

type agentDTO struct {
	AgentID   string `json:"agent_id"`
	PublicKey string `json:"public_key"`
	Platform  string `json:"platform"`
	Verified  bool   `json:"verified"`
}

type principalDTO struct {
	HumanID     string `json:"human_id"`
	IDPIssuer   string `json:"idp_issuer"`
	IDPClientID string `json:"idp_client_id"`
}

type arcCredentialDTO struct {
	U           pointDTO `json:"u"`
	UPrime      pointDTO `json:"u_prime"`
	M1          string   `json:"m1"`
	IssuerPubX1 pointDTO `json:"issuer_pub_x1"`
}

type arcServerPublicKeyDTO struct {
	PubX0 pointDTO `json:"pub_x0"`
	PubX1 pointDTO `json:"pub_x1"`
}

// credentialDTO is the JSON wire form spec.md §6 calls "credential
// (serialized JSON)" — every field the gateway or an MCP server needs to
// reconstruct an ACDPCredential without re-deriving key material.
type credentialDTO struct {
	CredentialID uuid.UUID            `json:"credential_id"`
	Variant      string               `json:"variant"`
	Issuer       string               `json:"issuer"`
	Capabilities capabilitiesDTO      `json:"capabilities"`
	Delegation   []delegationLinkDTO  `json:"delegation,omitempty"`
	IssuedAt     time.Time            `json:"issued_at"`
	ExpiresAt    time.Time            `json:"expires_at"`
	Signature    string               `json:"signature"`

	Principal *principalDTO `json:"principal,omitempty"`
	Agent     *agentDTO     `json:"agent,omitempty"`

	EpochBinding string                 `json:"epoch_binding,omitempty"`
	ARCCred      *arcCredentialDTO      `json:"arc_credential,omitempty"`
	ARCServerKey *arcServerPublicKeyDTO `json:"arc_server_key,omitempty"`

	SealedIdentityBound string `json:"sealed_identity_bound,omitempty"`
}

func credentialToDTO(c *credential.ACDPCredential) credentialDTO {
	dto := credentialDTO{
		CredentialID: c.CredentialID,
		Variant:      string(c.Variant),
		Issuer:       c.Issuer,
		Capabilities: capsToDTO(c.Capabilities),
		IssuedAt:     c.IssuedAt,
		ExpiresAt:    c.ExpiresAt,
		Signature:    crypto.EncodeHex(c.Signature),
	}

	for _, link := range c.Delegation {
		dto.Delegation = append(dto.Delegation, delegationLinkDTO{
			ParentCredentialID:  link.ParentCredentialID,
			ParentAgentID:       link.ParentAgentID,
			ChildAgentID:        link.ChildAgentID,
			ReducedCapabilities: capsToDTO(link.ReducedCapabilities),
			Signature:           crypto.EncodeHex(link.Signature),
		})
	}

	if c.Principal != nil {
		dto.Principal = &principalDTO{
			HumanID:     c.Principal.HumanID,
			IDPIssuer:   c.Principal.IDPIssuer,
			IDPClientID: c.Principal.IDPClientID,
		}
	}
	if c.Agent != nil {
		dto.Agent = &agentDTO{
			AgentID:   c.Agent.AgentID,
			PublicKey: crypto.EncodeHex(c.Agent.PublicKey),
			Platform:  c.Agent.Platform,
			Verified:  c.Agent.Verified,
		}
	}

	dto.EpochBinding = c.EpochBinding
	if c.ARCCred != nil {
		dto.ARCCred = &arcCredentialDTO{
			U:           encodePoint(c.ARCCred.U),
			UPrime:      encodePoint(c.ARCCred.UPrime),
			M1:          encodeScalar(c.ARCCred.M1),
			IssuerPubX1: encodePoint(c.ARCCred.IssuerPubX1),
		}
	}
	if c.ARCServerKey != nil {
		dto.ARCServerKey = &arcServerPublicKeyDTO{
			PubX0: encodePoint(c.ARCServerKey.PubX0),
			PubX1: encodePoint(c.ARCServerKey.PubX1),
		}
	}
	if len(c.SealedIdentityBound) > 0 {
		dto.SealedIdentityBound = crypto.EncodeHex(c.SealedIdentityBound)
	}

	return dto
}

func credentialFromDTO(dto credentialDTO) (*credential.ACDPCredential, error) {
	sig, err := crypto.DecodeHex(dto.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode credential signature: %w", err)
	}

	c := &credential.ACDPCredential{
		CredentialID: dto.CredentialID,
		Variant:      credential.Variant(dto.Variant),
		Issuer:       dto.Issuer,
		Capabilities: capsFromDTO(dto.Capabilities),
		IssuedAt:     dto.IssuedAt,
		ExpiresAt:    dto.ExpiresAt,
		Signature:    sig,
		EpochBinding: dto.EpochBinding,
	}

	for _, link := range dto.Delegation {
		linkSig, err := crypto.DecodeHex(link.Signature)
		if err != nil {
			return nil, fmt.Errorf("decode delegation link signature: %w", err)
		}
		c.Delegation = append(c.Delegation, credential.DelegationLink{
			ParentCredentialID:  link.ParentCredentialID,
			ParentAgentID:       link.ParentAgentID,
			ChildAgentID:        link.ChildAgentID,
			ReducedCapabilities: capsFromDTO(link.ReducedCapabilities),
			Signature:           linkSig,
		})
	}

	if dto.Principal != nil {
		c.Principal = &identity.Principal{
			HumanID:     dto.Principal.HumanID,
			IDPIssuer:   dto.Principal.IDPIssuer,
			IDPClientID: dto.Principal.IDPClientID,
		}
	}
	if dto.Agent != nil {
		pub, err := crypto.DecodeHex(dto.Agent.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("decode agent public key: %w", err)
		}
		c.Agent = &identity.Agent{
			AgentID:   dto.Agent.AgentID,
			PublicKey: pub,
			Platform:  dto.Agent.Platform,
			Verified:  dto.Agent.Verified,
		}
	}

	if dto.ARCCred != nil {
		u, err := decodePoint(dto.ARCCred.U)
		if err != nil {
			return nil, fmt.Errorf("decode arc credential u: %w", err)
		}
		uPrime, err := decodePoint(dto.ARCCred.UPrime)
		if err != nil {
			return nil, fmt.Errorf("decode arc credential u_prime: %w", err)
		}
		m1, err := decodeScalar(dto.ARCCred.M1)
		if err != nil {
			return nil, fmt.Errorf("decode arc credential m1: %w", err)
		}
		pubX1, err := decodePoint(dto.ARCCred.IssuerPubX1)
		if err != nil {
			return nil, fmt.Errorf("decode arc credential issuer_pub_x1: %w", err)
		}
		c.ARCCred = &arc.ARCCredential{U: u, UPrime: uPrime, M1: m1, IssuerPubX1: pubX1}
	}
	if dto.ARCServerKey != nil {
		pubX0, err := decodePoint(dto.ARCServerKey.PubX0)
		if err != nil {
			return nil, fmt.Errorf("decode arc server key pub_x0: %w", err)
		}
		pubX1, err := decodePoint(dto.ARCServerKey.PubX1)
		if err != nil {
			return nil, fmt.Errorf("decode arc server key pub_x1: %w", err)
		}
		c.ARCServerKey = &arc.ServerPublicKey{PubX0: pubX0, PubX1: pubX1}
	}

	if dto.SealedIdentityBound != "" {
		sealed, err := crypto.DecodeHex(dto.SealedIdentityBound)
		if err != nil {
			return nil, fmt.Errorf("decode sealed_identity_bound: %w", err)
		}
		c.SealedIdentityBound = sealed
	}

	return c, nil
}

func marshalCredential(c *credential.ACDPCredential) ([]byte, error) {
	return json.Marshal(credentialToDTO(c))
}

func unmarshalCredential(data []byte) (*credential.ACDPCredential, error) {
	var dto credentialDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	return credentialFromDTO(dto)
}

// arcPresentationDTO is the wire form of arc.ARCPresentation an agent
// attaches to a verify request.
type arcPresentationDTO struct {
	Up                pointDTO `json:"up"`
	UPrimeMasked      pointDTO `json:"u_prime_masked"`
	M1Commit          pointDTO `json:"m1_commit"`
	V                 pointDTO `json:"v"`
	T                 pointDTO `json:"t"`
	M1Tag             pointDTO `json:"m1_tag"`
	PresentationNonce string   `json:"presentation_nonce"`
	Proof             string   `json:"proof"`
}

func presentationFromDTO(dto *arcPresentationDTO) (*arc.ARCPresentation, error) {
	if dto == nil {
		return nil, nil
	}
	up, err := decodePoint(dto.Up)
	if err != nil {
		return nil, fmt.Errorf("decode presentation up: %w", err)
	}
	uPrimeMasked, err := decodePoint(dto.UPrimeMasked)
	if err != nil {
		return nil, fmt.Errorf("decode presentation u_prime_masked: %w", err)
	}
	m1Commit, err := decodePoint(dto.M1Commit)
	if err != nil {
		return nil, fmt.Errorf("decode presentation m1_commit: %w", err)
	}
	v, err := decodePoint(dto.V)
	if err != nil {
		return nil, fmt.Errorf("decode presentation v: %w", err)
	}
	t, err := decodePoint(dto.T)
	if err != nil {
		return nil, fmt.Errorf("decode presentation t: %w", err)
	}
	m1Tag, err := decodePoint(dto.M1Tag)
	if err != nil {
		return nil, fmt.Errorf("decode presentation m1_tag: %w", err)
	}
	nonce, err := crypto.DecodeHex(dto.PresentationNonce)
	if err != nil {
		return nil, fmt.Errorf("decode presentation nonce: %w", err)
	}
	proof, err := crypto.DecodeHex(dto.Proof)
	if err != nil {
		return nil, fmt.Errorf("decode presentation proof: %w", err)
	}
	return &arc.ARCPresentation{
		Up:                up,
		UPrimeMasked:      uPrimeMasked,
		M1Commit:          m1Commit,
		V:                 v,
		T:                 t,
		M1Tag:             m1Tag,
		PresentationNonce: nonce,
		Proof:             proof,
	}, nil
}
