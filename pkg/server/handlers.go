package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maceip/acdp/pkg/acdperr"
	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/counterstore"
	"github.com/maceip/acdp/pkg/credential"
	"github.com/maceip/acdp/pkg/crypto"
	"github.com/maceip/acdp/pkg/delegation"
	"github.com/maceip/acdp/pkg/identity"
	"github.com/maceip/acdp/pkg/verification"
)

// Server holds every dependency the three ACDP HTTP handlers need: the
// gateway's signing identity, the counter store, the verification
// pipeline, and the ambient HTTP concerns (rate limiting, logging).
type Server struct {
	gatewayKey     *crypto.Ed25519KeyPair
	arcKey         *arc.ServerKeyPair
	store          counterstore.Store
	verifier       *verification.Verifier
	audience       string
	trustedIssuers []string
	logger         *log.Logger
	rateLimiter    *RateLimiter
}

// Config configures a Server.
type Config struct {
	GatewayKey         *crypto.Ed25519KeyPair
	ARCKey             *arc.ServerKeyPair
	Store              counterstore.Store
	Audience           string
	TrustedIDPIssuers  []string
	RateLimitPerMinute int
	Logger             *log.Logger
}

// New builds a Server and its verification pipeline.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[acdp-gateway] ", log.LstdFlags)
	}
	rate := cfg.RateLimitPerMinute
	if rate <= 0 {
		rate = 100
	}
	return &Server{
		gatewayKey:     cfg.GatewayKey,
		arcKey:         cfg.ARCKey,
		store:          cfg.Store,
		verifier:       verification.New(cfg.GatewayKey.PublicKey, cfg.ARCKey, cfg.Store),
		audience:       cfg.Audience,
		trustedIssuers: cfg.TrustedIDPIssuers,
		logger:         logger,
		rateLimiter:    NewRateLimiter(rate),
	}
}

// Mux builds the ACDP Gateway's HTTP route table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/acdp/v1/credentials/issue", s.handleIssue)
	mux.HandleFunc("/acdp/v1/verify", s.handleVerify)
	mux.HandleFunc("/acdp/v1/credentials/delegate", s.handleDelegate)
	return mux
}

// revocationAdapter lets counterstore.Store satisfy delegation.RevocationChecker.
type revocationAdapter struct {
	store counterstore.Store
}

func (a revocationAdapter) IsRevoked(credentialID uuid.UUID) (bool, error) {
	rec, err := a.store.Get(context.Background(), credentialID)
	if err == counterstore.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Revoked, nil
}

// handleIssue serves POST /acdp/v1/credentials/issue.
func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErr(w, acdperr.New(acdperr.HTTPError, "only POST is allowed"))
		return
	}
	if !s.rateLimiter.Allow(getClientIP(r)) {
		s.writeErr(w, acdperr.New(acdperr.RateLimitExceeded, "too many requests"))
		return
	}

	claims, err := s.bearerIDJAG(r)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid request body", err))
		return
	}

	if req.DurationDays < 1 || req.DurationDays > 365 {
		s.writeErr(w, acdperr.New(acdperr.InvalidCredential, "duration_days must be in [1, 365]"))
		return
	}
	duration := time.Duration(req.DurationDays) * 24 * time.Hour

	agentPub, err := crypto.DecodeHex(req.AgentPublicKey)
	if err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid agent_public_key", err))
		return
	}
	agent, err := identity.New(req.AgentID, agentPub, "mcp", true)
	if err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid agent", err))
		return
	}

	caps := capsFromDTO(req.Capabilities)
	if err := caps.Validate(); err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid capabilities", err))
		return
	}

	var cred *credential.ACDPCredential
	switch req.CredentialType {
	case "identity_bound":
		principal, err := identity.FromIDJAG(claims.Subject, claims.Issuer, claims.ClientID)
		if err != nil {
			s.writeErr(w, acdperr.Wrap(acdperr.InvalidIDJAG, "invalid principal", err))
			return
		}
		cred, err = credential.NewIdentityBound(s.audience, principal, agent, caps, duration)
		if err != nil {
			s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "issuance failed", err))
			return
		}
	case "anonymous", "hybrid":
		arcCred, arcPub, err := s.issueARCCredential()
		if err != nil {
			s.writeErr(w, acdperr.Wrap(acdperr.CryptoError, "arc issuance failed", err))
			return
		}
		epochBinding := uuid.New().String()
		if req.CredentialType == "anonymous" {
			cred, err = credential.NewAnonymous(s.audience, epochBinding, agent, arcCred, arcPub, caps, duration)
		} else {
			sealed, sealErr := sealIdentity(claims.Subject, claims.Issuer, claims.ClientID, agent.AgentID)
			if sealErr != nil {
				s.writeErr(w, acdperr.Wrap(acdperr.CryptoError, "sealing identity failed", sealErr))
				return
			}
			cred, err = credential.NewHybrid(s.audience, epochBinding, agent, arcCred, arcPub, sealed, caps, duration)
		}
		if err != nil {
			s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "issuance failed", err))
			return
		}
	default:
		s.writeErr(w, acdperr.New(acdperr.InvalidCredential, "credential_type must be identity_bound, anonymous, or hybrid"))
		return
	}

	cred.Sign(s.gatewayKey)

	if err := s.store.RecordIssuance(r.Context(), &counterstore.CounterRecord{
		CredentialID: cred.CredentialID,
		Used:         0,
		Max:          cred.Capabilities.MaxPresentations,
		ExpiresAt:    cred.ExpiresAt,
	}); err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.DatabaseError, "failed to record issuance", err))
		return
	}

	s.writeJSON(w, http.StatusOK, IssueResponse{
		Credential:     credentialToDTO(cred),
		CredentialID:   cred.CredentialID,
		CredentialType: string(cred.Variant),
	})
}

// issueARCCredential runs the gateway's own ARC issuance flow locally: the
// gateway plays both issuer and (momentarily) holder roles to mint a fresh
// anonymous credential, handing the agent the only copy of its secret m1.
func (s *Server) issueARCCredential() (*arc.ARCCredential, *arc.ServerPublicKey, error) {
	req, m1, err := arc.NewIssuanceRequest()
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.arcKey.Issue(req)
	if err != nil {
		return nil, nil, err
	}
	cred := arc.FinalizeCredential(resp, m1)
	pub := s.arcKey.Public()
	return cred, &pub, nil
}

// sealIdentity is a placeholder seal for the Hybrid variant's audit half:
// it opaquely encodes the principal claims an auditor flow would later
// recover. Sealing to a dedicated auditor public key is out of scope here
// (no auditor key distribution mechanism is specified); this keeps the
// field populated and well-formed for forward compatibility.
func sealIdentity(subject, issuer, clientID, agentID string) ([]byte, error) {
	return json.Marshal(struct {
		Subject  string `json:"subject"`
		Issuer   string `json:"issuer"`
		ClientID string `json:"client_id"`
		AgentID  string `json:"agent_id"`
	}{subject, issuer, clientID, agentID})
}

// handleVerify serves POST /acdp/v1/verify.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErr(w, acdperr.New(acdperr.HTTPError, "only POST is allowed"))
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid request body", err))
		return
	}

	cred, err := unmarshalCredential([]byte(req.Credential))
	if err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid credential", err))
		return
	}
	if cred.CredentialID != req.CredentialID {
		s.writeErr(w, acdperr.New(acdperr.InvalidCredential, "credential_id mismatch"))
		return
	}

	presentation, err := presentationFromDTO(req.ARCPresentation)
	if err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid arc_presentation", err))
		return
	}

	result := s.verifier.Verify(r.Context(), &verification.Request{
		Credential: cred,
		Context: verification.PresentationContext{
			Tool:      req.PresentationContext.Tool,
			Resource:  req.PresentationContext.Resource,
			Timestamp: req.PresentationContext.Timestamp,
			ServerID:  req.PresentationContext.ServerID,
		},
		ARCPresentation: presentation,
	})

	resp := VerifyResponse{
		Valid:                  result.Valid,
		AgentID:                result.AgentID,
		PresentationsRemaining: result.PresentationsRemaining,
		DelegationChain:        result.DelegationChain,
		FailureReason:          result.FailureReason,
		VerifiedAt:             result.VerifiedAt,
	}
	if result.Principal != nil {
		id := result.Principal.CanonicalID()
		resp.Principal = &id
	}

	// Verification never 5xxs on its own account: a rejected presentation
	// is a 200 with valid:false, per the fail-closed taxonomy.
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDelegate serves POST /acdp/v1/credentials/delegate.
func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErr(w, acdperr.New(acdperr.HTTPError, "only POST is allowed"))
		return
	}
	if !s.rateLimiter.Allow(getClientIP(r)) {
		s.writeErr(w, acdperr.New(acdperr.RateLimitExceeded, "too many requests"))
		return
	}

	var req DelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid request body", err))
		return
	}

	parent, err := unmarshalCredential([]byte(req.ParentCredential))
	if err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid parent_credential", err))
		return
	}
	if parent.CredentialID != req.ParentCredentialID {
		s.writeErr(w, acdperr.New(acdperr.InvalidCredential, "parent_credential_id mismatch"))
		return
	}

	if req.DurationDays < 1 || req.DurationDays > 365 {
		s.writeErr(w, acdperr.New(acdperr.InvalidCredential, "duration_days must be in [1, 365]"))
		return
	}
	duration := time.Duration(req.DurationDays) * 24 * time.Hour

	childPub, err := crypto.DecodeHex(req.ChildAgentPublicKey)
	if err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid child_agent_public_key", err))
		return
	}
	childAgent, err := identity.New(req.ChildAgentID, childPub, "mcp", true)
	if err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.InvalidCredential, "invalid child agent", err))
		return
	}

	reducedCaps := capsFromDTO(req.Capabilities)

	// The HTTP boundary never sees the parent agent's private key, so the
	// gateway signs the delegation link itself; the envelope-level
	// signature over the whole child credential (also the gateway's) is
	// what an MCP server actually verifies.
	child, delegateErr := delegation.Delegate(s.gatewayKey, revocationAdapter{s.store}, parent, s.gatewayKey, childAgent, reducedCaps, duration)
	if delegateErr != nil {
		s.writeErr(w, mapDelegationError(delegateErr))
		return
	}

	if err := s.store.RecordIssuance(r.Context(), &counterstore.CounterRecord{
		CredentialID: child.CredentialID,
		Used:         0,
		Max:          child.Capabilities.MaxPresentations,
		ExpiresAt:    child.ExpiresAt,
		ParentID:     &parent.CredentialID,
	}); err != nil {
		s.writeErr(w, acdperr.Wrap(acdperr.DatabaseError, "failed to record issuance", err))
		return
	}

	s.writeJSON(w, http.StatusOK, IssueResponse{
		Credential:     credentialToDTO(child),
		CredentialID:   child.CredentialID,
		CredentialType: string(child.Variant),
	})
}

// mapDelegationError translates delegation's plain sentinel errors into the
// typed taxonomy the HTTP layer's status-code table understands.
func mapDelegationError(err error) *acdperr.Error {
	switch err {
	case delegation.ErrDelegationNotAllowed:
		return acdperr.Wrap(acdperr.DelegationNotAllowed, "delegation not allowed", err)
	case delegation.ErrDelegationDepthExceeded:
		return acdperr.Wrap(acdperr.DelegationDepthExceeded, "delegation depth exceeded", err)
	case delegation.ErrCycleDetected:
		return acdperr.Wrap(acdperr.DelegationNotAllowed, "cycle detected", err)
	default:
		return acdperr.Wrap(acdperr.CapabilityReductionViolation, "capability reduction violation", err)
	}
}

func (s *Server) bearerIDJAG(r *http.Request) (*identity.IDJAGClaims, *acdperr.Error) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, acdperr.New(acdperr.InvalidIDJAG, "missing bearer ID-JAG")
	}
	token := strings.TrimPrefix(auth, "Bearer ")

	claims, err := identity.ParseIDJAG(token, s.audience)
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InvalidIDJAG, "id-jag validation failed", err)
	}
	if len(s.trustedIssuers) > 0 && !contains(s.trustedIssuers, claims.Issuer) {
		return nil, acdperr.New(acdperr.InvalidIDJAG, "untrusted issuer")
	}
	return claims, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("error encoding response: %v", err)
	}
}

func (s *Server) writeErr(w http.ResponseWriter, err *acdperr.Error) {
	status := acdperr.StatusCode(err.Kind)
	var resp errorResponse
	resp.Error.Kind = string(err.Kind)
	resp.Error.Message = err.Message
	s.writeJSON(w, status, resp)
}

func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i != -1 {
		return addr[:i]
	}
	return addr
}
