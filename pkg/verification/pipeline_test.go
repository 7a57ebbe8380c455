package verification

import (
	"context"
	"testing"
	"time"

	"github.com/maceip/acdp/pkg/arc"
	"github.com/maceip/acdp/pkg/capability"
	"github.com/maceip/acdp/pkg/counterstore"
	"github.com/maceip/acdp/pkg/credential"
	"github.com/maceip/acdp/pkg/crypto"
	"github.com/maceip/acdp/pkg/identity"
)

func baseCaps() capability.Capabilities {
	return capability.Capabilities{
		AllowedTools:     []string{"filesystem/read_file"},
		MaxPresentations: 3,
		Window:           time.Hour,
	}
}

func testAgent(t *testing.T) *identity.Agent {
	t.Helper()
	kp, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair: %v", err)
	}
	agent, err := identity.New("agent://anthropic/claude", kp.PublicKey, "anthropic/claude", true)
	if err != nil {
		t.Fatalf("identity.New: %v", err)
	}
	return agent
}

func newVerifier(t *testing.T) (*Verifier, *crypto.Ed25519KeyPair, *arc.ServerKeyPair, counterstore.Store) {
	t.Helper()
	gatewayKey, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair: %v", err)
	}
	arcKey, err := arc.NewServerKeyPair()
	if err != nil {
		t.Fatalf("NewServerKeyPair: %v", err)
	}
	store := counterstore.NewMemStore()
	return New(gatewayKey.PublicKey, arcKey, store), gatewayKey, arcKey, store
}

func issueIdentityBound(t *testing.T, gatewayKey *crypto.Ed25519KeyPair, caps capability.Capabilities, store counterstore.Store) *credential.ACDPCredential {
	t.Helper()
	principal, err := identity.FromIDJAG("alice@acme.com", "https://acme.idp.example", "mcp-client")
	if err != nil {
		t.Fatalf("FromIDJAG: %v", err)
	}
	cred, err := credential.NewIdentityBound("acdp-gateway", principal, testAgent(t), caps, time.Hour)
	if err != nil {
		t.Fatalf("NewIdentityBound: %v", err)
	}
	cred.Sign(gatewayKey)

	if err := store.RecordIssuance(context.Background(), &counterstore.CounterRecord{
		CredentialID: cred.CredentialID,
		Max:          caps.MaxPresentations,
		ExpiresAt:    cred.ExpiresAt,
	}); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}
	return cred
}

func TestVerifyIdentityBoundSuccess(t *testing.T) {
	v, gatewayKey, _, store := newVerifier(t)
	cred := issueIdentityBound(t, gatewayKey, baseCaps(), store)

	result := v.Verify(context.Background(), &Request{
		Credential: cred,
		Context:    PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()},
	})

	if !result.Valid {
		t.Fatalf("expected valid result, got failure: %s", result.FailureReason)
	}
	if result.Principal == nil || result.AgentID != "agent://anthropic/claude" {
		t.Fatalf("identity-bound result should disclose principal and agent id: %+v", result)
	}
	if result.PresentationsRemaining != 2 {
		t.Fatalf("expected 2 presentations remaining, got %d", result.PresentationsRemaining)
	}
}

func TestVerifyRejectsUnauthorizedTool(t *testing.T) {
	v, gatewayKey, _, store := newVerifier(t)
	cred := issueIdentityBound(t, gatewayKey, baseCaps(), store)

	result := v.Verify(context.Background(), &Request{
		Credential: cred,
		Context:    PresentationContext{Tool: "network/http_request", ServerID: "server-1", Timestamp: time.Now()},
	})
	if result.Valid {
		t.Fatalf("expected tool authorization to fail")
	}
}

func TestVerifyRejectsExpiredCredential(t *testing.T) {
	v, gatewayKey, _, store := newVerifier(t)
	caps := baseCaps()
	cred, err := credentialForExpiry(t, gatewayKey, caps)
	if err != nil {
		t.Fatalf("credentialForExpiry: %v", err)
	}
	store.RecordIssuance(context.Background(), &counterstore.CounterRecord{CredentialID: cred.CredentialID, Max: caps.MaxPresentations, ExpiresAt: cred.ExpiresAt})

	result := v.Verify(context.Background(), &Request{
		Credential: cred,
		Context:    PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()},
	})
	if result.Valid {
		t.Fatalf("expected expired credential to fail verification")
	}
}

func credentialForExpiry(t *testing.T, gatewayKey *crypto.Ed25519KeyPair, caps capability.Capabilities) (*credential.ACDPCredential, error) {
	t.Helper()
	principal, err := identity.FromIDJAG("alice@acme.com", "https://acme.idp.example", "mcp-client")
	if err != nil {
		return nil, err
	}
	cred, err := credential.NewIdentityBound("acdp-gateway", principal, testAgent(t), caps, -time.Hour)
	if err != nil {
		return nil, err
	}
	cred.Sign(gatewayKey)
	return cred, nil
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	v, gatewayKey, _, store := newVerifier(t)
	cred := issueIdentityBound(t, gatewayKey, baseCaps(), store)
	cred.Capabilities.MaxPresentations = 999

	result := v.Verify(context.Background(), &Request{
		Credential: cred,
		Context:    PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()},
	})
	if result.Valid {
		t.Fatalf("expected tampered credential to fail signature verification")
	}
}

func TestVerifyRejectsRevokedCredential(t *testing.T) {
	v, gatewayKey, _, store := newVerifier(t)
	cred := issueIdentityBound(t, gatewayKey, baseCaps(), store)
	if err := store.Revoke(context.Background(), cred.CredentialID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	result := v.Verify(context.Background(), &Request{
		Credential: cred,
		Context:    PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()},
	})
	if result.Valid {
		t.Fatalf("expected revoked credential to fail verification")
	}
}

func TestVerifyEnforcesPresentationBudget(t *testing.T) {
	v, gatewayKey, _, store := newVerifier(t)
	caps := baseCaps()
	caps.MaxPresentations = 1
	cred := issueIdentityBound(t, gatewayKey, caps, store)

	req := &Request{Credential: cred, Context: PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()}}

	first := v.Verify(context.Background(), req)
	if !first.Valid {
		t.Fatalf("expected first presentation to succeed: %s", first.FailureReason)
	}
	second := v.Verify(context.Background(), req)
	if second.Valid {
		t.Fatalf("expected second presentation to exceed the budget")
	}
}

func issueAnonymous(t *testing.T, gatewayKey *crypto.Ed25519KeyPair, arcKey *arc.ServerKeyPair, caps capability.Capabilities, store counterstore.Store) (*credential.ACDPCredential, *arc.ARCCredential) {
	t.Helper()
	req, m1, err := arc.NewIssuanceRequest()
	if err != nil {
		t.Fatalf("NewIssuanceRequest: %v", err)
	}
	resp, err := arcKey.Issue(req)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	arcCred := arc.FinalizeCredential(resp, m1)
	pub := arcKey.Public()

	cred, err := credential.NewAnonymous("acdp-gateway", "epoch-2026-07", testAgent(t), arcCred, &pub, caps, time.Hour)
	if err != nil {
		t.Fatalf("NewAnonymous: %v", err)
	}
	cred.Sign(gatewayKey)

	if err := store.RecordIssuance(context.Background(), &counterstore.CounterRecord{
		CredentialID: cred.CredentialID,
		Max:          caps.MaxPresentations,
		ExpiresAt:    cred.ExpiresAt,
	}); err != nil {
		t.Fatalf("RecordIssuance: %v", err)
	}
	return cred, arcCred
}

func TestVerifyAnonymousSuccessHidesPrincipal(t *testing.T) {
	v, gatewayKey, arcKey, store := newVerifier(t)
	cred, arcCred := issueAnonymous(t, gatewayKey, arcKey, baseCaps(), store)

	pres, err := arcCred.Present([]byte(cred.EpochBinding))
	if err != nil {
		t.Fatalf("Present: %v", err)
	}

	result := v.Verify(context.Background(), &Request{
		Credential:      cred,
		Context:         PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()},
		ARCPresentation: pres,
	})
	if !result.Valid {
		t.Fatalf("expected valid anonymous verification, got: %s", result.FailureReason)
	}
	if result.Principal != nil || result.AgentID != "" || result.DelegationChain != nil {
		t.Fatalf("anonymous verification must not disclose identity: %+v", result)
	}
}

func TestVerifyAnonymousRequiresARCPresentation(t *testing.T) {
	v, gatewayKey, arcKey, store := newVerifier(t)
	cred, _ := issueAnonymous(t, gatewayKey, arcKey, baseCaps(), store)

	result := v.Verify(context.Background(), &Request{
		Credential: cred,
		Context:    PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()},
	})
	if result.Valid {
		t.Fatalf("expected missing ARC presentation to fail verification")
	}
}

func TestVerifyAnonymousRejectsTagReplayWithDifferentNonce(t *testing.T) {
	v, gatewayKey, arcKey, store := newVerifier(t)
	caps := baseCaps()
	caps.MaxPresentations = 5
	cred, arcCred := issueAnonymous(t, gatewayKey, arcKey, caps, store)

	pres, err := arcCred.Present([]byte(cred.EpochBinding))
	if err != nil {
		t.Fatalf("Present: %v", err)
	}

	// Simulate a captured-and-replayed presentation: the same rate-limit tag
	// was already observed under a different nonce within the window.
	tagBytes := crypto.MarshalPoint(pres.M1Tag)
	if _, err := store.ObservedTag(context.Background(), cred.CredentialID, "server-1", tagBytes, []byte("someone-elses-nonce"), caps.Window); err != nil {
		t.Fatalf("ObservedTag seed: %v", err)
	}

	result := v.Verify(context.Background(), &Request{
		Credential:      cred,
		Context:         PresentationContext{Tool: "filesystem/read_file", ServerID: "server-1", Timestamp: time.Now()},
		ARCPresentation: pres,
	})
	if result.Valid {
		t.Fatalf("expected replayed tag with mismatched nonce to be rejected")
	}
}
