package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/maceip/acdp/pkg/crypto"
)

func TestFromIDJAGValidatesFields(t *testing.T) {
	p, err := FromIDJAG("alice@acme.com", "https://acme.idp.example", "mcp-client")
	if err != nil {
		t.Fatalf("FromIDJAG: %v", err)
	}
	if p.CanonicalID() != "alice@acme.com@https://acme.idp.example" {
		t.Fatalf("unexpected canonical id: %s", p.CanonicalID())
	}

	if _, err := FromIDJAG("", "https://acme.idp.example", "mcp-client"); err == nil {
		t.Fatalf("expected error for empty human_id")
	}
	if _, err := FromIDJAG("alice@acme.com", "not-a-url", "mcp-client"); err == nil {
		t.Fatalf("expected error for invalid idp_issuer URL")
	}
}

func TestVerifyIDJAGMismatch(t *testing.T) {
	p, err := FromIDJAG("alice@acme.com", "https://acme.idp.example", "mcp-client")
	if err != nil {
		t.Fatalf("FromIDJAG: %v", err)
	}

	if err := p.VerifyIDJAG("alice@acme.com", "https://acme.idp.example", "mcp-client"); err != nil {
		t.Fatalf("expected matching claims to verify, got %v", err)
	}
	if err := p.VerifyIDJAG("bob@acme.com", "https://acme.idp.example", "mcp-client"); err == nil {
		t.Fatalf("expected mismatch on human_id to fail")
	}
}

func TestAgentNewAndVerifySignature(t *testing.T) {
	kp, err := crypto.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair: %v", err)
	}

	agent, err := New("agent://anthropic/claude", kp.PublicKey, "anthropic/claude", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := []byte("delegate to agent://anthropic/claude-sub")
	sig := kp.Sign(msg)

	if err := agent.VerifySignature(msg, sig); err != nil {
		t.Fatalf("VerifySignature on valid signature: %v", err)
	}
	if err := agent.VerifySignature([]byte("tampered"), sig); err == nil {
		t.Fatalf("VerifySignature accepted a signature over the wrong message")
	}
}

func TestAgentNewRejectsBadPublicKeyLength(t *testing.T) {
	if _, err := New("agent://x", []byte{1, 2, 3}, "platform", false); !errors.Is(err, ErrInvalidAgent) {
		t.Fatalf("expected ErrInvalidAgent wrapping for short key, got %v", err)
	}
}

func signIDJAG(t *testing.T, claims IDJAGClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

func TestParseIDJAGValid(t *testing.T) {
	now := time.Now()
	claims := IDJAGClaims{
		Type:       "oauth-id-jag+jwt",
		JTI:        "test-jti",
		Issuer:     "https://idp.example.com",
		Subject:    "alice@example.com",
		Audience:   "https://acdp-gateway.example.dev/",
		Resource:   "https://mcp-server.example.com/",
		ClientID:   "mcp-client",
		Expiration: now.Add(5 * time.Minute).Unix(),
		IssuedAt:   now.Unix(),
		Scope:      "mcp:filesystem:read mcp:filesystem:list",
	}
	token := signIDJAG(t, claims)

	parsed, err := ParseIDJAG(token, "https://acdp-gateway.example.dev/")
	if err != nil {
		t.Fatalf("ParseIDJAG: %v", err)
	}
	if parsed.Subject != "alice@example.com" {
		t.Fatalf("unexpected subject: %s", parsed.Subject)
	}

	tools := parsed.Tools()
	if len(tools) != 2 || tools[0] != "filesystem:read" {
		t.Fatalf("unexpected tools: %v", tools)
	}
}

func TestParseIDJAGRejectsWrongType(t *testing.T) {
	now := time.Now()
	claims := IDJAGClaims{
		Type:       "invalid-type",
		JTI:        "test-jti",
		Issuer:     "https://idp.example.com",
		Subject:    "alice@example.com",
		Audience:   "https://acdp-gateway.example.dev/",
		Resource:   "https://mcp-server.example.com/",
		ClientID:   "mcp-client",
		Expiration: now.Add(5 * time.Minute).Unix(),
		IssuedAt:   now.Unix(),
		Scope:      "mcp:filesystem:read",
	}
	token := signIDJAG(t, claims)

	if _, err := ParseIDJAG(token, "https://acdp-gateway.example.dev/"); err == nil {
		t.Fatalf("expected error for wrong token type")
	}
}

func TestParseIDJAGRejectsExpired(t *testing.T) {
	now := time.Now()
	claims := IDJAGClaims{
		Type:       "oauth-id-jag+jwt",
		JTI:        "test-jti",
		Issuer:     "https://idp.example.com",
		Subject:    "alice@example.com",
		Audience:   "https://acdp-gateway.example.dev/",
		Resource:   "https://mcp-server.example.com/",
		ClientID:   "mcp-client",
		Expiration: now.Add(-5 * time.Minute).Unix(),
		IssuedAt:   now.Add(-10 * time.Minute).Unix(),
		Scope:      "mcp:filesystem:read",
	}
	token := signIDJAG(t, claims)

	if _, err := ParseIDJAG(token, "https://acdp-gateway.example.dev/"); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestParseIDJAGRejectsAudienceMismatch(t *testing.T) {
	now := time.Now()
	claims := IDJAGClaims{
		Type:       "oauth-id-jag+jwt",
		JTI:        "test-jti",
		Issuer:     "https://idp.example.com",
		Subject:    "alice@example.com",
		Audience:   "https://wrong-gateway.example.dev/",
		Resource:   "https://mcp-server.example.com/",
		ClientID:   "mcp-client",
		Expiration: now.Add(5 * time.Minute).Unix(),
		IssuedAt:   now.Unix(),
		Scope:      "mcp:filesystem:read",
	}
	token := signIDJAG(t, claims)

	if _, err := ParseIDJAG(token, "https://acdp-gateway.example.dev/"); err == nil {
		t.Fatalf("expected error for audience mismatch")
	}
}
