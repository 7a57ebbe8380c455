package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// idJAGTokenType is the only acceptable ID-JAG "typ" claim value.
const idJAGTokenType = "oauth-id-jag+jwt"

// IDJAGClaims is the claim set an ID-JAG (Identity Assertion JWT
// Authorization Grant) carries across an enterprise token exchange.
// Signature verification against the issuing IdP's published key happens
// upstream of the credential engine; ParseIDJAG only decodes and validates
// claim shape.
type IDJAGClaims struct {
	Type       string `json:"typ"`
	JTI        string `json:"jti"`
	Issuer     string `json:"iss"`
	Subject    string `json:"sub"`
	Audience   string `json:"aud"`
	Resource   string `json:"resource"`
	ClientID   string `json:"client_id"`
	Expiration int64  `json:"exp"`
	IssuedAt   int64  `json:"iat"`
	Scope      string `json:"scope"`
}

// Valid satisfies jwt.Claims so ParseIDJAG can use the library's claim
// decoding without asking it to verify a signature it was never given a key
// for.
func (c IDJAGClaims) Valid() error {
	return nil
}

// ParseIDJAG decodes an ID-JAG's claims without verifying its signature and
// checks the claim shape: token type, non-empty structural fields, and
// that the token has not expired. expectedAudience must match the "aud"
// claim (the ACDP Gateway's own identifier).
func ParseIDJAG(token, expectedAudience string) (*IDJAGClaims, error) {
	var claims IDJAGClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: jwt decode failed: %v", ErrInvalidIDJAG, err)
	}

	if claims.Type != idJAGTokenType {
		return nil, fmt.Errorf("%w: unexpected typ %q", ErrInvalidIDJAG, claims.Type)
	}
	if claims.JTI == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidIDJAG)
	}
	if claims.Issuer == "" {
		return nil, fmt.Errorf("%w: missing iss", ErrInvalidIDJAG)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidIDJAG)
	}
	if claims.Audience != expectedAudience {
		return nil, fmt.Errorf("%w: audience mismatch %q != %q", ErrInvalidIDJAG, claims.Audience, expectedAudience)
	}
	if claims.Resource == "" {
		return nil, fmt.Errorf("%w: missing resource", ErrInvalidIDJAG)
	}
	if claims.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", ErrInvalidIDJAG)
	}
	if claims.Expiration <= claims.IssuedAt {
		return nil, fmt.Errorf("%w: exp must be after iat", ErrInvalidIDJAG)
	}
	if time.Now().Unix() > claims.Expiration {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidIDJAG)
	}

	return &claims, nil
}

// Tools splits the space-delimited "mcp:<tool>" scope entries an ID-JAG
// grants into a plain tool-name list, the same shape as the AllowedTools
// list the credential's capabilities carry.
func (c IDJAGClaims) Tools() []string {
	fields := strings.Fields(c.Scope)
	tools := make([]string, 0, len(fields))
	for _, f := range fields {
		tools = append(tools, strings.TrimPrefix(f, "mcp:"))
	}
	return tools
}
