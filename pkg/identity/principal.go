// Package identity models the two parties an ACDP credential names: the
// human Principal authorized by an enterprise IdP, and the Agent acting on
// their behalf.
package identity

import (
	"fmt"
	"net/url"
)

// AdditionalClaims carries the optional human-facing claims an ID-JAG may
// include beyond the three structural fields ACDP binds to.
type AdditionalClaims struct {
	Email  string
	Name   string
	Org    string
	Groups []string
	Custom map[string]any
}

// Principal is the human user an agent credential is bound to, extracted
// from a validated ID-JAG token. Immutable once constructed.
type Principal struct {
	HumanID          string
	IDPIssuer        string
	IDPClientID      string
	AdditionalClaims *AdditionalClaims
}

// FromIDJAG validates and constructs a Principal from the three ID-JAG
// claims ACDP cares about.
func FromIDJAG(humanID, idpIssuer, idpClientID string) (*Principal, error) {
	if len(humanID) < 1 || len(humanID) > 255 {
		return nil, fmt.Errorf("%w: human_id length out of bounds", ErrInvalidPrincipal)
	}
	if len(idpClientID) < 1 || len(idpClientID) > 255 {
		return nil, fmt.Errorf("%w: idp_client_id length out of bounds", ErrInvalidPrincipal)
	}
	u, err := url.Parse(idpIssuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: idp_issuer is not a valid URL", ErrInvalidPrincipal)
	}

	return &Principal{
		HumanID:     humanID,
		IDPIssuer:   idpIssuer,
		IDPClientID: idpClientID,
	}, nil
}

// WithClaims attaches additional ID-JAG claims to a Principal.
func (p *Principal) WithClaims(claims *AdditionalClaims) *Principal {
	p.AdditionalClaims = claims
	return p
}

// CanonicalID is the stable identifier ACDP uses in audit logs:
// "{human_id}@{idp_issuer}".
func (p *Principal) CanonicalID() string {
	return p.HumanID + "@" + p.IDPIssuer
}

// VerifyIDJAG checks that a freshly presented ID-JAG's sub/iss/client_id
// claims still match the Principal a credential was issued against.
func (p *Principal) VerifyIDJAG(sub, iss, clientID string) error {
	if p.HumanID != sub {
		return fmt.Errorf("%w: human_id mismatch", ErrInvalidIDJAG)
	}
	if p.IDPIssuer != iss {
		return fmt.Errorf("%w: idp_issuer mismatch", ErrInvalidIDJAG)
	}
	if p.IDPClientID != clientID {
		return fmt.Errorf("%w: idp_client_id mismatch", ErrInvalidIDJAG)
	}
	return nil
}
