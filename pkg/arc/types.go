// Package arc implements ARCCore: the Anonymous Rate-Limited Credential
// scheme used for anonymous and hybrid ACDP credentials. It is a
// keyed-verification anonymous credential over P-256 — only the holder of
// the issuer's secret key (x0, x1) can verify a presentation, which is why
// MCP servers route verification through the ACDP Gateway rather than
// checking presentations themselves.
package arc

import (
	"math/big"

	"github.com/maceip/acdp/pkg/crypto"
)

// Generators returns the two fixed, domain-separated P-256 generators ARC
// is built over: G, the curve's standard base point, and H, derived via
// hash-to-curve so no party knows its discrete log relative to G.
func Generators() (g, h crypto.Point) {
	return crypto.BasePoint(), crypto.HashToCurve("ACDP-ARC-P256-H")
}

// ServerKeyPair holds the issuer's secret scalars and their public points.
type ServerKeyPair struct {
	X0, X1       *big.Int
	PubX0, PubX1 crypto.Point
}

// Public returns the publishable half of the keypair, safe to attach to a
// credential travelling to a holder or to embed alongside it for audit.
func (sk *ServerKeyPair) Public() ServerPublicKey {
	return ServerPublicKey{PubX0: sk.PubX0, PubX1: sk.PubX1}
}

// ServerPublicKey is the issuer's public ARC key material, the only part of
// a ServerKeyPair a credential may carry.
type ServerPublicKey struct {
	PubX0, PubX1 crypto.Point
}

// IssuanceRequest is the client's blinded attribute commitment, sent to the
// issuer to obtain a fresh ARCCredential.
type IssuanceRequest struct {
	M1 crypto.Point // m1 * H
}

// IssuanceResponse carries the credential's MAC base and MAC value.
type IssuanceResponse struct {
	U, UPrime crypto.Point
	PubX1     crypto.Point
}

// ARCCredential is the client-held, long-lived anonymous credential. M1 is
// the client's secret attribute scalar and must never be transmitted to a
// verifier — only Anonymous/Hybrid issuance flows route it between the
// agent and the gateway during issuance.
type ARCCredential struct {
	U, UPrime   crypto.Point
	M1          *big.Int
	IssuerPubX1 crypto.Point
}

// ARCPresentation is the unlinkable, single-use proof an agent shows an MCP
// server. Up/UPrimeMasked are a fresh rerandomization of the credential's
// MAC; M1Commit/V/T/M1Tag are the public values the NIZK proves consistent
// knowledge of (m1, z, r, nonce) for, and T/M1Tag double as the
// rate-limiting tag the CounterStore tracks per presentation window.
type ARCPresentation struct {
	Up            crypto.Point
	UPrimeMasked  crypto.Point
	M1Commit      crypto.Point
	V             crypto.Point
	T             crypto.Point
	M1Tag         crypto.Point
	PresentationNonce []byte
	Proof         []byte // serialized arczkp.Proof
}
