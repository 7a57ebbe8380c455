package arc

import (
	"crypto/rand"
	"math/big"

	"github.com/maceip/acdp/pkg/acdperr"
	"github.com/maceip/acdp/pkg/arczkp"
	"github.com/maceip/acdp/pkg/crypto"
)

// NewServerKeyPair generates a fresh ARC issuer keypair. X0 and X1 are the
// two secret scalars the MAC is keyed on; PubX1 is published so a holder can
// run the presentation's Sigma protocol against it.
func NewServerKeyPair() (*ServerKeyPair, error) {
	x0, err := crypto.RandomScalar()
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: generate x0", err)
	}
	x1, err := crypto.RandomScalar()
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: generate x1", err)
	}

	g := crypto.BasePoint()
	return &ServerKeyPair{
		X0:    x0,
		X1:    x1,
		PubX0: crypto.ScalarMult(g, x0),
		PubX1: crypto.ScalarMult(g, x1),
	}, nil
}

// NewIssuanceRequest picks the client's secret attribute scalar m1 and
// commits to it as M1 = m1*H for the issuer. The caller must retain m1 to
// finalize the resulting credential.
func NewIssuanceRequest() (*IssuanceRequest, *big.Int, error) {
	m1, err := crypto.RandomScalar()
	if err != nil {
		return nil, nil, acdperr.Wrap(acdperr.InternalError, "arc: generate m1", err)
	}
	_, h := Generators()
	return &IssuanceRequest{M1: crypto.ScalarMult(h, m1)}, m1, nil
}

// Issue computes the MAC for a client's blinded attribute commitment. U is
// fixed to the ARC generator H so every credential from this issuer shares
// the same unrandomized base; UPrime = x0*U + x1*M1 is the keyed MAC value.
func (sk *ServerKeyPair) Issue(req *IssuanceRequest) (*IssuanceResponse, error) {
	_, h := Generators()
	uPrime := crypto.Add(crypto.ScalarMult(h, sk.X0), crypto.ScalarMult(req.M1, sk.X1))
	return &IssuanceResponse{U: h, UPrime: uPrime, PubX1: sk.PubX1}, nil
}

// FinalizeCredential binds the issuer's response to the client's retained
// attribute scalar, producing the long-lived credential the client stores.
func FinalizeCredential(resp *IssuanceResponse, m1 *big.Int) *ARCCredential {
	return &ARCCredential{U: resp.U, UPrime: resp.UPrime, M1: m1, IssuerPubX1: resp.PubX1}
}

// Present produces a fresh, unlinkable presentation of cred. windowTag
// identifies the rate-limit window the CounterStore should account this
// presentation against (e.g. derived from credential ID, tool scope, and
// window epoch) — it is public and known to both client and gateway, and
// determines M1Tag, the pseudonym the CounterStore uses to recognize repeat
// presentations of the same credential within the same window without
// learning the credential's identity.
func (cred *ARCCredential) Present(windowTag []byte) (*ARCPresentation, error) {
	g, h := Generators()
	tag := crypto.HashToCurve("ACDP-ARC-window-tag:" + crypto.EncodeHex(windowTag))

	rho, err := crypto.RandomScalar()
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: generate rho", err)
	}
	r, err := crypto.RandomScalar()
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: generate r", err)
	}
	z, err := crypto.RandomScalar()
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: generate z", err)
	}
	nonce, err := crypto.RandomScalar()
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: generate nonce", err)
	}

	presentationNonce := make([]byte, 16)
	if _, err := rand.Read(presentationNonce); err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: generate presentation nonce", err)
	}

	up := crypto.ScalarMult(cred.U, rho)
	uPrimeRerandomized := crypto.ScalarMult(cred.UPrime, rho)
	uPrimeMasked := crypto.Add(uPrimeRerandomized, crypto.ScalarMult(g, r))

	m1Commit := crypto.Add(crypto.ScalarMult(up, cred.M1), crypto.ScalarMult(g, z))
	m1Tag := crypto.ScalarMult(tag, cred.M1)
	t := crypto.Add(m1Tag, crypto.ScalarMult(tag, nonce))

	elems := arczkp.Elements{
		arczkp.ElementU:   up,
		arczkp.ElementX1:  cred.IssuerPubX1,
		arczkp.ElementG:   g,
		arczkp.ElementH:   h,
		arczkp.ElementTag: tag,
	}

	targets := arczkp.Targets{
		arczkp.TargetM1Commit: m1Commit,
		arczkp.TargetV:        crypto.Sub(crypto.ScalarMult(cred.IssuerPubX1, z), crypto.ScalarMult(g, r)),
		arczkp.TargetT:        t,
		arczkp.TargetM1Tag:    m1Tag,
	}

	witnesses := arczkp.Witnesses{
		arczkp.WitnessM1:    cred.M1,
		arczkp.WitnessZ:     z,
		arczkp.WitnessR:     r,
		arczkp.WitnessNonce: nonce,
	}

	domainTag := "ARC-P256-presentation:" + crypto.EncodeHex(presentationNonce)
	proof, err := arczkp.Create(witnesses, elems, targets, domainTag)
	if err != nil {
		return nil, acdperr.Wrap(acdperr.InternalError, "arc: create presentation proof", err)
	}

	return &ARCPresentation{
		Up:                up,
		UPrimeMasked:      uPrimeMasked,
		M1Commit:          m1Commit,
		V:                 targets[arczkp.TargetV],
		T:                 t,
		M1Tag:             m1Tag,
		PresentationNonce: presentationNonce,
		Proof:             arczkp.Marshal(proof),
	}, nil
}

// Verify checks an ARCPresentation against the issuer's secret key. It
// performs two independent checks: the Sigma-protocol proof (knowledge of
// m1, z, r, nonce consistent across all four equations) and a direct,
// non-zero-knowledge MAC-validity check using the issuer's own x0, x1 that
// confirms UPrimeMasked was derived from a credential this issuer actually
// minted, without ever learning m1.
func (sk *ServerKeyPair) Verify(pres *ARCPresentation, windowTag []byte) error {
	g, h := Generators()
	tag := crypto.HashToCurve("ACDP-ARC-window-tag:" + crypto.EncodeHex(windowTag))

	proof, err := arczkp.Unmarshal(pres.Proof)
	if err != nil {
		return acdperr.Wrap(acdperr.ARCVerificationFailed, "arc: unmarshal presentation proof", err)
	}

	elems := arczkp.Elements{
		arczkp.ElementU:   pres.Up,
		arczkp.ElementX1:  sk.PubX1,
		arczkp.ElementG:   g,
		arczkp.ElementH:   h,
		arczkp.ElementTag: tag,
	}
	targets := arczkp.Targets{
		arczkp.TargetM1Commit: pres.M1Commit,
		arczkp.TargetV:        pres.V,
		arczkp.TargetT:        pres.T,
		arczkp.TargetM1Tag:    pres.M1Tag,
	}

	domainTag := "ARC-P256-presentation:" + crypto.EncodeHex(pres.PresentationNonce)
	if err := arczkp.Verify(proof, elems, targets, domainTag); err != nil {
		return acdperr.Wrap(acdperr.ARCVerificationFailed, "arc: presentation proof", err)
	}

	// x0*Up + x1*M1Commit - UPrimeMasked - V must be the point at infinity.
	check := crypto.Add(crypto.ScalarMult(pres.Up, sk.X0), crypto.ScalarMult(pres.M1Commit, sk.X1))
	check = crypto.Sub(check, pres.UPrimeMasked)
	check = crypto.Sub(check, pres.V)
	if !crypto.IsIdentity(check) {
		return ErrInvalidPresentation
	}

	return nil
}
