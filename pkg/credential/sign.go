package credential

import "github.com/maceip/acdp/pkg/crypto"

// Sign computes the Gateway's Ed25519 signature over c's canonical bytes
// and stores it on the credential.
func (c *ACDPCredential) Sign(gatewayKey *crypto.Ed25519KeyPair) {
	c.Signature = gatewayKey.Sign(c.CanonicalBytes())
}

// VerifySignature recomputes the canonical bytes and checks the stored
// signature against the Gateway's public key.
func (c *ACDPCredential) VerifySignature(gatewayPublicKey []byte) error {
	if err := crypto.VerifyEd25519(gatewayPublicKey, c.CanonicalBytes(), c.Signature); err != nil {
		return ErrInvalidCredential
	}
	return nil
}
