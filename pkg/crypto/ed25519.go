package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Ed25519KeyPair holds a generated signing key. PublicKey is the half that
// gets hex-encoded onto the wire (agent.rs does the same for the Rust
// prototype's Agent.public_key field).
type Ed25519KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateEd25519KeyPair creates a new signing keypair using the system CSPRNG.
func GenerateEd25519KeyPair() (*Ed25519KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Ed25519KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// Sign produces a detached Ed25519 signature over msg.
func (kp *Ed25519KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(kp.PrivateKey, msg)
}

// VerifyEd25519 checks sig against msg under pub. pub must be exactly
// ed25519.PublicKeySize bytes.
func VerifyEd25519(pub []byte, msg, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return ErrInvalidPoint
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}
