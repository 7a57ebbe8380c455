package crypto

import (
	"bytes"
	"math/big"
	"testing"
)

func TestEd25519SignVerify(t *testing.T) {
	kp, err := GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair: %v", err)
	}

	msg := []byte("agent://claude issue request")
	sig := kp.Sign(msg)

	if err := VerifyEd25519(kp.PublicKey, msg, sig); err != nil {
		t.Fatalf("VerifyEd25519 on valid signature: %v", err)
	}

	if err := VerifyEd25519(kp.PublicKey, []byte("tampered"), sig); err == nil {
		t.Fatalf("VerifyEd25519 accepted a signature over the wrong message")
	}
}

func TestVerifyEd25519RejectsShortKey(t *testing.T) {
	if err := VerifyEd25519([]byte{1, 2, 3}, []byte("msg"), []byte("sig")); err != ErrInvalidPoint {
		t.Fatalf("expected ErrInvalidPoint for short key, got %v", err)
	}
}

func TestScalarMultAndAdd(t *testing.T) {
	k1, err := RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	k2, err := RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}

	g := BasePoint()
	p1 := ScalarMult(g, k1)
	p2 := ScalarMult(g, k2)

	k3 := new(big.Int).Add(k1, k2)
	k3.Mod(k3, Order())
	direct := ScalarMult(g, k3)
	combined := Add(p1, p2)

	if combined.X.Cmp(direct.X) != 0 || combined.Y.Cmp(direct.Y) != 0 {
		t.Fatalf("(k1+k2)*G != k1*G + k2*G")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	g := BasePoint()
	encoded := MarshalPoint(g)
	decoded, err := UnmarshalPoint(encoded)
	if err != nil {
		t.Fatalf("UnmarshalPoint: %v", err)
	}
	if decoded.X.Cmp(g.X) != 0 || decoded.Y.Cmp(g.Y) != 0 {
		t.Fatalf("round-tripped point does not match original")
	}
}

func TestUnmarshalPointRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalPoint([]byte{0xff, 0x00, 0x01}); err != ErrInvalidPoint {
		t.Fatalf("expected ErrInvalidPoint, got %v", err)
	}
}

func TestHashToCurveIsOnCurveAndDeterministic(t *testing.T) {
	h1 := HashToCurve("ARC-P256-generator-H")
	h2 := HashToCurve("ARC-P256-generator-H")

	if !IsOnCurve(h1) {
		t.Fatalf("HashToCurve produced a point not on P-256")
	}
	if h1.X.Cmp(h2.X) != 0 || h1.Y.Cmp(h2.Y) != 0 {
		t.Fatalf("HashToCurve is not deterministic for the same domain string")
	}

	g := BasePoint()
	if h1.X.Cmp(g.X) == 0 {
		t.Fatalf("HashToCurve returned the base point itself")
	}
}

func TestChallengeDeterministicAndDomainSeparated(t *testing.T) {
	c1 := Challenge("ARC-P256-presentation:abcd", []byte("a"), []byte("b"))
	c2 := Challenge("ARC-P256-presentation:abcd", []byte("a"), []byte("b"))
	if c1.Cmp(c2) != 0 {
		t.Fatalf("Challenge is not deterministic for identical input")
	}

	c3 := Challenge("ARC-P256-presentation:zzzz", []byte("a"), []byte("b"))
	if c1.Cmp(c3) == 0 {
		t.Fatalf("Challenge did not separate by domain tag")
	}

	c4 := Challenge("ARC-P256-presentation:abcd", []byte("a"), []byte("c"))
	if c1.Cmp(c4) == 0 {
		t.Fatalf("Challenge collided across different transcripts")
	}
}

func TestHexRoundTrip(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	encoded := EncodeHex(raw)
	decoded, err := DecodeHex(encoded)
	if err != nil {
		t.Fatalf("DecodeHex: %v", err)
	}
	if !bytes.Equal(raw, decoded) {
		t.Fatalf("hex round trip mismatch")
	}
}
