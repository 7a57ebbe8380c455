package arczkp

import (
	"math/big"
	"testing"

	"github.com/maceip/acdp/pkg/crypto"
)

func validInstance(t *testing.T) (Witnesses, Elements, Targets) {
	t.Helper()

	m1, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar m1: %v", err)
	}
	z, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar z: %v", err)
	}
	r, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar r: %v", err)
	}
	nonce, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar nonce: %v", err)
	}

	u := crypto.HashToCurve("arczkp-test-U")
	x1 := crypto.HashToCurve("arczkp-test-X1")
	g := crypto.BasePoint()
	h := crypto.HashToCurve("arczkp-test-H")
	tag := crypto.HashToCurve("arczkp-test-tag")

	witnesses := Witnesses{m1, z, r, nonce}
	elems := Elements{ElementU: u, ElementX1: x1, ElementG: g, ElementH: h, ElementTag: tag}

	var targets Targets
	for k, eq := range equations {
		targets[k] = evalEquation(eq, witnesses, elems)
	}

	return witnesses, elems, targets
}

func TestCreateVerifyRoundTrip(t *testing.T) {
	witnesses, elems, targets := validInstance(t)

	proof, err := Create(witnesses, elems, targets, "arczkp-test-domain")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := Verify(proof, elems, targets, "arczkp-test-domain"); err != nil {
		t.Fatalf("Verify rejected a valid proof: %v", err)
	}
}

func TestVerifyRejectsWrongDomain(t *testing.T) {
	witnesses, elems, targets := validInstance(t)

	proof, err := Create(witnesses, elems, targets, "arczkp-test-domain")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := Verify(proof, elems, targets, "arczkp-other-domain"); err != ErrARCVerificationFailed {
		t.Fatalf("expected ErrARCVerificationFailed for mismatched domain, got %v", err)
	}
}

func TestVerifyRejectsTamperedTarget(t *testing.T) {
	witnesses, elems, targets := validInstance(t)

	proof, err := Create(witnesses, elems, targets, "arczkp-test-domain")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	targets[TargetV] = crypto.Add(targets[TargetV], crypto.BasePoint())

	if err := Verify(proof, elems, targets, "arczkp-test-domain"); err != ErrARCVerificationFailed {
		t.Fatalf("expected ErrARCVerificationFailed for tampered target, got %v", err)
	}
}

func TestVerifyRejectsWrongWitness(t *testing.T) {
	witnesses, elems, targets := validInstance(t)

	tampered := witnesses
	tampered[WitnessM1] = new(big.Int).Add(tampered[WitnessM1], big.NewInt(1))

	proof, err := Create(tampered, elems, targets, "arczkp-test-domain")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := Verify(proof, elems, targets, "arczkp-test-domain"); err != ErrARCVerificationFailed {
		t.Fatalf("expected ErrARCVerificationFailed for proof of wrong witnesses, got %v", err)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	witnesses, elems, targets := validInstance(t)

	proof, err := Create(witnesses, elems, targets, "arczkp-test-domain")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	encoded := Marshal(proof)
	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if err := Verify(decoded, elems, targets, "arczkp-test-domain"); err != nil {
		t.Fatalf("Verify on round-tripped proof: %v", err)
	}
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	if _, err := Unmarshal([]byte{0x00, 0x00}); err == nil {
		t.Fatalf("expected error unmarshaling truncated data")
	}
}
