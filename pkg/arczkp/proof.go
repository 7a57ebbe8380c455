package arczkp

import (
	"math/big"

	"github.com/maceip/acdp/pkg/crypto"
)

// Proof is a non-interactive Sigma-protocol transcript proving knowledge of
// the four ARC witnesses consistent with Targets, without revealing them.
type Proof struct {
	A [numTargets]crypto.Point
	S [numWitnesses]*big.Int
}

// Create builds a proof that the prover knows witnesses satisfying every
// equation in relation.go against elems, producing targets that must match
// what the verifier independently computed from the presentation.
func Create(witnesses Witnesses, elems Elements, targets Targets, domainTag string) (*Proof, error) {
	var blinds [numWitnesses]*big.Int
	for i := range blinds {
		k, err := crypto.RandomScalar()
		if err != nil {
			return nil, err
		}
		blinds[i] = k
	}

	var commitments [numTargets]crypto.Point
	for k, eq := range equations {
		commitments[k] = evalEquation(eq, blinds, elems)
	}

	challenge := fiatShamirChallenge(domainTag, elems, targets, commitments)

	var responses [numWitnesses]*big.Int
	order := crypto.Order()
	for i := range responses {
		s := new(big.Int).Mul(challenge, witnesses[i])
		s.Add(s, blinds[i])
		s.Mod(s, order)
		responses[i] = s
	}

	return &Proof{A: commitments, S: responses}, nil
}

// Verify checks proof against the public elements and targets, recomputing
// the Fiat-Shamir challenge itself. Returns ErrARCVerificationFailed if any
// of the four equations fails to check out.
func Verify(proof *Proof, elems Elements, targets Targets, domainTag string) error {
	challenge := fiatShamirChallenge(domainTag, elems, targets, proof.A)

	for k, eq := range equations {
		lhs := evalEquation(eq, proof.S, elems)
		rhs := crypto.Add(proof.A[k], crypto.ScalarMult(targets[k], challenge))
		if !pointsEqual(lhs, rhs) {
			return ErrARCVerificationFailed
		}
	}
	return nil
}

func pointsEqual(p, q crypto.Point) bool {
	if crypto.IsIdentity(p) || crypto.IsIdentity(q) {
		return crypto.IsIdentity(p) && crypto.IsIdentity(q)
	}
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

func fiatShamirChallenge(domainTag string, elems Elements, targets Targets, commitments [numTargets]crypto.Point) *big.Int {
	transcript := make([][]byte, 0, numElements+numTargets+numTargets)
	for _, e := range elems {
		transcript = append(transcript, crypto.MarshalPoint(e))
	}
	for _, t := range targets {
		transcript = append(transcript, crypto.MarshalPoint(t))
	}
	for _, c := range commitments {
		transcript = append(transcript, crypto.MarshalPoint(c))
	}
	return crypto.Challenge(domainTag, transcript...)
}
