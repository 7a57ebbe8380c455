// Package arczkp implements the four-constraint linear-relation Sigma
// protocol ARC presentations use to prove knowledge of (m1, z, r, nonce)
// without revealing them. The witness and element allocation order below is
// fixed and exported so the prover and verifier always build the identical
// transcript.
package arczkp

import (
	"math/big"

	"github.com/maceip/acdp/pkg/crypto"
)

// Witness indices, in allocation order.
const (
	WitnessM1 = iota
	WitnessZ
	WitnessR
	WitnessNonce
	numWitnesses
)

// Element (public base point) indices, in allocation order.
const (
	ElementU = iota
	ElementX1
	ElementG
	ElementH
	ElementTag
	numElements
)

// Target (public derived value) indices, one per constraint equation.
const (
	TargetM1Commit = iota
	TargetV
	TargetT
	TargetM1Tag
	numTargets
)

// term is one signed witness*base product inside an equation.
type term struct {
	witness int
	base    int
	negate  bool
}

// equations encodes the four constraints:
//
//	m1Commit = m1*U + z*G
//	V        = z*X1 - r*G
//	T        = m1*tag + nonce*tag
//	m1Tag    = m1*tag
var equations = [numTargets][]term{
	TargetM1Commit: {{WitnessM1, ElementU, false}, {WitnessZ, ElementG, false}},
	TargetV:        {{WitnessZ, ElementX1, false}, {WitnessR, ElementG, true}},
	TargetT:        {{WitnessM1, ElementTag, false}, {WitnessNonce, ElementTag, false}},
	TargetM1Tag:    {{WitnessM1, ElementTag, false}},
}

// Elements is the ordered set of public base points for one proof instance.
type Elements [numElements]crypto.Point

// Targets is the ordered set of public derived values a proof attests to.
type Targets [numTargets]crypto.Point

// Witnesses is the ordered set of secret scalars a prover holds.
type Witnesses [numWitnesses]*big.Int

// evalEquation computes the signed linear combination for one equation
// given concrete scalars (either the real witnesses or the prover's random
// blinds) and the instance's elements.
func evalEquation(eq []term, scalars [numWitnesses]*big.Int, elems Elements) crypto.Point {
	var acc crypto.Point
	first := true
	for _, t := range eq {
		p := crypto.ScalarMult(elems[t.base], scalars[t.witness])
		if t.negate {
			p = crypto.Negate(p)
		}
		if first {
			acc = p
			first = false
			continue
		}
		acc = crypto.Add(acc, p)
	}
	return acc
}
