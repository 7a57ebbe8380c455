package crypto

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// Point is a P-256 affine point. A nil X/Y pair represents the point at
// infinity.
type Point struct {
	X, Y *big.Int
}

// Curve returns the shared P-256 curve parameters used by ARCCore and
// ARCZKP.
func Curve() elliptic.Curve {
	return elliptic.P256()
}

// Order returns the P-256 group order, the modulus for every scalar in the
// ARC scheme (m1, z, r, nonce, challenges, responses).
func Order() *big.Int {
	return Curve().Params().N
}

// BasePoint returns the standard P-256 generator G.
func BasePoint() Point {
	params := Curve().Params()
	return Point{X: params.Gx, Y: params.Gy}
}

// RandomScalar draws a uniform value in [1, Order).
func RandomScalar() (*big.Int, error) {
	n := Order()
	for {
		k, err := rand.Int(rand.Reader, n)
		if err != nil {
			return nil, err
		}
		if k.Sign() != 0 {
			return k, nil
		}
	}
}

// ScalarMult computes k*P.
func ScalarMult(p Point, k *big.Int) Point {
	x, y := Curve().ScalarMult(p.X, p.Y, k.Bytes())
	return Point{X: x, Y: y}
}

// ScalarBaseMult computes k*G.
func ScalarBaseMult(k *big.Int) Point {
	x, y := Curve().ScalarBaseMult(k.Bytes())
	return Point{X: x, Y: y}
}

// Add computes p + q.
func Add(p, q Point) Point {
	x, y := Curve().Add(p.X, p.Y, q.X, q.Y)
	return Point{X: x, Y: y}
}

// Negate returns -p.
func Negate(p Point) Point {
	mod := Curve().Params().P
	return Point{X: new(big.Int).Set(p.X), Y: new(big.Int).Sub(mod, p.Y)}
}

// Sub computes p - q.
func Sub(p, q Point) Point {
	return Add(p, Negate(q))
}

// IsOnCurve reports whether p lies on P-256.
func IsOnCurve(p Point) bool {
	if p.X == nil || p.Y == nil {
		return false
	}
	return Curve().IsOnCurve(p.X, p.Y)
}

// IsIdentity reports whether p is the group identity (point at infinity).
// Add/Sub/ScalarMult from crypto/elliptic represent infinity as (0, 0)
// rather than nil coordinates.
func IsIdentity(p Point) bool {
	if p.X == nil || p.Y == nil {
		return true
	}
	return p.X.Sign() == 0 && p.Y.Sign() == 0
}

// MarshalPoint encodes p in uncompressed SEC1 form.
func MarshalPoint(p Point) []byte {
	return elliptic.Marshal(Curve(), p.X, p.Y)
}

// UnmarshalPoint decodes an uncompressed SEC1 point, validating it lies on
// the curve.
func UnmarshalPoint(data []byte) (Point, error) {
	x, y := elliptic.Unmarshal(Curve(), data)
	if x == nil {
		return Point{}, ErrInvalidPoint
	}
	return Point{X: x, Y: y}, nil
}

// ScalarFromBytes reduces an arbitrary-length big-endian byte string mod the
// group order, the same wide-reduction step the Fiat-Shamir challenge
// derivation uses.
func ScalarFromBytes(b []byte) *big.Int {
	k := new(big.Int).SetBytes(b)
	return k.Mod(k, Order())
}

// HashToCurve derives a generator from a fixed domain-separation string via
// try-and-increment: hash a counter into a candidate x-coordinate, accept
// the first x for which x^3 - 3x + b is a quadratic residue mod p.
func HashToCurve(domain string) Point {
	params := Curve().Params()
	p := params.P
	b := params.B

	for counter := uint32(0); ; counter++ {
		h := sha256.New()
		h.Write([]byte(domain))
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		h.Write(ctr[:])
		sum := h.Sum(nil)

		x := new(big.Int).SetBytes(sum)
		x.Mod(x, p)

		// rhs = x^3 - 3x + b (mod p)
		rhs := new(big.Int).Exp(x, big.NewInt(3), p)
		threeX := new(big.Int).Lsh(x, 1)
		threeX.Add(threeX, x)
		rhs.Sub(rhs, threeX)
		rhs.Add(rhs, b)
		rhs.Mod(rhs, p)

		y := new(big.Int).ModSqrt(rhs, p)
		if y == nil {
			continue
		}
		candidate := Point{X: x, Y: y}
		if IsOnCurve(candidate) {
			return candidate
		}
	}
}
