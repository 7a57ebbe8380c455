package arczkp

import (
	"encoding/binary"
	"math/big"

	"github.com/maceip/acdp/pkg/crypto"
)

// Marshal serializes a Proof as a flat byte string: each of the four
// commitment points in order, then each of the four response scalars in
// order, each length-prefixed with a big-endian uint32.
func Marshal(proof *Proof) []byte {
	var out []byte
	for _, a := range proof.A {
		out = appendLenPrefixed(out, crypto.MarshalPoint(a))
	}
	for _, s := range proof.S {
		out = appendLenPrefixed(out, s.Bytes())
	}
	return out
}

// Unmarshal parses the byte string produced by Marshal back into a Proof.
func Unmarshal(data []byte) (*Proof, error) {
	var proof Proof
	rest := data

	for i := 0; i < numTargets; i++ {
		chunk, tail, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		p, err := crypto.UnmarshalPoint(chunk)
		if err != nil {
			return nil, err
		}
		proof.A[i] = p
		rest = tail
	}

	for i := 0; i < numWitnesses; i++ {
		chunk, tail, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		proof.S[i] = new(big.Int).SetBytes(chunk)
		rest = tail
	}

	return &proof, nil
}

func appendLenPrefixed(dst, chunk []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(chunk)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, chunk...)
	return dst
}

func readLenPrefixed(data []byte) (chunk, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, ErrARCVerificationFailed
	}
	n := binary.BigEndian.Uint32(data[:4])
	data = data[4:]
	if uint32(len(data)) < n {
		return nil, nil, ErrARCVerificationFailed
	}
	return data[:n], data[n:], nil
}
