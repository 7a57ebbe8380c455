package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

const (
	protocolName    = "ACDP"
	protocolVersion = "0.3"
)

// Challenge derives a Fiat-Shamir scalar from a domain tag and an ordered
// transcript of byte strings (commitments, public points, context bytes).
// Every element is length-prefixed so the hash input is unambiguous
// regardless of individual element length.
func Challenge(domainTag string, transcript ...[]byte) *big.Int {
	h := sha256.New()
	h.Write([]byte(protocolName))
	h.Write([]byte(protocolVersion))
	h.Write([]byte(domainTag))
	for _, elem := range transcript {
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(elem)))
		h.Write(lenBuf[:])
		h.Write(elem)
	}
	return ScalarFromBytes(h.Sum(nil))
}
