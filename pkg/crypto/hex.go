package crypto

import "encoding/hex"

// EncodeHex is the wire encoding used for public keys, curve points, and
// proof scalars throughout ACDP's JSON payloads.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex inverts EncodeHex.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
