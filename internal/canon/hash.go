package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainRunInputs prefixes run fingerprints. Bump the version when the set of
// fingerprinted inputs changes so old archives never collide with new runs.
const DomainRunInputs = "gelsim/run-inputs/v1"

// sum is SHA256(domain || 0x00 || data), hex encoded.
func sum(domain string, data []byte) string {
	h := sha256.New()
	h.Write(append([]byte(domain), 0))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the hex SHA-256 fingerprint of v's canonical JSON under domain.
// Equal inputs always produce equal fingerprints, independent of map order.
func Hash(domain string, v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical hash: %w", err)
	}
	return sum(domain, data), nil
}

// MustHash is Hash for inputs known to marshal.
func MustHash(domain string, v any) string {
	h, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
