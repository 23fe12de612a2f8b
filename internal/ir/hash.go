package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
const (
	DomainExpression = "basestar/expr/v" + IRVersion
	DomainGroup      = "basestar/group/v" + IRVersion
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as lower-case hex.
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content hash of v's canonical encoding under domain.
func Hash(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only when v is known to be finite.
func MustHash(domain string, v IRValue) string {
	h, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}

// GroupKey hashes a tuple of group-by values. Values that are Identical
// produce the same key.
func GroupKey(values []IRValue) (string, error) {
	return Hash(DomainGroup, IRArray(values))
}
