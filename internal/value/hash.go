package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/capstan-io/capstan/internal/urn"
)

// DomainRegister is the domain prefix for registration request hashes.
// Version suffix enables future algorithm migration.
const DomainRegister = "capstan/register/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RequestHash computes the content-addressed hash of a resource
// registration request: (type, name, parent, inputs, dependency hints).
//
// Two RegisterResource calls with the same hash are the same logical
// request; the second is treated as an idempotent retry and returns
// the first call's outputs without a second provider call.
func RequestHash(typ, name string, parent urn.URN, inputs Object, dependsOn []urn.URN) (string, error) {
	deps := make([]string, len(dependsOn))
	for i, d := range dependsOn {
		deps[i] = string(d)
	}
	sort.Strings(deps)

	depArr := make(Array, len(deps))
	for i, d := range deps {
		depArr[i] = String(d)
	}
	if inputs == nil {
		inputs = Object{}
	}

	obj := Object{
		"type":       String(typ),
		"name":       String(name),
		"parent":     String(parent),
		"inputs":     inputs,
		"depends_on": depArr,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RequestHash: %w", err)
	}
	return hashWithDomain(DomainRegister, canonical), nil
}
