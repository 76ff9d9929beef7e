package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainExplore       = "lightdash/explore/v1"
	DomainMetricQuery   = "lightdash/metric-query/v1"
	DomainCompiledQuery = "lightdash/compiled-query/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content hash of v under the given domain.
// Two structurally identical values always produce the same fingerprint,
// regardless of map iteration order.
func Fingerprint(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ExploreFingerprint hashes an explore for cache invalidation.
func ExploreFingerprint(e *Explore) (string, error) {
	return Fingerprint(DomainExplore, e)
}

// QueryFingerprint identifies a raw metric query, e.g. a saved chart version.
func QueryFingerprint(q MetricQuery) (string, error) {
	return Fingerprint(DomainMetricQuery, q)
}

// CompiledQueryFingerprint hashes a compiled metric query.
func CompiledQueryFingerprint(q *CompiledMetricQuery) (string, error) {
	return Fingerprint(DomainCompiledQuery, q)
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFingerprint(domain string, v any) string {
	fp, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return fp
}
