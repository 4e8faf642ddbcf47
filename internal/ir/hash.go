package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes keep hashes of different things from colliding. The
// version suffix allows an algorithm change later.
const (
	DomainIR       = "rift/ir/v1"
	DomainArtifact = "rift/artifact/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The separator keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint is the content identity of a tree. Two trees that differ only
// in source positions share a fingerprint.
func Fingerprint(n *Node) (string, error) {
	data, err := MarshalNode(n)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainIR, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the tree is known to be valid.
func MustFingerprint(n *Node) string {
	fp, err := Fingerprint(n)
	if err != nil {
		panic(err)
	}
	return fp
}

// ArtifactKey identifies the output of one emitter version for one program.
func ArtifactKey(fingerprint, target, emitterVersion string) string {
	obj := IRObject{
		"program": IRString(fingerprint),
		"target":  IRString(target),
		"emitter": IRString(emitterVersion),
	}
	data, _ := MarshalCanonical(obj) // cannot fail: plain strings
	return hashWithDomain(DomainArtifact, data)
}

// ContentHash hashes arbitrary text under a domain.
func ContentHash(domain string, data []byte) string {
	return hashWithDomain(domain, data)
}
