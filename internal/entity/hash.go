package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/lowpoly/tagstack/internal/jsonkit"
)

// Domain prefixes for content hashes. The version suffix leaves room for an
// algorithm migration without ambiguity against old fingerprints.
const (
	DomainSnapshot = "tagstack/snapshot/v1"
	DomainEntity   = "tagstack/entity/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash fingerprints an entity array via canonical JSON. Published
// delta artifacts carry this hash so a tenant can tell whether a re-export
// actually changed anything.
func SnapshotHash(items []Entity) (string, error) {
	arr := make([]any, len(items))
	for i, item := range items {
		arr[i] = map[string]any(item)
	}
	canonical, err := jsonkit.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("snapshot hash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// Hash fingerprints a single entity via canonical JSON.
func Hash(item Entity) (string, error) {
	canonical, err := jsonkit.MarshalCanonical(map[string]any(item))
	if err != nil {
		return "", fmt.Errorf("entity hash: %w", err)
	}
	return hashWithDomain(DomainEntity, canonical), nil
}
