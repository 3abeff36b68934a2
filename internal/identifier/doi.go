// Package identifier mints and checks DOIs and derives the idempotency keys
// sent to the registration authority.
package identifier

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultPrefix   = "10.1234"
	DefaultResolver = "https://doi.org"

	EntityDocumentVersion = "document_version"
)

// Mint builds the deterministic DOI of an entity. Without an entity context it
// falls back to a random suffix.
func Mint(prefix, entity string, containerID uint64, number uint) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if entity == "" || containerID == 0 || number == 0 {
		return MintRandom(prefix)
	}
	return fmt.Sprintf("%s/lsd.%s.%d.%d", prefix, entity, containerID, number)
}

// MintRandom returns {prefix}/lsd.{8 hex chars}.
func MintRandom(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/lsd.%s", prefix, suffix)
}

// Valid checks the 10.xxxx/suffix shape.
func Valid(doi string) bool {
	if !strings.HasPrefix(doi, "10.") {
		return false
	}
	parts := strings.Split(doi, "/")
	return len(parts) == 2 && len(parts[0]) > 3 && parts[1] != ""
}

// ResolverURL returns the public resolution URL of doi.
func ResolverURL(resolver, doi string) string {
	if resolver == "" {
		resolver = DefaultResolver
	}
	return strings.TrimRight(resolver, "/") + "/" + doi
}

// Operation names a logical registration operation.
type Operation string

const (
	OpPublish      Operation = "publish"
	OpWithdraw     Operation = "withdraw"
	OpSyncMetadata Operation = "sync-metadata"
)

// IdempotencyKey is a pure function of (operation, container, version number),
// so retries from any process reuse the same key.
func IdempotencyKey(op Operation, containerID uint64, number uint) string {
	return fmt.Sprintf("%s-%d-%d", op, containerID, number)
}

// StepKey scopes a logical key to one authority call of a multi-step operation.
func StepKey(key, step string) string {
	return key + ":" + step
}

// ContentKey appends a short digest of payload to key. Two pushes of the same
// payload share a key; a changed payload gets a new one.
func ContentKey(key string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return key + "@" + hex.EncodeToString(sum[:6])
}
