// Package ids generates the identifiers used across runs and volumes.
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/google/uuid"
)

// NewRunID generates a fresh UUID run identifier. The dispatch queue and
// worker use NewRequestID when an envelope carries no id.
func NewRunID() string {
	return uuid.NewString()
}

// NewOutputFilename generates a fresh host-side filename for a declared
// OUTPUT file parameter, named `<uuid>.<extension>`.
func NewOutputFilename(extension string) string {
	return fmt.Sprintf("%s.%s", uuid.NewString(), extension)
}

// NewRequestID generates the request id a Task Runner uses when one is not
// supplied by the caller.
func NewRequestID() string {
	return uuid.NewString()
}

// UniqueID generates a short random identifier for things that should not
// be deterministic, such as volume namespaces for a fresh run.
func UniqueID() string {
	return gonanoid.Must()
}

// DeterministicVolumeID generates a deterministic volume id for unnamed
// volumes, reproducible for a given namespace and context so that reruns of
// the same step reuse the same volume directory.
//
// Returns an 8-character hexadecimal string.
func DeterministicVolumeID(namespace, context string) string {
	input := fmt.Sprintf("%s:%s", namespace, context)
	hash := sha256.Sum256([]byte(input))

	return hex.EncodeToString(hash[:4])
}
