// Package contenthash computes the content digest recorded on-ledger for
// off-ledger certificate documents. The ledger core never hashes anything
// itself; client shells and the gateway use this helper so every party
// derives the same reference for the same document bytes.
package contenthash

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Digest returns the lowercase hex SHA3-256 digest of the document bytes.
func Digest(document []byte) string {
	sum := sha3.Sum256(document)
	return hex.EncodeToString(sum[:])
}

// Matches compares a document against a recorded digest. Comparison is
// case-insensitive because issuers have historically submitted uppercase hex.
func Matches(document []byte, recorded string) bool {
	return strings.EqualFold(Digest(document), recorded)
}

// Valid reports whether s looks like a SHA3-256 hex digest.
func Valid(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
