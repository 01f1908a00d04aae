package models

import (
	"strconv"
	"time"
)

// Status is the consent lifecycle state. Revoked is terminal; expiry is a
// read-time condition derived from ExpiryDate, never written back to the
// record, so there is no second racy mutation path.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
)

// Consent is a time-boxed, field-scoped authorization from a student
// permitting one verifier to see specified fields of one certificate.
//
// Authority to mutate is determined solely by the StudentDID recorded at
// creation, never by the caller's claimed role. DataShared is fixed at
// creation; revoke and re-grant is the only way to change scope.
type Consent struct {
	ID               string     `json:"consentId"`
	StudentDID       string     `json:"studentDid"`
	VerifierDID      string     `json:"verifierDid"`
	CertificateID    string     `json:"certificateId"`
	Purpose          string     `json:"purpose"`
	DataShared       []string   `json:"dataShared"`
	GrantedAt        time.Time  `json:"grantedAt"`
	ExpiryDate       time.Time  `json:"expiryDate"`
	Status           Status     `json:"status"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	RevocationReason string     `json:"revocationReason,omitempty"`
}

// ValidFor reports whether this consent authorizes the given verifier at the
// given instant. This predicate is the single source of truth for expiry.
func (c *Consent) ValidFor(verifierDID string, asOf time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	if c.VerifierDID != verifierDID {
		return false
	}
	return asOf.Before(c.ExpiryDate)
}

// Remaining returns how much of the validity window is left at asOf.
// Negative durations are clamped to zero.
func (c *Consent) Remaining(asOf time.Time) time.Duration {
	if remaining := c.ExpiryDate.Sub(asOf); remaining > 0 {
		return remaining
	}
	return 0
}

// Key returns the world state key for a consent id.
func Key(id string) string {
	return "consent:" + id
}

// StudentIndexKey links a student DID to a consent id.
func StudentIndexKey(studentDID, id string) string {
	return indexKey("idx:consent:student:", studentDID, id)
}

// StudentIndexPrefix returns the List prefix for a student's consents.
func StudentIndexPrefix(studentDID string) string {
	return indexPrefix("idx:consent:student:", studentDID)
}

// VerifierIndexKey links a verifier DID to a consent id.
func VerifierIndexKey(verifierDID, id string) string {
	return indexKey("idx:consent:verifier:", verifierDID, id)
}

// VerifierIndexPrefix returns the List prefix for a verifier's consents.
func VerifierIndexPrefix(verifierDID string) string {
	return indexPrefix("idx:consent:verifier:", verifierDID)
}

// indexKey joins a caller-supplied owner DID with a record id. DIDs contain
// the separator character themselves, so the owner is length-prefixed; a DID
// that prefix-extends another can then never land its entries inside the
// shorter DID's listing range.
func indexKey(namespace, owner, id string) string {
	return indexPrefix(namespace, owner) + id
}

func indexPrefix(namespace, owner string) string {
	return namespace + strconv.Itoa(len(owner)) + ":" + owner + ":"
}
