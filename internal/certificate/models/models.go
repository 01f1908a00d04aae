package models

import (
	"strconv"
	"time"
)

// Status is the certificate lifecycle state. Revoked is terminal.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
)

// Certificate is an academic credential record on the ledger. Every field
// except the revocation pair is immutable once issued; revocation is a
// status flip, never a delete, so the full history stays auditable.
type Certificate struct {
	ID               string            `json:"certificateId"`
	IssuerDID        string            `json:"issuerDid"`
	StudentDID       string            `json:"studentDid"`
	StudentName      string            `json:"studentName"`
	InstitutionName  string            `json:"institutionName"`
	Degree           string            `json:"degree"`
	Major            string            `json:"major"`
	GPA              string            `json:"gpa"`
	GraduationDate   string            `json:"graduationDate,omitempty"`
	CertificateHash  string            `json:"certificateHash"`
	IPFSReference    string            `json:"ipfsReference,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	IssuanceDate     time.Time         `json:"issuanceDate"`
	Status           Status            `json:"status"`
	RevokedAt        *time.Time        `json:"revokedAt,omitempty"`
	RevocationReason string            `json:"revocationReason,omitempty"`
}

// IsRevoked reports whether the certificate has reached its terminal state.
func (c *Certificate) IsRevoked() bool {
	return c.Status == StatusRevoked
}

// HistoryEntry is one committed state of a certificate, tagged with the
// commit transaction that produced it.
type HistoryEntry struct {
	TxID        string      `json:"txId"`
	CommittedAt time.Time   `json:"committedAt"`
	Certificate Certificate `json:"value"`
}

// Key returns the world state key for a certificate id.
func Key(id string) string {
	return "cert:" + id
}

// StudentIndexKey returns the composite index key linking a student DID to a
// certificate id. Index keys carry no payload; the id is recovered from the
// key suffix.
func StudentIndexKey(studentDID, id string) string {
	return indexKey("idx:cert:student:", studentDID, id)
}

// StudentIndexPrefix returns the List prefix for a student's certificates.
func StudentIndexPrefix(studentDID string) string {
	return indexPrefix("idx:cert:student:", studentDID)
}

// InstitutionIndexKey returns the composite index key linking an issuer DID
// to a certificate id.
func InstitutionIndexKey(issuerDID, id string) string {
	return indexKey("idx:cert:institution:", issuerDID, id)
}

// InstitutionIndexPrefix returns the List prefix for an institution's certificates.
func InstitutionIndexPrefix(issuerDID string) string {
	return indexPrefix("idx:cert:institution:", issuerDID)
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
