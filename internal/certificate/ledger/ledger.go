// Package ledger implements the certificate state machine as pure functions
// over world state snapshots. Operations never touch a clock, a random
// source, or I/O: identifiers and timestamps arrive as arguments, writes go
// back to the caller, so replaying a transaction on any node yields
// identical state.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sort"
	"strconv"
	"strings"
	"time"

	"eduledger/internal/certificate/models"
	"eduledger/internal/sentinel"
	"eduledger/internal/worldstate"
	dErrors "eduledger/pkg/domain-errors"
)

// GPA bounds accepted at issuance. Covers both 4.0 and 10-point scales.
const (
	gpaMin = 0.0
	gpaMax = 10.0
)

// IssueRequest carries the caller-supplied arguments for IssueCertificate.
// Now is the transaction timestamp handed down by the runtime.
type IssueRequest struct {
	ID              string
	StudentDID      string
	StudentName     string
	IssuerDID       string
	InstitutionName string
	Degree          string
	Major           string
	GPA             string
	GraduationDate  string
	CertificateHash string
	IPFSReference   string
	Metadata        map[string]string
	Now             time.Time
}

// Ledger holds the certificate state-transition logic. It is stateless;
// everything it knows comes from the snapshot passed to each call.
type Ledger struct{}

// New constructs the certificate ledger.
func New() *Ledger {
	return &Ledger{}
}

// Issue creates a certificate with status Active and returns the record plus
// the writes to commit: the record itself and the two secondary index keys.
func (l *Ledger) Issue(ctx context.Context, snap worldstate.Snapshot, req IssueRequest) (*models.Certificate, []worldstate.Write, error) {
	if err := validateIssue(req); err != nil {
		return nil, nil, err
	}

	key := models.Key(req.ID)
	if _, _, err := snap.Get(ctx, key); err == nil {
		return nil, nil, dErrors.New(dErrors.CodeAlreadyExists, "certificate id already in use")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate")
	}

	cert := &models.Certificate{
		ID:              req.ID,
		IssuerDID:       req.IssuerDID,
		StudentDID:      req.StudentDID,
		StudentName:     req.StudentName,
		InstitutionName: req.InstitutionName,
		Degree:          req.Degree,
		Major:           req.Major,
		GPA:             req.GPA,
		GraduationDate:  req.GraduationDate,
		CertificateHash: req.CertificateHash,
		IPFSReference:   req.IPFSReference,
		Metadata:        req.Metadata,
		IssuanceDate:    req.Now,
		Status:          models.StatusActive,
	}

	value, err := json.Marshal(cert)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to marshal certificate")
	}

	writes := []worldstate.Write{
		{Key: key, Value: value},
		{Key: models.StudentIndexKey(req.StudentDID, req.ID), Value: []byte{0x00}},
		{Key: models.InstitutionIndexKey(req.IssuerDID, req.ID), Value: []byte{0x00}},
	}
	return cert, writes, nil
}

// Read returns the full certificate record.
func (l *Ledger) Read(ctx context.Context, snap worldstate.Snapshot, id string) (*models.Certificate, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "certificate id is required")
	}
	value, _, err := snap.Get(ctx, models.Key(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate")
	}
	return unmarshalCertificate(value)
}

// Revoke flips an Active certificate to Revoked. Only the original issuer
// may revoke, and re-revoking fails with AlreadyRevoked so double-revocation
// attempts stay observable in the audit trail.
func (l *Ledger) Revoke(ctx context.Context, snap worldstate.Snapshot, id, callerDID, reason string, now time.Time) (*models.Certificate, []worldstate.Write, error) {
	cert, err := l.Read(ctx, snap, id)
	if err != nil {
		return nil, nil, err
	}
	if callerDID != cert.IssuerDID {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "only the issuing institution may revoke a certificate")
	}
	if cert.IsRevoked() {
		return nil, nil, dErrors.New(dErrors.CodeAlreadyRevoked, "certificate already revoked")
	}

	cert.Status = models.StatusRevoked
	cert.RevokedAt = &now
	cert.RevocationReason = reason

	value, err := json.Marshal(cert)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to marshal certificate")
	}
	return cert, []worldstate.Write{{Key: models.Key(id), Value: value}}, nil
}

// QueryByStudent returns the student's certificates ordered by issuance date
// ascending. The sequence is backed by a snapshot slice, so it is finite and
// restartable; no certificates yields an empty sequence, not an error.
func (l *Ledger) QueryByStudent(ctx context.Context, snap worldstate.Snapshot, studentDID string) (iter.Seq[*models.Certificate], error) {
	return l.queryIndex(ctx, snap, models.StudentIndexPrefix(studentDID))
}

// QueryByInstitution returns the certificates issued by an institution,
// issuance date ascending.
func (l *Ledger) QueryByInstitution(ctx context.Context, snap worldstate.Snapshot, issuerDID string) (iter.Seq[*models.Certificate], error) {
	return l.queryIndex(ctx, snap, models.InstitutionIndexPrefix(issuerDID))
}

func (l *Ledger) queryIndex(ctx context.Context, snap worldstate.Snapshot, prefix string) (iter.Seq[*models.Certificate], error) {
	kvs, err := snap.List(ctx, prefix)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificate index")
	}

	certs := make([]*models.Certificate, 0, len(kvs))
	for _, kv := range kvs {
		id := strings.TrimPrefix(kv.Key, prefix)
		value, _, err := snap.Get(ctx, models.Key(id))
		if errors.Is(err, sentinel.ErrNotFound) {
			// Dangling index entry; skip rather than fail the whole query.
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read indexed certificate")
		}
		cert, err := unmarshalCertificate(value)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	sort.SliceStable(certs, func(i, j int) bool {
		if certs[i].IssuanceDate.Equal(certs[j].IssuanceDate) {
			return certs[i].ID < certs[j].ID
		}
		return certs[i].IssuanceDate.Before(certs[j].IssuanceDate)
	})

	return func(yield func(*models.Certificate) bool) {
		for _, cert := range certs {
			if !yield(cert) {
				return
			}
		}
	}, nil
}

// History returns every committed state of the certificate in commit order,
// each tagged with its transaction id and commit timestamp.
func (l *Ledger) History(ctx context.Context, snap worldstate.Snapshot, id string) ([]models.HistoryEntry, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "certificate id is required")
	}
	versions, err := snap.History(ctx, models.Key(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate history")
	}

	entries := make([]models.HistoryEntry, 0, len(versions))
	for _, vv := range versions {
		cert, err := unmarshalCertificate(vv.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.HistoryEntry{
			TxID:        vv.TxID,
			CommittedAt: vv.CommittedAt,
			Certificate: *cert,
		})
	}
	return entries, nil
}

func validateIssue(req IssueRequest) error {
	switch {
	case strings.TrimSpace(req.ID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "certificate id is required")
	case strings.TrimSpace(req.StudentDID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "student did is required")
	case strings.TrimSpace(req.IssuerDID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "issuer did is required")
	case strings.TrimSpace(req.CertificateHash) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "certificate hash is required")
	case req.Now.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "transaction timestamp is required")
	}
	gpa, err := strconv.ParseFloat(req.GPA, 64)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "gpa must be numeric")
	}
	if gpa < gpaMin || gpa > gpaMax {
		return dErrors.New(dErrors.CodeInvalidInput, "gpa out of range")
	}
	return nil
}

func unmarshalCertificate(value []byte) (*models.Certificate, error) {
	var cert models.Certificate
	if err := json.Unmarshal(value, &cert); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unmarshal certificate")
	}
	return &cert, nil
}
