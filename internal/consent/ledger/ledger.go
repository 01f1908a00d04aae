// Package ledger implements the consent state machine as pure functions
// over world state snapshots. It reads the certificate ledger to validate
// grants but never mutates certificate state.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sort"
	"strings"
	"time"

	certmodels "eduledger/internal/certificate/models"
	"eduledger/internal/consent/models"
	"eduledger/internal/sentinel"
	"eduledger/internal/worldstate"
	dErrors "eduledger/pkg/domain-errors"
)

// CertificateReader resolves certificates at grant time. Satisfied by the
// certificate ledger; injected so tests can swap it out.
type CertificateReader interface {
	Read(ctx context.Context, snap worldstate.Snapshot, id string) (*certmodels.Certificate, error)
}

// GrantRequest carries the caller-supplied arguments for GrantConsent.
// Now is the transaction timestamp handed down by the runtime.
type GrantRequest struct {
	ID            string
	StudentDID    string
	VerifierDID   string
	CertificateID string
	Purpose       string
	DataShared    []string
	ValidityDays  int
	Now           time.Time
}

// Ledger holds the consent state-transition logic.
type Ledger struct {
	certificates CertificateReader
}

// New constructs the consent ledger over the given certificate reader.
func New(certificates CertificateReader) *Ledger {
	return &Ledger{certificates: certificates}
}

// Grant creates a consent record. The dataShared set is filtered against the
// referenced certificate's disclosable fields at grant time: names that do
// not exist on the certificate are silently dropped, and a grant whose
// entire set filters away fails InvalidInput. A verifier can never be
// granted a field that does not exist.
func (l *Ledger) Grant(ctx context.Context, snap worldstate.Snapshot, req GrantRequest) (*models.Consent, []worldstate.Write, error) {
	if err := validateGrant(req); err != nil {
		return nil, nil, err
	}

	cert, err := l.certificates.Read(ctx, snap, req.CertificateID)
	if err != nil {
		return nil, nil, err
	}
	if cert.StudentDID != req.StudentDID {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "a student may only grant access to their own certificates")
	}

	key := models.Key(req.ID)
	if _, _, err := snap.Get(ctx, key); err == nil {
		return nil, nil, dErrors.New(dErrors.CodeAlreadyExists, "consent id already in use")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}

	shared := cert.FilterFields(req.DataShared)
	if len(shared) == 0 {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "no requested field exists on the certificate")
	}

	consent := &models.Consent{
		ID:            req.ID,
		StudentDID:    req.StudentDID,
		VerifierDID:   req.VerifierDID,
		CertificateID: req.CertificateID,
		Purpose:       req.Purpose,
		DataShared:    shared,
		GrantedAt:     req.Now,
		ExpiryDate:    req.Now.AddDate(0, 0, req.ValidityDays),
		Status:        models.StatusActive,
	}

	value, err := json.Marshal(consent)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to marshal consent")
	}

	writes := []worldstate.Write{
		{Key: key, Value: value},
		{Key: models.StudentIndexKey(req.StudentDID, req.ID), Value: []byte{0x00}},
		{Key: models.VerifierIndexKey(req.VerifierDID, req.ID), Value: []byte{0x00}},
	}
	return consent, writes, nil
}

// Read returns the full consent record.
func (l *Ledger) Read(ctx context.Context, snap worldstate.Snapshot, id string) (*models.Consent, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "consent id is required")
	}
	value, _, err := snap.Get(ctx, models.Key(id))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read consent")
	}
	return unmarshalConsent(value)
}

// Revoke flips an Active consent to Revoked. Only the granting student may
// revoke; re-revoking fails AlreadyRevoked, mirroring certificate revocation.
func (l *Ledger) Revoke(ctx context.Context, snap worldstate.Snapshot, id, callerDID, reason string, now time.Time) (*models.Consent, []worldstate.Write, error) {
	consent, err := l.Read(ctx, snap, id)
	if err != nil {
		return nil, nil, err
	}
	if callerDID != consent.StudentDID {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "only the granting student may revoke a consent")
	}
	if consent.Status == models.StatusRevoked {
		return nil, nil, dErrors.New(dErrors.CodeAlreadyRevoked, "consent already revoked")
	}

	consent.Status = models.StatusRevoked
	consent.RevokedAt = &now
	consent.RevocationReason = reason

	value, err := json.Marshal(consent)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to marshal consent")
	}
	return consent, []worldstate.Write{{Key: models.Key(id), Value: value}}, nil
}

// IsValid is the pure validity predicate: true iff the consent exists, is
// Active, names the calling verifier, and asOf is before expiry. A missing
// consent is simply invalid, not an error, so the predicate leaks nothing
// about which condition failed.
func (l *Ledger) IsValid(ctx context.Context, snap worldstate.Snapshot, id, verifierDID string, asOf time.Time) (bool, error) {
	consent, err := l.Read(ctx, snap, id)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return consent.ValidFor(verifierDID, asOf), nil
}

// QueryByStudent returns the student's consents ordered by grant time
// ascending. Empty sequence, not an error, when none exist.
func (l *Ledger) QueryByStudent(ctx context.Context, snap worldstate.Snapshot, studentDID string) (iter.Seq[*models.Consent], error) {
	return l.queryIndex(ctx, snap, models.StudentIndexPrefix(studentDID))
}

// QueryByVerifier returns the consents naming a verifier, grant time ascending.
func (l *Ledger) QueryByVerifier(ctx context.Context, snap worldstate.Snapshot, verifierDID string) (iter.Seq[*models.Consent], error) {
	return l.queryIndex(ctx, snap, models.VerifierIndexPrefix(verifierDID))
}

func (l *Ledger) queryIndex(ctx context.Context, snap worldstate.Snapshot, prefix string) (iter.Seq[*models.Consent], error) {
	kvs, err := snap.List(ctx, prefix)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consent index")
	}

	consents := make([]*models.Consent, 0, len(kvs))
	for _, kv := range kvs {
		id := strings.TrimPrefix(kv.Key, prefix)
		value, _, err := snap.Get(ctx, models.Key(id))
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read indexed consent")
		}
		consent, err := unmarshalConsent(value)
		if err != nil {
			return nil, err
		}
		consents = append(consents, consent)
	}

	sort.SliceStable(consents, func(i, j int) bool {
		if consents[i].GrantedAt.Equal(consents[j].GrantedAt) {
			return consents[i].ID < consents[j].ID
		}
		return consents[i].GrantedAt.Before(consents[j].GrantedAt)
	})

	return func(yield func(*models.Consent) bool) {
		for _, consent := range consents {
			if !yield(consent) {
				return
			}
		}
	}, nil
}

func validateGrant(req GrantRequest) error {
	switch {
	case strings.TrimSpace(req.ID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "consent id is required")
	case strings.TrimSpace(req.StudentDID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "student did is required")
	case strings.TrimSpace(req.VerifierDID) == "":
		return dErrors.New(dErrors.CodeInvalidInput, "verifier did is required")
	case req.ValidityDays <= 0:
		return dErrors.New(dErrors.CodeInvalidInput, "validity days must be positive")
	case len(req.DataShared) == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "data shared must not be empty")
	case req.Now.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "transaction timestamp is required")
	}
	return nil
}

func unmarshalConsent(value []byte) (*models.Consent, error) {
	var consent models.Consent
	if err := json.Unmarshal(value, &consent); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unmarshal consent")
	}
	return &consent, nil
}
