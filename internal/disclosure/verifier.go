// Package disclosure implements the two-phase verification protocol: a
// consent validity check composed with a certificate lookup, producing a
// field-filtered view. The verifier is a stateless coordinator; it reads
// both ledgers and writes nothing.
package disclosure

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	certmodels "eduledger/internal/certificate/models"
	consentmodels "eduledger/internal/consent/models"
	"eduledger/internal/worldstate"
	"eduledger/pkg/contenthash"
	dErrors "eduledger/pkg/domain-errors"
)

// CertificateReader is the slice of the certificate ledger the verifier needs.
type CertificateReader interface {
	Read(ctx context.Context, snap worldstate.Snapshot, id string) (*certmodels.Certificate, error)
}

// ConsentReader is the slice of the consent ledger the verifier needs.
type ConsentReader interface {
	Read(ctx context.Context, snap worldstate.Snapshot, id string) (*consentmodels.Consent, error)
	IsValid(ctx context.Context, snap worldstate.Snapshot, id, verifierDID string, asOf time.Time) (bool, error)
}

// Disclosure is the field-filtered certificate view returned to a verifier,
// together with what is left of the consent's validity window.
type Disclosure struct {
	CertificateID    string         `json:"certificateId"`
	ConsentID        string         `json:"consentId"`
	Fields           map[string]any `json:"fields"`
	ConsentExpiresAt time.Time      `json:"consentExpiresAt"`
	RemainingSeconds int64          `json:"remainingValiditySeconds"`
}

// QuickVerifyResult is the public tamper-evidence check: status plus hash
// match, no granular fields, no consent required.
type QuickVerifyResult struct {
	CertificateID string            `json:"certificateId"`
	Status        certmodels.Status `json:"status"`
	HashMatches   bool              `json:"hashMatches"`
}

// Verifier composes consent checks with certificate lookups.
type Verifier struct {
	certificates CertificateReader
	consents     ConsentReader
	tracer       trace.Tracer
}

// New constructs a disclosure verifier over the two ledgers.
func New(certificates CertificateReader, consents ConsentReader) *Verifier {
	return &Verifier{
		certificates: certificates,
		consents:     consents,
		tracer:       otel.Tracer("eduledger/disclosure"),
	}
}

// Verify runs the composite disclosure protocol.
//
// A failed consent check surfaces only ConsentInvalid, never which
// sub-condition failed (missing, revoked, expired, or wrong verifier), so
// the endpoint cannot be used as an oracle for consent internals. The
// revocation check on the certificate is unconditional: a valid, unexpired
// consent never overrides certificate revocation.
func (v *Verifier) Verify(ctx context.Context, snap worldstate.Snapshot, certificateID, consentID, verifierDID string, asOf time.Time) (*Disclosure, error) {
	ctx, span := v.tracer.Start(ctx, "disclosure.Verify", trace.WithAttributes(
		attribute.String("certificate.id", certificateID),
		attribute.String("consent.id", consentID),
	))
	defer span.End()

	valid, err := v.consents.IsValid(ctx, snap, consentID, verifierDID, asOf)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, dErrors.New(dErrors.CodeConsentInvalid, "consent invalid")
	}

	consent, err := v.consents.Read(ctx, snap, consentID)
	if err != nil {
		return nil, err
	}
	if consent.CertificateID != certificateID {
		return nil, dErrors.New(dErrors.CodeCertificateMismatch, "consent does not cover this certificate")
	}

	cert, err := v.certificates.Read(ctx, snap, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.IsRevoked() {
		return nil, dErrors.New(dErrors.CodeCertificateRevoked, "certificate has been revoked")
	}

	return &Disclosure{
		CertificateID:    cert.ID,
		ConsentID:        consent.ID,
		Fields:           cert.Project(consent.DataShared),
		ConsentExpiresAt: consent.ExpiryDate,
		RemainingSeconds: int64(consent.Remaining(asOf) / time.Second),
	}, nil
}

// QuickVerify checks tamper evidence without consent: the certificate must
// exist and not be revoked, and the presented hash must equal the recorded
// one. It reveals no granular fields.
func (v *Verifier) QuickVerify(ctx context.Context, snap worldstate.Snapshot, certificateID, expectedHash string) (*QuickVerifyResult, error) {
	ctx, span := v.tracer.Start(ctx, "disclosure.QuickVerify", trace.WithAttributes(
		attribute.String("certificate.id", certificateID),
	))
	defer span.End()

	if expectedHash == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "expected hash is required")
	}

	cert, err := v.certificates.Read(ctx, snap, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.IsRevoked() {
		return nil, dErrors.New(dErrors.CodeCertificateRevoked, "certificate has been revoked")
	}

	return &QuickVerifyResult{
		CertificateID: cert.ID,
		Status:        cert.Status,
		HashMatches:   hashEqual(cert.CertificateHash, expectedHash),
	}, nil
}

// hashEqual compares digests case-insensitively when both sides look like
// hex digests, exactly otherwise (legacy hashes predate the hex convention).
func hashEqual(recorded, presented string) bool {
	if contenthash.Valid(recorded) && contenthash.Valid(presented) {
		return strings.EqualFold(recorded, presented)
	}
	return recorded == presented
}
