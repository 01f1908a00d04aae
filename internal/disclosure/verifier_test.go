package disclosure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	certledger "eduledger/internal/certificate/ledger"
	consentledger "eduledger/internal/consent/ledger"
	"eduledger/internal/worldstate"
	"eduledger/pkg/contenthash"
	dErrors "eduledger/pkg/domain-errors"
)

type VerifierSuite struct {
	suite.Suite
	ctx      context.Context
	store    *worldstate.MemoryStore
	certs    *certledger.Ledger
	consents *consentledger.Ledger
	verifier *Verifier
	issued   time.Time
	granted  time.Time
	docHash  string
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = worldstate.NewMemory()
	s.certs = certledger.New()
	s.consents = consentledger.New(s.certs)
	s.verifier = New(s.certs, s.consents)
	s.issued = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	s.granted = s.issued.Add(time.Hour)
	s.docHash = contenthash.Digest([]byte("diploma for S1"))

	track := s.snapshot()
	_, writes, err := s.certs.Issue(s.ctx, track, certledger.IssueRequest{
		ID:              "CERT-001",
		StudentDID:      "did:edu:student:s1",
		StudentName:     "Ada Lovelace",
		IssuerDID:       "did:edu:inst:u1",
		InstitutionName: "Analytical University",
		Degree:          "BSc",
		Major:           "Mathematics",
		GPA:             "3.9",
		CertificateHash: s.docHash,
		Metadata:        map[string]string{"course": "CS", "grade": "A+"},
		Now:             s.issued,
	})
	s.Require().NoError(err)
	s.apply(track, writes, "tx-issue")

	track = s.snapshot()
	_, writes, err = s.consents.Grant(s.ctx, track, consentledger.GrantRequest{
		ID:            "CONS-001",
		StudentDID:    "did:edu:student:s1",
		VerifierDID:   "did:edu:verifier:v1",
		CertificateID: "CERT-001",
		Purpose:       "employment",
		DataShared:    []string{"grade"},
		ValidityDays:  30,
		Now:           s.granted,
	})
	s.Require().NoError(err)
	s.apply(track, writes, "tx-grant")
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) snapshot() *worldstate.TrackingSnapshot {
	snap, err := s.store.Snapshot(s.ctx)
	s.Require().NoError(err)
	return worldstate.Track(snap)
}

func (s *VerifierSuite) apply(track *worldstate.TrackingSnapshot, writes []worldstate.Write, txID string) {
	s.Require().NoError(s.store.Commit(s.ctx, worldstate.Proposal{
		Reads:  track.Reads(),
		Writes: writes,
	}, worldstate.CommitMeta{TxID: txID, Time: s.granted}))
}

func (s *VerifierSuite) revokeCertificate() {
	track := s.snapshot()
	_, writes, err := s.certs.Revoke(s.ctx, track, "CERT-001", "did:edu:inst:u1", "rescinded", s.granted.Add(time.Hour))
	s.Require().NoError(err)
	s.apply(track, writes, "tx-revoke-cert")
}

func (s *VerifierSuite) revokeConsent() {
	track := s.snapshot()
	_, writes, err := s.consents.Revoke(s.ctx, track, "CONS-001", "did:edu:student:s1", "", s.granted.Add(time.Hour))
	s.Require().NoError(err)
	s.apply(track, writes, "tx-revoke-consent")
}

func (s *VerifierSuite) TestDisclosureProjectsOnlyGrantedFields() {
	asOf := s.granted.Add(24 * time.Hour)
	disclosure, err := s.verifier.Verify(s.ctx, s.snapshot(), "CERT-001", "CONS-001", "did:edu:verifier:v1", asOf)
	s.Require().NoError(err)

	s.Equal("A+", disclosure.Fields["grade"])
	s.NotContains(disclosure.Fields, "course")
	s.NotContains(disclosure.Fields, "gpa")
	s.NotContains(disclosure.Fields, "studentName")

	// Provenance is always visible.
	s.Equal("CERT-001", disclosure.Fields["certificateId"])
	s.Equal("Analytical University", disclosure.Fields["institutionName"])
	s.Equal("did:edu:inst:u1", disclosure.Fields["issuerDid"])

	s.Equal(s.granted.AddDate(0, 0, 30), disclosure.ConsentExpiresAt)
	s.Equal(int64(29*24*3600), disclosure.RemainingSeconds)
}

func (s *VerifierSuite) TestConsentFailuresAllSurfaceAsConsentInvalid() {
	asOf := s.granted.Add(24 * time.Hour)

	s.Run("missing consent", func() {
		_, err := s.verifier.Verify(s.ctx, s.snapshot(), "CERT-001", "CONS-404", "did:edu:verifier:v1", asOf)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	})

	s.Run("wrong verifier", func() {
		_, err := s.verifier.Verify(s.ctx, s.snapshot(), "CERT-001", "CONS-001", "did:edu:verifier:impostor", asOf)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	})

	s.Run("expired consent", func() {
		_, err := s.verifier.Verify(s.ctx, s.snapshot(), "CERT-001", "CONS-001", "did:edu:verifier:v1", s.granted.AddDate(0, 0, 31))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	})

	s.Run("revoked consent", func() {
		s.revokeConsent()
		_, err := s.verifier.Verify(s.ctx, s.snapshot(), "CERT-001", "CONS-001", "did:edu:verifier:v1", asOf)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConsentInvalid))
	})
}

func (s *VerifierSuite) TestCertificateMismatch() {
	// Second certificate for the same student, consent still names CERT-001.
	track := s.snapshot()
	_, writes, err := s.certs.Issue(s.ctx, track, certledger.IssueRequest{
		ID:              "CERT-002",
		StudentDID:      "did:edu:student:s1",
		IssuerDID:       "did:edu:inst:u1",
		InstitutionName: "Analytical University",
		GPA:             "3.5",
		CertificateHash: "feed01",
		Now:             s.issued.Add(time.Minute),
	})
	s.Require().NoError(err)
	s.apply(track, writes, "tx-issue-2")

	_, err = s.verifier.Verify(s.ctx, s.snapshot(), "CERT-002", "CONS-001", "did:edu:verifier:v1", s.granted.Add(time.Hour))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeCertificateMismatch))
}

func (s *VerifierSuite) TestRevokedCertificateBlocksDisclosureDespiteValidConsent() {
	s.revokeCertificate()
	asOf := s.granted.Add(24 * time.Hour)

	// The consent alone still checks out.
	valid, err := s.consents.IsValid(s.ctx, s.snapshot(), "CONS-001", "did:edu:verifier:v1", asOf)
	s.Require().NoError(err)
	s.True(valid)

	_, err = s.verifier.Verify(s.ctx, s.snapshot(), "CERT-001", "CONS-001", "did:edu:verifier:v1", asOf)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeCertificateRevoked))
}

func (s *VerifierSuite) TestQuickVerify() {
	s.Run("matching hash", func() {
		result, err := s.verifier.QuickVerify(s.ctx, s.snapshot(), "CERT-001", s.docHash)
		s.Require().NoError(err)
		s.True(result.HashMatches)
	})

	s.Run("mismatched hash", func() {
		result, err := s.verifier.QuickVerify(s.ctx, s.snapshot(), "CERT-001", contenthash.Digest([]byte("forged")))
		s.Require().NoError(err)
		s.False(result.HashMatches)
	})

	s.Run("missing certificate", func() {
		_, err := s.verifier.QuickVerify(s.ctx, s.snapshot(), "CERT-404", s.docHash)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty hash", func() {
		_, err := s.verifier.QuickVerify(s.ctx, s.snapshot(), "CERT-001", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("revoked certificate", func() {
		s.revokeCertificate()
		_, err := s.verifier.QuickVerify(s.ctx, s.snapshot(), "CERT-001", s.docHash)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeCertificateRevoked))
	})
}
