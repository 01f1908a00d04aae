package ledger

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	certledger "eduledger/internal/certificate/ledger"
	"eduledger/internal/consent/models"
	"eduledger/internal/worldstate"
	dErrors "eduledger/pkg/domain-errors"
)

type LedgerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *worldstate.MemoryStore
	certs   *certledger.Ledger
	ledger  *Ledger
	now     time.Time
	granted time.Time
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = worldstate.NewMemory()
	s.certs = certledger.New()
	s.ledger = New(s.certs)
	s.now = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	s.granted = s.now.Add(time.Hour)

	// Seed CERT-001 for did:edu:student:s1 with course/grade metadata.
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
		CertificateHash: "abc123",
		Metadata:        map[string]string{"course": "CS", "grade": "A+"},
		Now:             s.now,
	})
	s.Require().NoError(err)
	s.apply(track, writes, "tx-issue")
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) snapshot() *worldstate.TrackingSnapshot {
	snap, err := s.store.Snapshot(s.ctx)
	s.Require().NoError(err)
	return worldstate.Track(snap)
}

func (s *LedgerSuite) apply(track *worldstate.TrackingSnapshot, writes []worldstate.Write, txID string) {
	s.Require().NoError(s.store.Commit(s.ctx, worldstate.Proposal{
		Reads:  track.Reads(),
		Writes: writes,
	}, worldstate.CommitMeta{TxID: txID, Time: s.granted}))
}

func (s *LedgerSuite) grantRequest(id string) GrantRequest {
	return GrantRequest{
		ID:            id,
		StudentDID:    "did:edu:student:s1",
		VerifierDID:   "did:edu:verifier:v1",
		CertificateID: "CERT-001",
		Purpose:       "employment",
		DataShared:    []string{"grade"},
		ValidityDays:  30,
		Now:           s.granted,
	}
}

func (s *LedgerSuite) mustGrant(id string, mutate func(*GrantRequest)) *models.Consent {
	req := s.grantRequest(id)
	if mutate != nil {
		mutate(&req)
	}
	track := s.snapshot()
	consent, writes, err := s.ledger.Grant(s.ctx, track, req)
	s.Require().NoError(err)
	s.apply(track, writes, "tx-grant-"+id)
	return consent
}

func (s *LedgerSuite) TestGrantThenRead() {
	granted := s.mustGrant("CONS-001", nil)
	s.Equal(s.granted.AddDate(0, 0, 30), granted.ExpiryDate)

	got, err := s.ledger.Read(s.ctx, s.snapshot(), "CONS-001")
	s.Require().NoError(err)
	s.Equal(granted, got)
	s.Equal(models.StatusActive, got.Status)
}

func (s *LedgerSuite) TestGrantValidation() {
	cases := []struct {
		name   string
		mutate func(*GrantRequest)
	}{
		{"empty id", func(r *GrantRequest) { r.ID = "" }},
		{"zero validity days", func(r *GrantRequest) { r.ValidityDays = 0 }},
		{"negative validity days", func(r *GrantRequest) { r.ValidityDays = -3 }},
		{"empty data shared", func(r *GrantRequest) { r.DataShared = nil }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.grantRequest("CONS-X")
			tc.mutate(&req)
			_, _, err := s.ledger.Grant(s.ctx, s.snapshot(), req)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func (s *LedgerSuite) TestGrantAgainstMissingCertificate() {
	req := s.grantRequest("CONS-001")
	req.CertificateID = "CERT-404"
	_, _, err := s.ledger.Grant(s.ctx, s.snapshot(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LedgerSuite) TestGrantForAnotherStudentsCertificate() {
	req := s.grantRequest("CONS-001")
	req.StudentDID = "did:edu:student:impostor"
	_, _, err := s.ledger.Grant(s.ctx, s.snapshot(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *LedgerSuite) TestGrantReusedID() {
	s.mustGrant("CONS-001", nil)
	_, _, err := s.ledger.Grant(s.ctx, s.snapshot(), s.grantRequest("CONS-001"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyExists))
}

func (s *LedgerSuite) TestGrantFiltersUnknownFields() {
	consent := s.mustGrant("CONS-001", func(r *GrantRequest) {
		r.DataShared = []string{"gpa", "nonexistent_field"}
	})
	s.Equal([]string{"gpa"}, consent.DataShared)
}

func (s *LedgerSuite) TestGrantFailsWhenAllFieldsFilterAway() {
	req := s.grantRequest("CONS-001")
	req.DataShared = []string{"nonexistent_field", "another_ghost"}
	_, _, err := s.ledger.Grant(s.ctx, s.snapshot(), req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *LedgerSuite) TestRevokeLifecycle() {
	s.mustGrant("CONS-001", nil)
	revokedAt := s.granted.Add(24 * time.Hour)

	track := s.snapshot()
	consent, writes, err := s.ledger.Revoke(s.ctx, track, "CONS-001", "did:edu:student:s1", "changed my mind", revokedAt)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, consent.Status)
	s.Require().NotNil(consent.RevokedAt)
	s.Equal(revokedAt, *consent.RevokedAt)
	s.apply(track, writes, "tx-revoke")

	_, _, err = s.ledger.Revoke(s.ctx, s.snapshot(), "CONS-001", "did:edu:student:s1", "", revokedAt.Add(time.Hour))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRevoked))
}

func (s *LedgerSuite) TestRevokeByNonOwner() {
	s.mustGrant("CONS-001", nil)
	_, _, err := s.ledger.Revoke(s.ctx, s.snapshot(), "CONS-001", "did:edu:verifier:v1", "", s.granted)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *LedgerSuite) TestIsValidExpiryBoundaries() {
	s.mustGrant("CONS-001", nil)
	expiry := s.granted.AddDate(0, 0, 30)

	cases := []struct {
		name  string
		asOf  time.Time
		valid bool
	}{
		{"one second before expiry", expiry.Add(-time.Second), true},
		{"exactly at expiry", expiry, false},
		{"one second after expiry", expiry.Add(time.Second), false},
		{"just after grant", s.granted.Add(time.Minute), true},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			valid, err := s.ledger.IsValid(s.ctx, s.snapshot(), "CONS-001", "did:edu:verifier:v1", tc.asOf)
			s.Require().NoError(err)
			s.Equal(tc.valid, valid)
		})
	}
}

func (s *LedgerSuite) TestIsValidWrongVerifier() {
	s.mustGrant("CONS-001", nil)
	valid, err := s.ledger.IsValid(s.ctx, s.snapshot(), "CONS-001", "did:edu:verifier:someone-else", s.granted.Add(time.Minute))
	s.Require().NoError(err)
	s.False(valid)
}

func (s *LedgerSuite) TestIsValidMissingConsentIsFalseNotError() {
	valid, err := s.ledger.IsValid(s.ctx, s.snapshot(), "CONS-404", "did:edu:verifier:v1", s.granted)
	s.Require().NoError(err)
	s.False(valid)
}

func (s *LedgerSuite) TestIsValidRevokedConsent() {
	s.mustGrant("CONS-001", nil)
	track := s.snapshot()
	_, writes, err := s.ledger.Revoke(s.ctx, track, "CONS-001", "did:edu:student:s1", "", s.granted.Add(time.Hour))
	s.Require().NoError(err)
	s.apply(track, writes, "tx-revoke")

	valid, err := s.ledger.IsValid(s.ctx, s.snapshot(), "CONS-001", "did:edu:verifier:v1", s.granted.Add(2*time.Hour))
	s.Require().NoError(err)
	s.False(valid)
}

func (s *LedgerSuite) TestQueryByVerifierPrefixExtendingDIDsStaySeparate() {
	s.mustGrant("CONS-9", func(r *GrantRequest) {
		r.VerifierDID = "did:edu:verifier:v1:agency"
	})
	s.mustGrant("agency:CONS-9", func(r *GrantRequest) {
		r.VerifierDID = "did:edu:verifier:unrelated"
	})

	// The shorter DID must not see consents granted to the longer one, nor
	// the consent whose id happens to complete its key.
	seq, err := s.ledger.QueryByVerifier(s.ctx, s.snapshot(), "did:edu:verifier:v1")
	s.Require().NoError(err)
	s.Empty(slices.Collect(seq))

	seq, err = s.ledger.QueryByVerifier(s.ctx, s.snapshot(), "did:edu:verifier:v1:agency")
	s.Require().NoError(err)
	consents := slices.Collect(seq)
	s.Require().Len(consents, 1)
	s.Equal("CONS-9", consents[0].ID)
	s.Equal("did:edu:verifier:v1:agency", consents[0].VerifierDID)
}

func (s *LedgerSuite) TestQueriesOrderedByGrantTime() {
	s.mustGrant("CONS-B", func(r *GrantRequest) { r.Now = s.granted.Add(2 * time.Hour) })
	s.mustGrant("CONS-A", func(r *GrantRequest) { r.Now = s.granted })

	byStudent, err := s.ledger.QueryByStudent(s.ctx, s.snapshot(), "did:edu:student:s1")
	s.Require().NoError(err)
	consents := slices.Collect(byStudent)
	s.Require().Len(consents, 2)
	s.Equal("CONS-A", consents[0].ID)
	s.Equal("CONS-B", consents[1].ID)

	byVerifier, err := s.ledger.QueryByVerifier(s.ctx, s.snapshot(), "did:edu:verifier:v1")
	s.Require().NoError(err)
	s.Len(slices.Collect(byVerifier), 2)

	empty, err := s.ledger.QueryByVerifier(s.ctx, s.snapshot(), "did:edu:verifier:nobody")
	s.Require().NoError(err)
	s.Empty(slices.Collect(empty))
}
