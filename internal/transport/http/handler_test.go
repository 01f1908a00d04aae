package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"eduledger/internal/audit"
	certledger "eduledger/internal/certificate/ledger"
	consentledger "eduledger/internal/consent/ledger"
	"eduledger/internal/disclosure"
	"eduledger/internal/platform/middleware"
	"eduledger/internal/txn"
	"eduledger/internal/worldstate"
	"eduledger/pkg/contenthash"
)

type HandlerSuite struct {
	suite.Suite
	store   *worldstate.MemoryStore
	handler *Handler
	router  http.Handler
	now     time.Time
}

func (s *HandlerSuite) SetupTest() {
	s.store = worldstate.NewMemory()
	s.now = time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)

	logger := slog.New(slog.DiscardHandler)
	certs := certledger.New()
	consents := consentledger.New(certs)
	processor := txn.NewProcessor(certs, consents, disclosure.New(certs, consents))
	publisher := audit.NewPublisher(audit.NewInMemoryStore())
	runtime := txn.NewRuntime(s.store, processor, publisher, logger)

	s.handler = NewHandler(runtime, logger, WithClock(func() time.Time { return s.now }))
	s.router = NewRouter(s.handler, nil, logger, 30*time.Second)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) submit(function, args string) *httptest.ResponseRecorder {
	return s.post("/v1/transactions", `{"function":"`+function+`","args":`+args+`}`)
}

func (s *HandlerSuite) issueArgs(hash string) string {
	return `{
		"certificateId": "CERT-001",
		"studentDid": "did:edu:student:s1",
		"issuerDid": "did:edu:inst:u1",
		"institutionName": "Analytical University",
		"gpa": "3.9",
		"certificateHash": "` + hash + `"
	}`
}

func (s *HandlerSuite) TestSubmitIssueThenRead() {
	rec := s.submit(txn.OpIssueCertificate, s.issueArgs("abc123"))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		TxID    string          `json:"txId"`
		Payload json.RawMessage `json:"payload"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
	s.NotEmpty(result.TxID)

	rec = s.submit(txn.OpReadCertificate, `{"certificateId":"CERT-001"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"ACTIVE"`)
}

func (s *HandlerSuite) TestErrorMapping() {
	s.submit(txn.OpIssueCertificate, s.issueArgs("abc123"))

	cases := []struct {
		name     string
		function string
		args     string
		status   int
		code     string
	}{
		{"unknown function", "TransferCertificate", `{}`, http.StatusBadRequest, "invalid_input"},
		{"missing certificate", txn.OpReadCertificate, `{"certificateId":"CERT-404"}`, http.StatusNotFound, "not_found"},
		{"duplicate id", txn.OpIssueCertificate, s.issueArgs("abc123"), http.StatusConflict, "already_exists"},
		{"revoke by non-issuer", txn.OpRevokeCertificate, `{"certificateId":"CERT-001","callerDid":"did:edu:inst:other"}`, http.StatusForbidden, "unauthorized"},
		{"disclosure without consent", txn.OpVerifyDisclosure, `{"certificateId":"CERT-001","consentId":"CONS-404","verifierDid":"did:edu:verifier:v1"}`, http.StatusForbidden, "consent_invalid"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.submit(tc.function, tc.args)
			s.Equal(tc.status, rec.Code, rec.Body.String())
			s.Contains(rec.Body.String(), `"error":"`+tc.code+`"`)
		})
	}
}

func (s *HandlerSuite) TestRevokedCertificateIsGone() {
	s.submit(txn.OpIssueCertificate, s.issueArgs("abc123"))
	rec := s.submit(txn.OpRevokeCertificate, `{"certificateId":"CERT-001","callerDid":"did:edu:inst:u1","reason":"rescinded"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.submit(txn.OpQuickVerify, `{"certificateId":"CERT-001","expectedHash":"abc123"}`)
	s.Equal(http.StatusGone, rec.Code)
	s.Contains(rec.Body.String(), `"error":"certificate_revoked"`)
}

func (s *HandlerSuite) TestQuickVerifyEndpointHashesDocuments() {
	document := "diploma for S1"
	s.submit(txn.OpIssueCertificate, s.issueArgs(contenthash.Digest([]byte(document))))

	rec := s.post("/v1/verify/quick", `{"certificateId":"CERT-001","document":"`+document+`"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Contains(rec.Body.String(), `"hashMatches":true`)

	rec = s.post("/v1/verify/quick", `{"certificateId":"CERT-001","document":"forged"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"hashMatches":false`)
}

func (s *HandlerSuite) TestOperationsListing() {
	req := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), txn.OpVerifyDisclosure)
	s.NotContains(rec.Body.String(), "VerifyConsent")
}

func (s *HandlerSuite) TestAuthenticatedCallerMustMatchActor() {
	logger := slog.New(slog.DiscardHandler)
	validator := middleware.NewJWTValidator("test-signing-key")
	router := NewRouter(s.handler, validator, logger, 30*time.Second)

	send := func(token string) *httptest.ResponseRecorder {
		body := `{"function":"` + txn.OpIssueCertificate + `","args":` + s.issueArgs("abc123") + `}`
		req := httptest.NewRequest(http.MethodPost, "/v1/transactions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	s.Run("no token", func() {
		s.Equal(http.StatusUnauthorized, send("").Code)
	})

	s.Run("caller differs from issuer", func() {
		token, err := validator.IssueToken("did:edu:inst:someone-else", "institution", time.Minute)
		s.Require().NoError(err)
		rec := send(token)
		s.Equal(http.StatusForbidden, rec.Code)
		s.Contains(rec.Body.String(), `"error":"unauthorized"`)
	})

	s.Run("caller matches issuer", func() {
		token, err := validator.IssueToken("did:edu:inst:u1", "institution", time.Minute)
		s.Require().NoError(err)
		s.Equal(http.StatusOK, send(token).Code)
	})
}
