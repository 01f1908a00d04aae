// Package txn defines the closed set of ledger operations, decodes them from
// wire requests, and executes them against world state snapshots through a
// commit runtime with bounded optimistic retry. Dispatch is an explicit type
// switch over the operation set; an unknown operation name fails at decode
// time, before any state is touched.
package txn

// Operation is one member of the closed operation set. The unexported
// method keeps the set sealed to this package.
type Operation interface {
	// Name returns the stable wire name of the operation.
	Name() string
	isOperation()
}

// Stable wire names. VerifyConsent is accepted as a legacy alias for
// IsConsentValid at decode time but is never produced.
const (
	OpIssueCertificate               = "IssueCertificate"
	OpReadCertificate                = "ReadCertificate"
	OpRevokeCertificate              = "RevokeCertificate"
	OpQueryCertificatesByStudent     = "QueryCertificatesByStudent"
	OpQueryCertificatesByInstitution = "QueryCertificatesByInstitution"
	OpGetCertificateHistory          = "GetCertificateHistory"
	OpGrantConsent                   = "GrantConsent"
	OpRevokeConsent                  = "RevokeConsent"
	OpReadConsent                    = "ReadConsent"
	OpQueryConsentsByStudent         = "QueryConsentsByStudent"
	OpQueryConsentsByVerifier        = "QueryConsentsByVerifier"
	OpIsConsentValid                 = "IsConsentValid"
	OpVerifyDisclosure               = "VerifyDisclosure"
	OpQuickVerify                    = "QuickVerify"

	opAliasVerifyConsent = "VerifyConsent"
)

// IssueCertificate records a new certificate. The id is caller supplied and
// must be unused; the issuance timestamp comes from the runtime.
type IssueCertificate struct {
	ID              string            `json:"certificateId" validate:"required"`
	StudentDID      string            `json:"studentDid" validate:"required"`
	StudentName     string            `json:"studentName"`
	IssuerDID       string            `json:"issuerDid" validate:"required"`
	InstitutionName string            `json:"institutionName"`
	Degree          string            `json:"degree"`
	Major           string            `json:"major"`
	GPA             string            `json:"gpa" validate:"required"`
	GraduationDate  string            `json:"graduationDate"`
	CertificateHash string            `json:"certificateHash" validate:"required"`
	IPFSReference   string            `json:"ipfsReference"`
	Metadata        map[string]string `json:"metadata"`
}

func (IssueCertificate) Name() string { return OpIssueCertificate }
func (IssueCertificate) isOperation() {}

// ReadCertificate returns the full certificate record.
type ReadCertificate struct {
	ID string `json:"certificateId" validate:"required"`
}

func (ReadCertificate) Name() string { return OpReadCertificate }
func (ReadCertificate) isOperation() {}

// RevokeCertificate flips an active certificate to revoked. Only the
// issuing institution may revoke.
type RevokeCertificate struct {
	ID        string `json:"certificateId" validate:"required"`
	CallerDID string `json:"callerDid" validate:"required"`
	Reason    string `json:"reason"`
}

func (RevokeCertificate) Name() string { return OpRevokeCertificate }
func (RevokeCertificate) isOperation() {}

// QueryCertificatesByStudent lists a student's certificates, oldest first.
type QueryCertificatesByStudent struct {
	StudentDID string `json:"studentDid" validate:"required"`
}

func (QueryCertificatesByStudent) Name() string { return OpQueryCertificatesByStudent }
func (QueryCertificatesByStudent) isOperation() {}

// QueryCertificatesByInstitution lists an institution's issued certificates.
type QueryCertificatesByInstitution struct {
	IssuerDID string `json:"issuerDid" validate:"required"`
}

func (QueryCertificatesByInstitution) Name() string { return OpQueryCertificatesByInstitution }
func (QueryCertificatesByInstitution) isOperation() {}

// GetCertificateHistory returns every committed state of a certificate.
type GetCertificateHistory struct {
	ID string `json:"certificateId" validate:"required"`
}

func (GetCertificateHistory) Name() string { return OpGetCertificateHistory }
func (GetCertificateHistory) isOperation() {}

// GrantConsent records a field-scoped, time-boxed consent against one
// certificate owned by the granting student.
type GrantConsent struct {
	ID            string   `json:"consentId" validate:"required"`
	StudentDID    string   `json:"studentDid" validate:"required"`
	VerifierDID   string   `json:"verifierDid" validate:"required"`
	CertificateID string   `json:"certificateId" validate:"required"`
	Purpose       string   `json:"purpose"`
	DataShared    []string `json:"dataShared" validate:"required,min=1"`
	ValidityDays  int      `json:"validityDays" validate:"required,gt=0"`
}

func (GrantConsent) Name() string { return OpGrantConsent }
func (GrantConsent) isOperation() {}

// RevokeConsent flips an active consent to revoked. Only the granting
// student may revoke.
type RevokeConsent struct {
	ID        string `json:"consentId" validate:"required"`
	CallerDID string `json:"callerDid" validate:"required"`
	Reason    string `json:"reason"`
}

func (RevokeConsent) Name() string { return OpRevokeConsent }
func (RevokeConsent) isOperation() {}

// ReadConsent returns the full consent record.
type ReadConsent struct {
	ID string `json:"consentId" validate:"required"`
}

func (ReadConsent) Name() string { return OpReadConsent }
func (ReadConsent) isOperation() {}

// QueryConsentsByStudent lists a student's consents, oldest grant first.
type QueryConsentsByStudent struct {
	StudentDID string `json:"studentDid" validate:"required"`
}

func (QueryConsentsByStudent) Name() string { return OpQueryConsentsByStudent }
func (QueryConsentsByStudent) isOperation() {}

// QueryConsentsByVerifier lists the consents naming a verifier.
type QueryConsentsByVerifier struct {
	VerifierDID string `json:"verifierDid" validate:"required"`
}

func (QueryConsentsByVerifier) Name() string { return OpQueryConsentsByVerifier }
func (QueryConsentsByVerifier) isOperation() {}

// IsConsentValid evaluates the consent validity predicate for a verifier at
// the request timestamp. The answer is a bare boolean; it never explains
// which condition failed.
type IsConsentValid struct {
	ConsentID   string `json:"consentId" validate:"required"`
	VerifierDID string `json:"verifierDid" validate:"required"`
}

func (IsConsentValid) Name() string { return OpIsConsentValid }
func (IsConsentValid) isOperation() {}

// VerifyDisclosure runs the two-phase disclosure protocol and returns the
// field-filtered certificate view.
type VerifyDisclosure struct {
	CertificateID string `json:"certificateId" validate:"required"`
	ConsentID     string `json:"consentId" validate:"required"`
	VerifierDID   string `json:"verifierDid" validate:"required"`
}

func (VerifyDisclosure) Name() string { return OpVerifyDisclosure }
func (VerifyDisclosure) isOperation() {}

// QuickVerify checks tamper evidence against the recorded document hash
// without requiring a consent.
type QuickVerify struct {
	CertificateID string `json:"certificateId" validate:"required"`
	ExpectedHash  string `json:"expectedHash" validate:"required"`
}

func (QuickVerify) Name() string { return OpQuickVerify }
func (QuickVerify) isOperation() {}
