package models

// The disclosure schema is the closed set of certificate field names a
// student can put in a consent's dataShared set. Consents are filtered
// against it at grant time, so the disclosure path never has to reason
// about unknown names. Metadata keys are grantable per certificate because
// they are open-ended claims chosen by the issuer.

// SchemaVersion identifies the disclosure field schema. Bump when field
// names are added so stored consents can be interpreted against the schema
// they were granted under.
const SchemaVersion = 1

// Always-visible provenance fields. These identify where a disclosure came
// from without revealing certificate content, so they never require consent.
const (
	FieldCertificateID   = "certificateId"
	FieldStatus          = "status"
	FieldIssuerDID       = "issuerDid"
	FieldInstitutionName = "institutionName"
)

// Consent-gated field names.
const (
	FieldStudentName     = "studentName"
	FieldStudentDID      = "studentDid"
	FieldDegree          = "degree"
	FieldMajor           = "major"
	FieldGPA             = "gpa"
	FieldGraduationDate  = "graduationDate"
	FieldCertificateHash = "certificateHash"
	FieldIPFSReference   = "ipfsReference"
	FieldIssuanceDate    = "issuanceDate"
)

// fieldAccessors maps grantable schema field names to their values.
var fieldAccessors = map[string]func(c *Certificate) any{
	FieldStudentName:     func(c *Certificate) any { return c.StudentName },
	FieldStudentDID:      func(c *Certificate) any { return c.StudentDID },
	FieldDegree:          func(c *Certificate) any { return c.Degree },
	FieldMajor:           func(c *Certificate) any { return c.Major },
	FieldGPA:             func(c *Certificate) any { return c.GPA },
	FieldGraduationDate:  func(c *Certificate) any { return c.GraduationDate },
	FieldCertificateHash: func(c *Certificate) any { return c.CertificateHash },
	FieldIPFSReference:   func(c *Certificate) any { return c.IPFSReference },
	FieldIssuanceDate:    func(c *Certificate) any { return c.IssuanceDate },
}

// HasField reports whether name is disclosable for this certificate: either
// a schema field or one of the certificate's own metadata keys.
func (c *Certificate) HasField(name string) bool {
	if _, ok := fieldAccessors[name]; ok {
		return true
	}
	_, ok := c.Metadata[name]
	return ok
}

// FilterFields returns the subset of names that are disclosable for this
// certificate, deduplicated, preserving first-seen order. Unknown names are
// dropped: a verifier can never be granted a field that does not exist.
func (c *Certificate) FilterFields(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if c.HasField(name) {
			out = append(out, name)
		}
	}
	return out
}

// Project returns the certificate view containing exactly the requested
// fields plus the always-visible provenance fields. Callers must pass a
// list already filtered at grant time; names that still miss are skipped
// rather than leaked as empty values.
func (c *Certificate) Project(fields []string) map[string]any {
	view := map[string]any{
		FieldCertificateID:   c.ID,
		FieldStatus:          c.Status,
		FieldIssuerDID:       c.IssuerDID,
		FieldInstitutionName: c.InstitutionName,
	}
	for _, name := range fields {
		if accessor, ok := fieldAccessors[name]; ok {
			view[name] = accessor(c)
			continue
		}
		if value, ok := c.Metadata[name]; ok {
			view[name] = value
		}
	}
	return view
}
