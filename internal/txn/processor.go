package txn

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eduledger/internal/audit"
	certledger "eduledger/internal/certificate/ledger"
	certmetrics "eduledger/internal/certificate/metrics"
	consentledger "eduledger/internal/consent/ledger"
	consentmetrics "eduledger/internal/consent/metrics"
	"eduledger/internal/disclosure"
	"eduledger/internal/worldstate"
	dErrors "eduledger/pkg/domain-errors"
)

// Outcome is the result of executing one operation against a snapshot: the
// value to return to the caller, the writes to commit (nil for reads), and
// the audit event to emit once the transaction is final. The runtime fills
// in the event's transaction id after commit.
type Outcome struct {
	Result any
	Writes []worldstate.Write
	Event  *audit.Event
}

// Processor executes decoded operations. It owns no state of its own;
// everything flows through the snapshot it is handed.
type Processor struct {
	certificates   *certledger.Ledger
	consents       *consentledger.Ledger
	verifier       *disclosure.Verifier
	certMetrics    *certmetrics.Metrics
	consentMetrics *consentmetrics.Metrics
	tracer         trace.Tracer
}

// ProcessorOption configures the Processor.
type ProcessorOption func(*Processor)

// WithCertificateMetrics attaches certificate collectors.
func WithCertificateMetrics(m *certmetrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.certMetrics = m }
}

// WithConsentMetrics attaches consent collectors.
func WithConsentMetrics(m *consentmetrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.consentMetrics = m }
}

// NewProcessor wires the processor over the two ledgers and the verifier.
// Metrics are optional; without them the processor just skips observation.
func NewProcessor(certificates *certledger.Ledger, consents *consentledger.Ledger, verifier *disclosure.Verifier, opts ...ProcessorOption) *Processor {
	p := &Processor{
		certificates: certificates,
		consents:     consents,
		verifier:     verifier,
		tracer:       otel.Tracer("eduledger/txn"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process dispatches one operation. Every case either reads through the
// snapshot or returns a write-set; nothing here commits. The now argument is
// the single transaction timestamp assigned by the runtime, so replaying the
// same operation with the same now against the same snapshot is a pure
// function of its inputs.
func (p *Processor) Process(ctx context.Context, snap worldstate.Snapshot, op Operation, now time.Time) (*Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "txn.Process", trace.WithAttributes(
		attribute.String("operation", op.Name()),
	))
	defer span.End()

	switch op := op.(type) {
	case IssueCertificate:
		return p.issueCertificate(ctx, snap, op, now)
	case ReadCertificate:
		cert, err := p.certificates.Read(ctx, snap, op.ID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: cert}, nil
	case RevokeCertificate:
		return p.revokeCertificate(ctx, snap, op, now)
	case QueryCertificatesByStudent:
		seq, err := p.certificates.QueryByStudent(ctx, snap, op.StudentDID)
		if err != nil {
			return nil, err
		}
		certs := slices.Collect(seq)
		p.observeCertQuery("student", len(certs))
		return &Outcome{Result: certs}, nil
	case QueryCertificatesByInstitution:
		seq, err := p.certificates.QueryByInstitution(ctx, snap, op.IssuerDID)
		if err != nil {
			return nil, err
		}
		certs := slices.Collect(seq)
		p.observeCertQuery("institution", len(certs))
		return &Outcome{Result: certs}, nil
	case GetCertificateHistory:
		entries, err := p.certificates.History(ctx, snap, op.ID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: entries}, nil
	case GrantConsent:
		return p.grantConsent(ctx, snap, op, now)
	case RevokeConsent:
		return p.revokeConsent(ctx, snap, op, now)
	case ReadConsent:
		consent, err := p.consents.Read(ctx, snap, op.ID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: consent}, nil
	case QueryConsentsByStudent:
		seq, err := p.consents.QueryByStudent(ctx, snap, op.StudentDID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: slices.Collect(seq)}, nil
	case QueryConsentsByVerifier:
		seq, err := p.consents.QueryByVerifier(ctx, snap, op.VerifierDID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: slices.Collect(seq)}, nil
	case IsConsentValid:
		valid, err := p.consents.IsValid(ctx, snap, op.ConsentID, op.VerifierDID, now)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: ValidityResult{Valid: valid}}, nil
	case VerifyDisclosure:
		return p.verifyDisclosure(ctx, snap, op, now)
	case QuickVerify:
		result, err := p.verifier.QuickVerify(ctx, snap, op.CertificateID, op.ExpectedHash)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: result}, nil
	default:
		// Unreachable for operations produced by Decode; the sealed
		// interface keeps outside types from landing here.
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown operation: "+op.Name())
	}
}

// ValidityResult wraps the consent validity boolean for the wire.
type ValidityResult struct {
	Valid bool `json:"valid"`
}

func (p *Processor) observeCertQuery(index string, count int) {
	if p.certMetrics != nil {
		p.certMetrics.ObserveQueryResults(index, float64(count))
	}
}

func (p *Processor) issueCertificate(ctx context.Context, snap worldstate.Snapshot, op IssueCertificate, now time.Time) (*Outcome, error) {
	cert, writes, err := p.certificates.Issue(ctx, snap, certledger.IssueRequest{
		ID:              op.ID,
		StudentDID:      op.StudentDID,
		StudentName:     op.StudentName,
		IssuerDID:       op.IssuerDID,
		InstitutionName: op.InstitutionName,
		Degree:          op.Degree,
		Major:           op.Major,
		GPA:             op.GPA,
		GraduationDate:  op.GraduationDate,
		CertificateHash: op.CertificateHash,
		IPFSReference:   op.IPFSReference,
		Metadata:        op.Metadata,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}
	if p.certMetrics != nil {
		p.certMetrics.IncrementIssued(op.InstitutionName)
	}
	return &Outcome{
		Result: cert,
		Writes: writes,
		Event: &audit.Event{
			Action:        audit.ActionCertificateIssued,
			ActorDID:      op.IssuerDID,
			CertificateID: op.ID,
			Decision:      audit.DecisionCommitted,
		},
	}, nil
}

func (p *Processor) revokeCertificate(ctx context.Context, snap worldstate.Snapshot, op RevokeCertificate, now time.Time) (*Outcome, error) {
	cert, writes, err := p.certificates.Revoke(ctx, snap, op.ID, op.CallerDID, op.Reason, now)
	if err != nil {
		if p.certMetrics != nil {
			p.certMetrics.IncrementRevocationRejected(string(dErrors.CodeOf(err)))
		}
		return nil, err
	}
	if p.certMetrics != nil {
		p.certMetrics.IncrementRevoked(cert.InstitutionName)
	}
	return &Outcome{
		Result: cert,
		Writes: writes,
		Event: &audit.Event{
			Action:        audit.ActionCertificateRevoked,
			ActorDID:      op.CallerDID,
			CertificateID: op.ID,
			Decision:      audit.DecisionCommitted,
			Reason:        op.Reason,
		},
	}, nil
}

func (p *Processor) grantConsent(ctx context.Context, snap worldstate.Snapshot, op GrantConsent, now time.Time) (*Outcome, error) {
	consent, writes, err := p.consents.Grant(ctx, snap, consentledger.GrantRequest{
		ID:            op.ID,
		StudentDID:    op.StudentDID,
		VerifierDID:   op.VerifierDID,
		CertificateID: op.CertificateID,
		Purpose:       op.Purpose,
		DataShared:    op.DataShared,
		ValidityDays:  op.ValidityDays,
		Now:           now,
	})
	if err != nil {
		if p.consentMetrics != nil {
			p.consentMetrics.IncrementGrantRejected(string(dErrors.CodeOf(err)))
		}
		return nil, err
	}
	if p.consentMetrics != nil {
		p.consentMetrics.IncrementGranted(op.Purpose)
		p.consentMetrics.ObserveFieldsFiltered(float64(len(op.DataShared) - len(consent.DataShared)))
	}
	return &Outcome{
		Result: consent,
		Writes: writes,
		Event: &audit.Event{
			Action:        audit.ActionConsentGranted,
			ActorDID:      op.StudentDID,
			CertificateID: op.CertificateID,
			ConsentID:     op.ID,
			Decision:      audit.DecisionCommitted,
		},
	}, nil
}

func (p *Processor) revokeConsent(ctx context.Context, snap worldstate.Snapshot, op RevokeConsent, now time.Time) (*Outcome, error) {
	consent, writes, err := p.consents.Revoke(ctx, snap, op.ID, op.CallerDID, op.Reason, now)
	if err != nil {
		return nil, err
	}
	if p.consentMetrics != nil {
		p.consentMetrics.IncrementRevoked()
	}
	return &Outcome{
		Result: consent,
		Writes: writes,
		Event: &audit.Event{
			Action:        audit.ActionConsentRevoked,
			ActorDID:      op.CallerDID,
			CertificateID: consent.CertificateID,
			ConsentID:     op.ID,
			Decision:      audit.DecisionCommitted,
			Reason:        op.Reason,
		},
	}, nil
}

// verifyDisclosure audits both outcomes: a served disclosure and a denial.
// Denials matter as much as grants when reconstructing who saw what.
func (p *Processor) verifyDisclosure(ctx context.Context, snap worldstate.Snapshot, op VerifyDisclosure, now time.Time) (*Outcome, error) {
	result, err := p.verifier.Verify(ctx, snap, op.CertificateID, op.ConsentID, op.VerifierDID, now)
	if err != nil {
		outcome := &Outcome{Event: &audit.Event{
			Action:        audit.ActionDisclosureDenied,
			ActorDID:      op.VerifierDID,
			CertificateID: op.CertificateID,
			ConsentID:     op.ConsentID,
			Decision:      audit.DecisionDenied,
			Reason:        string(dErrors.CodeOf(err)),
		}}
		return outcome, err
	}
	return &Outcome{
		Result: result,
		Event: &audit.Event{
			Action:        audit.ActionDisclosureServed,
			ActorDID:      op.VerifierDID,
			CertificateID: op.CertificateID,
			ConsentID:     op.ConsentID,
			Decision:      audit.DecisionServed,
		},
	}, nil
}
