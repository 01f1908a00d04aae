package audit

import "time"

// Event is emitted from the transaction runtime to capture ledger actions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	TxID          string    `json:"txId"`
	Action        Action    `json:"action"`
	ActorDID      string    `json:"actorDid"`
	CertificateID string    `json:"certificateId,omitempty"`
	ConsentID     string    `json:"consentId,omitempty"`
	Decision      string    `json:"decision"`
	Reason        string    `json:"reason,omitempty"`
}

// Action names a ledger mutation or disclosure decision.
type Action string

const (
	ActionCertificateIssued  Action = "certificate_issued"
	ActionCertificateRevoked Action = "certificate_revoked"
	ActionConsentGranted     Action = "consent_granted"
	ActionConsentRevoked     Action = "consent_revoked"
	ActionDisclosureServed   Action = "disclosure_served"
	ActionDisclosureDenied   Action = "disclosure_denied"
)

// Decisions recorded on events.
const (
	DecisionCommitted = "committed"
	DecisionServed    = "served"
	DecisionDenied    = "denied"
)
