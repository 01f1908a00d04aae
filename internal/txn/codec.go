package txn

import (
	"encoding/json"

	dErrors "eduledger/pkg/domain-errors"
	"eduledger/pkg/validation"
)

// decoders maps wire names to typed decoders. The map is the single place a
// new operation gets registered; the processor's type switch is the second,
// and an operation present in one but not the other fails loudly in tests.
var decoders = map[string]func(json.RawMessage) (Operation, error){
	OpIssueCertificate:               decodeInto[IssueCertificate],
	OpReadCertificate:                decodeInto[ReadCertificate],
	OpRevokeCertificate:              decodeInto[RevokeCertificate],
	OpQueryCertificatesByStudent:     decodeInto[QueryCertificatesByStudent],
	OpQueryCertificatesByInstitution: decodeInto[QueryCertificatesByInstitution],
	OpGetCertificateHistory:          decodeInto[GetCertificateHistory],
	OpGrantConsent:                   decodeInto[GrantConsent],
	OpRevokeConsent:                  decodeInto[RevokeConsent],
	OpReadConsent:                    decodeInto[ReadConsent],
	OpQueryConsentsByStudent:         decodeInto[QueryConsentsByStudent],
	OpQueryConsentsByVerifier:        decodeInto[QueryConsentsByVerifier],
	OpIsConsentValid:                 decodeInto[IsConsentValid],
	OpVerifyDisclosure:               decodeInto[VerifyDisclosure],
	OpQuickVerify:                    decodeInto[QuickVerify],
	opAliasVerifyConsent:             decodeInto[IsConsentValid],
}

// Decode turns a wire request (operation name plus JSON arguments) into a
// typed operation. Unknown names and malformed or invalid arguments fail
// with InvalidInput before any state is read.
func Decode(name string, args json.RawMessage) (Operation, error) {
	decode, ok := decoders[name]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown operation: "+name)
	}
	return decode(args)
}

// OperationNames returns the canonical wire names, for capability listings.
func OperationNames() []string {
	return []string{
		OpIssueCertificate,
		OpReadCertificate,
		OpRevokeCertificate,
		OpQueryCertificatesByStudent,
		OpQueryCertificatesByInstitution,
		OpGetCertificateHistory,
		OpGrantConsent,
		OpRevokeConsent,
		OpReadConsent,
		OpQueryConsentsByStudent,
		OpQueryConsentsByVerifier,
		OpIsConsentValid,
		OpVerifyDisclosure,
		OpQuickVerify,
	}
}

func decodeInto[T Operation](args json.RawMessage) (Operation, error) {
	var op T
	if len(args) > 0 {
		if err := json.Unmarshal(args, &op); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed operation arguments")
		}
	}
	if err := validation.Validate(op); err != nil {
		return nil, err
	}
	return op, nil
}
