package shared

import (
	"errors"
	"net/http"

	"eduledger/internal/transport/http/shared/json"
	dErrors "eduledger/pkg/domain-errors"
)

// WriteError centralizes domain error translation to HTTP responses.
// Domain codes travel verbatim in the error field; only the status code is
// an HTTP concern.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		json.WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
		return
	}

	// Fallback for unexpected errors
	json.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
//
// Unauthorized is 403, not 401: the caller authenticated upstream, the
// failure is record ownership. CertificateRevoked is 410 because the record
// existed and is permanently gone from the disclosable set.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeInvalidInput, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeAlreadyExists, dErrors.CodeAlreadyRevoked,
		dErrors.CodeCertificateMismatch, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeConsentInvalid:
		return http.StatusForbidden
	case dErrors.CodeCertificateRevoked:
		return http.StatusGone
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
