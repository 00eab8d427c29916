package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/order/domain"
	"github.com/dmehra2102/Payment-Reconciliation-Service/internal/webhook"
)

const (
	codeInvalidRequestBody = "invalid_request_body"
	codeValidationFailed   = "validation_failed"
	codeOrderNotFound      = "order_not_found"
	codeNoMatchingRecord   = "no_matching_record"
	codeUnknownFeeType     = "unknown_fee_type"
	codeProviderFailure    = "provider_failure"
	codeSessionNotIssued   = "session_not_issued"
	codeStatusUnavailable  = "status_unavailable"
	codeVersionConflict    = "version_conflict"
	codeInvalidSignature   = "invalid_signature"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	payload, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

var errorMappings = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrNoMatchingRecord, http.StatusNotFound, codeNoMatchingRecord},
	{domain.ErrUnknownFeeType, http.StatusBadRequest, codeUnknownFeeType},
	{domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed},
	{domain.ErrProvider, http.StatusBadGateway, codeProviderFailure},
	{domain.ErrSessionNotIssued, http.StatusBadGateway, codeSessionNotIssued},
	{domain.ErrStatusUnavailable, http.StatusInternalServerError, codeStatusUnavailable},
	{domain.ErrVersionConflict, http.StatusConflict, codeVersionConflict},
	{webhook.ErrInvalidSignature, http.StatusUnauthorized, codeInvalidSignature},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, codeInternalError
}
