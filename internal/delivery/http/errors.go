package http

import (
	"net/http"

	"github.com/sentinel-cycle/engine/internal/sentinelerr"
)

// mapDomainError translates a domain error's Kind into an HTTP status code
// and a user-facing message. Returns (0, "") for nil or untagged errors,
// leaving the caller to fall back to a default.
func mapDomainError(err error) (status int, message string) {
	if err == nil {
		return 0, ""
	}
	switch sentinelerr.KindOf(err) {
	case sentinelerr.KindBusy:
		return http.StatusConflict, err.Error()
	case sentinelerr.KindInvalidGoal:
		return http.StatusBadRequest, err.Error()
	case sentinelerr.KindNotAwaiting:
		return http.StatusConflict, err.Error()
	case sentinelerr.KindApprovalNotFound:
		return http.StatusNotFound, err.Error()
	case sentinelerr.KindApprovalAlreadyDone:
		return http.StatusConflict, err.Error()
	case sentinelerr.KindCancelled:
		return http.StatusConflict, err.Error()
	case sentinelerr.KindTimeout:
		return http.StatusGatewayTimeout, err.Error()
	case sentinelerr.KindCurationFailed, sentinelerr.KindProposalInvalid,
		sentinelerr.KindVerificationFailed, sentinelerr.KindApplyFailed, sentinelerr.KindRestoreFailed:
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return 0, ""
	}
}

// errorBody is the JSON shape written for any mapped or unmapped error.
type errorBody struct {
	Error string `json:"error"`
}

func writeMappedError(err error, defaultStatus int, defaultMsg string) (int, errorBody) {
	if status, msg := mapDomainError(err); status != 0 {
		return status, errorBody{Error: msg}
	}
	if defaultMsg == "" {
		defaultMsg = err.Error()
	}
	return defaultStatus, errorBody{Error: defaultMsg}
}
