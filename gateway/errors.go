package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"hagglex/native/stake"
	"hagglex/native/token"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusForError maps the staking module's error kinds onto HTTP statuses.
// Token ledger rejections surface as validation failures except for
// overdrafts, which are the funds kind.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, stake.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, stake.ErrInvalid):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, stake.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, stake.ErrState):
		return http.StatusConflict, "state"
	case errors.Is(err, token.ErrOverdrawn), errors.Is(err, token.ErrSupplyExceeded):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, token.ErrNotIssuer), errors.Is(err, token.ErrBlacklisted):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, token.ErrNoBalance), errors.Is(err, token.ErrContractNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, token.ErrBadQuantity), errors.Is(err, token.ErrPrecisionMismatch),
		errors.Is(err, token.ErrSelfTransfer), errors.Is(err, token.ErrMemoTooLong):
		return http.StatusBadRequest, "invalid"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusForError(err)
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
