package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"escrow-service/internal/pkg/xerrors"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status: "success",
		Data:   data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status:  "error",
		Message: msg,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// FromError maps sentinel errors to HTTP status codes and writes the envelope.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, xerrors.ErrUnauthorized), errors.Is(err, xerrors.ErrInvalidSignature):
		Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, xerrors.ErrNotFound),
		errors.Is(err, xerrors.ErrWalletNotFound),
		errors.Is(err, xerrors.ErrPendingNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrAlreadyProcessed):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrIllegalTransition),
		errors.Is(err, xerrors.ErrTerminalState),
		errors.Is(err, xerrors.ErrInvalidRequest),
		errors.Is(err, xerrors.ErrRiderRequired),
		errors.Is(err, xerrors.ErrAmountMismatch),
		errors.Is(err, xerrors.ErrWalletLimitExceeded):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrInsufficientBalance),
		errors.Is(err, xerrors.ErrInsufficientEscrow),
		errors.Is(err, xerrors.ErrEscrowNotHeld),
		errors.Is(err, xerrors.ErrEscrowAlreadyReleased),
		errors.Is(err, xerrors.ErrCommissionConfig):
		Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
