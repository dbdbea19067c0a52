package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/medride/internal/bids"
	"github.com/example/medride/internal/fare"
	"github.com/example/medride/internal/lifecycle"
	"github.com/example/medride/internal/storage"
)

// Error codes let clients distinguish "your input is invalid" from "this
// ride is no longer accepting bids" from "maximum negotiation rounds
// reached" and render different messaging for each.
const (
	codeValidation    = "validation"
	codeStateConflict = "state_conflict"
	codeCapacity      = "capacity"
	codeNotFound      = "not_found"
	codeExternal      = "external_failure"
	codeInternal      = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeCoreError maps core-package sentinels onto the API taxonomy.
func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	case errors.Is(err, fare.ErrVehicleType),
		errors.Is(err, fare.ErrStairsTier),
		errors.Is(err, fare.ErrWaitTime),
		errors.Is(err, bids.ErrBidTooLow),
		errors.Is(err, bids.ErrBidOutOfRange),
		errors.Is(err, bids.ErrDriverNotOnboarded):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, bids.ErrMaxCounterOffers):
		writeError(w, http.StatusConflict, codeCapacity, err.Error())
	case errors.Is(err, bids.ErrRideClosed),
		errors.Is(err, bids.ErrBidClosed),
		errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeStateConflict, err.Error())
	default:
		s.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
