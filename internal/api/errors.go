package api

import (
	"errors"
	"net/http"

	"github.com/ZilDuck/marketplace-settlement/internal/dev"
	"github.com/ZilDuck/marketplace-settlement/internal/market"
	"github.com/ZilDuck/marketplace-settlement/internal/repository"
	"go.uber.org/zap"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

var statusByCode = map[string]int{
	"not_initialized":         http.StatusNotFound,
	"listing_not_found":       http.StatusNotFound,
	"account_not_found":       http.StatusNotFound,
	"unknown_program":         http.StatusNotFound,
	"already_initialized":     http.StatusConflict,
	"listing_exists":          http.StatusConflict,
	"account_exists":          http.StatusConflict,
	"insufficient_delegation": http.StatusConflict,
	"unauthorized":            http.StatusForbidden,
	"invalid_owner":           http.StatusForbidden,
	"invalid_signer":          http.StatusForbidden,
	"owner_mismatch":          http.StatusForbidden,
	"mint_authority":          http.StatusForbidden,
	"insufficient_funds":      http.StatusPaymentRequired,
	"canceled":                http.StatusServiceUnavailable,
	"deadline_exceeded":       http.StatusGatewayTimeout,
}

// writeError answers with the stable code of err. Anything without a code is
// reported as a dev.Error so the response id can be matched to the log line.
func writeError(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, repository.ErrActionNotFound) {
		writeJson(w, http.StatusNotFound, errorResponse{Code: "action_not_found", Message: err.Error()})
		return
	}

	code := market.ErrorCode(err)
	if code == "internal" {
		devErr := dev.NewError("API", operation, err, nil)
		zap.L().With(zap.Error(err), zap.String("id", devErr.ID), zap.String("operation", operation)).Error("API: Internal error")
		writeJson(w, http.StatusInternalServerError, errorResponse{Code: code, Message: "internal error", ID: devErr.ID})
		return
	}

	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusUnprocessableEntity
	}

	zap.L().With(zap.Error(err), zap.String("code", code), zap.String("operation", operation)).Debug("API: Request rejected")
	writeJson(w, status, errorResponse{Code: code, Message: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJson(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: err.Error()})
}
