package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/efreitasn/finance/internal/domain"
)

// mapError writes the HTTP response for a service error. Trade rejections
// are all 400s and are told apart by their error code.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "invalid_input", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownSymbol):
		WriteError(w, http.StatusBadRequest, "unknown_symbol", "Invalid symbol")
	case errors.Is(err, domain.ErrInsufficientFunds):
		WriteError(w, http.StatusBadRequest, "insufficient_funds", "Not enough cash for this purchase")
	case errors.Is(err, domain.ErrInsufficientShares):
		WriteError(w, http.StatusBadRequest, "insufficient_shares", "Not enough shares to sell")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusForbidden, "invalid_credentials", "Invalid username and/or password")
	case errors.Is(err, domain.ErrUsernameTaken):
		WriteError(w, http.StatusConflict, "username_taken", "Username already exists")
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrUserNotFound):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
	default:
		slog.Error("unexpected error", slog.String("error", err.Error()))
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
