package middleware

import (
	"errors"
	"net/http"

	"github.com/dvloznov/academy-cashbook/internal/domain"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPartialData):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err with the status StatusFor picks. Validation
// and not-found messages are shown to the caller; partial data lists the
// failed sources; anything else gets the generic fallback message.
func WriteDomainError(w http.ResponseWriter, err error, fallback string) {
	status := StatusFor(err)

	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		WriteError(w, status, err.Error())
	case http.StatusServiceUnavailable:
		var pd *domain.PartialDataError
		sources := []string{}
		if errors.As(err, &pd) {
			sources = pd.Sources()
		}
		WriteJSON(w, status, map[string]interface{}{
			"error":          "Reconciliation data is incomplete",
			"failed_sources": sources,
		})
	default:
		WriteError(w, status, fallback)
	}
}
