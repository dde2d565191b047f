package rest

import (
	"errors"
	"mime"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/core/services"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeServiceError maps a service error to a status and a body that never
// carries internal details.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	switch {
	case errors.Is(err, domain.ErrValidation) && errors.As(err, &de):
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), de.Message)
	case errors.Is(err, domain.ErrTransientStore):
		logger(r).Warn().Err(err).Msg("store unavailable after retries")
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, string(domain.KindTransientStore), "store temporarily unavailable, retry later")
	case errors.Is(err, services.ErrIngestionDisabled):
		writeError(w, http.StatusNotImplemented, "ingestion_disabled", "ingestion is not enabled on this server")
	default:
		logger(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
