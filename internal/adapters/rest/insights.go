package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// GetPersonality handles GET /users/{userID}/personality?window_days=N
func (h *Handler) GetPersonality(w http.ResponseWriter, r *http.Request) {
	window, ok := intParam(w, r, "window_days")
	if !ok {
		return
	}
	res, err := h.svc.ComputePersonality(r.Context(), chi.URLParam(r, "userID"), window)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetStress handles GET /users/{userID}/stress?window_days=N
func (h *Handler) GetStress(w http.ResponseWriter, r *http.Request) {
	window, ok := intParam(w, r, "window_days")
	if !ok {
		return
	}
	res, err := h.svc.ComputeStress(r.Context(), chi.URLParam(r, "userID"), window)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type recommendationsResponse struct {
	UserID          string                  `json:"user_id"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// GetRecommendations handles GET /users/{userID}/recommendations?k=N
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	k, ok := intParam(w, r, "k")
	if !ok {
		return
	}
	userID := chi.URLParam(r, "userID")
	recs, err := h.svc.ComputeRecommendations(r.Context(), userID, k)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{UserID: userID, Recommendations: recs})
}

// intParam reads an optional integer query parameter. Absent means zero,
// which the service treats as its default.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return v, true
}
