package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

type trackPayload struct {
	TrackID    string `json:"track_id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	PreviewURL string `json:"preview_url"`
	DurationMs *int   `json:"duration_ms"`
	Popularity *int   `json:"popularity"`

	Danceability     *float64 `json:"danceability"`
	Energy           *float64 `json:"energy"`
	Valence          *float64 `json:"valence"`
	Acousticness     *float64 `json:"acousticness"`
	Instrumentalness *float64 `json:"instrumentalness"`
	Liveness         *float64 `json:"liveness"`
	Speechiness      *float64 `json:"speechiness"`
	Tempo            *float64 `json:"tempo"`
	Loudness         *float64 `json:"loudness"`
	Key              *int     `json:"key"`
	Mode             *int     `json:"mode"`
}

type eventPayload struct {
	TrackID  string    `json:"track_id"`
	PlayedAt time.Time `json:"played_at"`
	Source   string    `json:"source"`
}

type ingestRequest struct {
	Tracks       []trackPayload      `json:"tracks"`
	Events       []eventPayload      `json:"events"`
	ArtistGenres map[string][]string `json:"artist_genres"`
}

func (p ingestRequest) toBatch(userID string) domain.IngestBatch {
	batch := domain.IngestBatch{
		Tracks:       make([]domain.RawTrackFeatures, len(p.Tracks)),
		Events:       make([]domain.ListeningEvent, len(p.Events)),
		ArtistGenres: p.ArtistGenres,
	}
	for i, t := range p.Tracks {
		batch.Tracks[i] = domain.RawTrackFeatures{
			TrackID:          t.TrackID,
			Name:             t.Name,
			Artist:           t.Artist,
			Album:            t.Album,
			PreviewURL:       t.PreviewURL,
			DurationMs:       t.DurationMs,
			Popularity:       t.Popularity,
			Danceability:     t.Danceability,
			Energy:           t.Energy,
			Valence:          t.Valence,
			Acousticness:     t.Acousticness,
			Instrumentalness: t.Instrumentalness,
			Liveness:         t.Liveness,
			Speechiness:      t.Speechiness,
			Tempo:            t.Tempo,
			Loudness:         t.Loudness,
			Key:              t.Key,
			Mode:             t.Mode,
		}
	}
	for i, e := range p.Events {
		src := domain.Source(e.Source)
		if src == "" {
			src = domain.SourcePlayed
		}
		batch.Events[i] = domain.ListeningEvent{
			UserID:   userID,
			TrackID:  e.TrackID,
			PlayedAt: e.PlayedAt,
			Source:   src,
		}
	}
	return batch
}

// PostEvents handles POST /users/{userID}/events
func (h *Handler) PostEvents(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req ingestRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, string(domain.KindValidation), "invalid request body")
		return
	}

	userID := chi.URLParam(r, "userID")
	res, err := h.svc.Ingest(r.Context(), userID, req.toBatch(userID))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
