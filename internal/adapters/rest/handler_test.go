package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/core/services"
)

// --- Mocks ---

type mockService struct {
	err error

	gotUser   string
	gotWindow int
	gotK      int
	gotBatch  domain.IngestBatch

	personality domain.PersonalityResult
	stress      domain.StressResult
	recs        []domain.Recommendation
	ingest      domain.IngestResult
	panics      bool
}

func (m *mockService) ComputePersonality(ctx context.Context, userID string, windowDays int) (domain.PersonalityResult, error) {
	m.gotUser, m.gotWindow = userID, windowDays
	if m.panics {
		panic("boom")
	}
	return m.personality, m.err
}

func (m *mockService) ComputeStress(ctx context.Context, userID string, windowDays int) (domain.StressResult, error) {
	m.gotUser, m.gotWindow = userID, windowDays
	return m.stress, m.err
}

func (m *mockService) ComputeRecommendations(ctx context.Context, userID string, k int) ([]domain.Recommendation, error) {
	m.gotUser, m.gotK = userID, k
	return m.recs, m.err
}

func (m *mockService) Ingest(ctx context.Context, userID string, batch domain.IngestBatch) (domain.IngestResult, error) {
	m.gotUser, m.gotBatch = userID, batch
	return m.ingest, m.err
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		wantStatus int
		wantBody   string
	}{
		{name: "liveness only", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "store reachable", opts: []Option{WithReadiness(mockPinger{})}, wantStatus: http.StatusOK, wantBody: `"store":"ok"`},
		{name: "store down", opts: []Option{WithReadiness(mockPinger{err: errors.New("closed")})}, wantStatus: http.StatusServiceUnavailable, wantBody: `"status":"degraded"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockService{}, tt.opts...)
			rr := do(t, h, http.MethodGet, "/health", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			if !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Fatalf("body %s missing %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestGetPersonality(t *testing.T) {
	svc := &mockService{personality: domain.PersonalityResult{UserID: "u1", Primary: domain.ArchetypeScore{Name: "Explorer", Score: 70}}}
	h := NewHandler(svc)

	rr := do(t, h, http.MethodGet, "/users/u1/personality?window_days=14", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if svc.gotUser != "u1" || svc.gotWindow != 14 {
		t.Fatalf("service called with %q/%d", svc.gotUser, svc.gotWindow)
	}
	var got domain.PersonalityResult
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Primary.Name != "Explorer" {
		t.Fatalf("primary: got %q", got.Primary.Name)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type: %q", rr.Header().Get("Content-Type"))
	}
}

func TestGetStressDefaultsWindow(t *testing.T) {
	svc := &mockService{stress: domain.StressResult{UserID: "u1", Score: 25, Level: "Insufficient Data"}}
	h := NewHandler(svc)

	rr := do(t, h, http.MethodGet, "/users/u1/stress", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if svc.gotWindow != 0 {
		t.Fatalf("absent window must pass zero, got %d", svc.gotWindow)
	}
	if !strings.Contains(rr.Body.String(), `"level":"Insufficient Data"`) {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

func TestGetRecommendations(t *testing.T) {
	svc := &mockService{}
	h := NewHandler(svc)

	rr := do(t, h, http.MethodGet, "/users/u1/recommendations?k=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if svc.gotK != 3 {
		t.Fatalf("k: got %d, want 3", svc.gotK)
	}
	if !strings.Contains(rr.Body.String(), `"recommendations":[]`) {
		t.Fatalf("nil result must encode as empty list: %s", rr.Body.String())
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation",
			err:        domain.NewValidationError("ComputeStress", "window_days must be at least 0"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
			wantMsg:    "window_days must be at least 0",
		},
		{
			name:       "transient",
			err:        domain.NewTransientStoreError("get_events", errors.New("database is locked")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "transient_store_error",
			wantMsg:    "store temporarily unavailable, retry later",
		},
		{
			name:       "internal details hidden",
			err:        errors.New("sqlite: get_events: no such table: events"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockService{err: tt.err})
			rr := do(t, h, http.MethodGet, "/users/u1/stress?window_days=-1", "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.wantStatus)
			}
			body := decodeError(t, rr)
			if body.Code != tt.wantCode || body.Message != tt.wantMsg {
				t.Fatalf("body: got %+v", body)
			}
		})
	}
}

func TestBadQueryParameter(t *testing.T) {
	svc := &mockService{}
	h := NewHandler(svc)

	rr := do(t, h, http.MethodGet, "/users/u1/recommendations?k=five", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Code != "validation_error" {
		t.Fatalf("code: got %q", body.Code)
	}
	if svc.gotUser != "" {
		t.Fatalf("service must not be called")
	}
}

func TestPostEvents(t *testing.T) {
	svc := &mockService{ingest: domain.IngestResult{BatchID: "b1", TracksUpserted: 1, EventsInserted: 2}}
	h := NewHandler(svc)

	body := `{
		"tracks": [{"track_id": "t1", "name": "Song", "artist": "Band", "energy": 0.7, "popularity": 40}],
		"events": [
			{"track_id": "t1", "played_at": "2026-03-01T10:00:00Z", "source": "recently_played"},
			{"track_id": "t1", "played_at": "2026-03-01T11:00:00Z"}
		],
		"artist_genres": {"Band": ["indie"]}
	}`
	rr := do(t, h, http.MethodPost, "/users/u1/events", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}

	b := svc.gotBatch
	if len(b.Tracks) != 1 || b.Tracks[0].Energy == nil || *b.Tracks[0].Energy != 0.7 || b.Tracks[0].Valence != nil {
		t.Fatalf("tracks: %+v", b.Tracks)
	}
	if len(b.Events) != 2 {
		t.Fatalf("events: %+v", b.Events)
	}
	if b.Events[0].UserID != "u1" || b.Events[0].Source != domain.SourceRecentlyPlayed {
		t.Fatalf("event 0: %+v", b.Events[0])
	}
	if b.Events[1].Source != domain.SourcePlayed {
		t.Fatalf("missing source must default to played, got %q", b.Events[1].Source)
	}
	if !b.Events[0].PlayedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("played_at: %v", b.Events[0].PlayedAt)
	}
	if g := b.ArtistGenres["Band"]; len(g) != 1 || g[0] != "indie" {
		t.Fatalf("genres: %v", b.ArtistGenres)
	}
	if !strings.Contains(rr.Body.String(), `"batch_id":"b1"`) {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

func TestPostEventsRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		svcErr      error
		wantStatus  int
	}{
		{name: "wrong content type", contentType: "text/plain", body: `{}`, wantStatus: http.StatusUnsupportedMediaType},
		{name: "malformed json", contentType: "application/json", body: `{"events": [`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", contentType: "application/json", body: `{"playlists": []}`, wantStatus: http.StatusBadRequest},
		{name: "ingestion disabled", contentType: "application/json; charset=utf-8", body: `{}`, svcErr: services.ErrIngestionDisabled, wantStatus: http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockService{err: tt.svcErr})
			req := httptest.NewRequest(http.MethodPost, "/users/u1/events", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestRequestIDAndRecovery(t *testing.T) {
	h := NewHandler(&mockService{panics: true})

	req := httptest.NewRequest(http.MethodGet, "/users/u1/personality", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("panic must become 500, got %d", rr.Code)
	}
	if got := rr.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("request id: got %q", got)
	}

	rr = do(t, h, http.MethodGet, "/health", "")
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id must be generated")
	}
}

func TestRoutingErrors(t *testing.T) {
	h := NewHandler(&mockService{})

	if rr := do(t, h, http.MethodGet, "/playlists", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown route: got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/users/u1/stress", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: got %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", rr.Code)
	}
}
