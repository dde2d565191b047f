package spotify_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/resonance/internal/adapters/spotify"
	"github.com/ewilliams-labs/resonance/internal/core/ports"
)

func TestArtistGenres(t *testing.T) {
	tests := []struct {
		name       string
		artist     string
		response   string
		statusCode int
		want       []string
		wantErr    error
		expectErr  bool
	}{
		{
			name:       "picks the matching artist",
			artist:     "The National",
			statusCode: http.StatusOK,
			response: `{
				"artists": {
					"items": [
						{ "id": "a0", "name": "National Park Radio", "genres": ["folk"], "popularity": 40 },
						{ "id": "a1", "name": "The National", "genres": ["indie rock", " ", "chamber pop"], "popularity": 75 }
					]
				}
			}`,
			want: []string{"indie rock", "chamber pop"},
		},
		{
			name:       "matched artist without genres",
			artist:     "Unknown Mortal Orchestra",
			statusCode: http.StatusOK,
			response:   `{ "artists": { "items": [ { "id": "a2", "name": "Unknown Mortal Orchestra", "genres": [] } ] } }`,
			want:       []string{},
		},
		{
			name:       "no confident match",
			artist:     "Portishead",
			statusCode: http.StatusOK,
			response:   `{ "artists": { "items": [ { "id": "a3", "name": "Massive Attack", "genres": ["trip hop"] } ] } }`,
			wantErr:    ports.ErrNoConfidentMatch,
			expectErr:  true,
		},
		{
			name:       "empty result",
			artist:     "Nobody",
			statusCode: http.StatusOK,
			response:   `{ "artists": { "items": [] } }`,
			wantErr:    ports.ErrNoConfidentMatch,
			expectErr:  true,
		},
		{
			name:       "client error status",
			artist:     "Radiohead",
			statusCode: http.StatusBadRequest,
			response:   `{ "error": { "status": 400 } }`,
			expectErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/search" {
					t.Errorf("Expected URL path /search, got %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("type"); got != "artist" {
					t.Errorf("type: got %q, want artist", got)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.response))
			}))
			defer ts.Close()

			client := spotify.NewClientWithBaseURL(http.DefaultClient, ts.URL)
			got, err := client.ArtistGenres(context.Background(), tt.artist)

			if (err != nil) != tt.expectErr {
				t.Fatalf("expected error: %v, got: %v", tt.expectErr, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.expectErr {
				return
			}
			if got == nil {
				t.Fatalf("genres must be non-nil")
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("genres: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAudioFeatures(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio-features" {
			t.Errorf("Expected URL path /audio-features, got %s", r.URL.Path)
		}
		requests.Add(1)
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		if len(ids) > 100 {
			t.Errorf("batch of %d ids exceeds 100", len(ids))
		}

		entries := make([]string, 0, len(ids))
		for _, id := range ids {
			switch {
			case id == "null-track":
				entries = append(entries, "null")
			case id == "zero-track":
				entries = append(entries, `{"id":"zero-track","danceability":0,"energy":0,"valence":0,"tempo":0,"instrumentalness":0,"acousticness":0}`)
			default:
				entries = append(entries, fmt.Sprintf(`{"id":%q,"danceability":0.5,"energy":0.8,"valence":0.3,"acousticness":0.1,"instrumentalness":0,"liveness":0.2,"speechiness":0.05,"tempo":128,"loudness":-6,"key":-1,"mode":1,"duration_ms":210000}`, id))
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"audio_features":[%s]}`, strings.Join(entries, ","))
	}))
	defer ts.Close()

	ids := []string{"null-track", "zero-track"}
	for i := 0; i < 148; i++ {
		ids = append(ids, fmt.Sprintf("t%03d", i))
	}

	client := spotify.NewClientWithBaseURL(http.DefaultClient, ts.URL)
	got, err := client.AudioFeatures(context.Background(), ids)
	if err != nil {
		t.Fatalf("audio features: %v", err)
	}
	if requests.Load() != 2 {
		t.Fatalf("requests: got %d, want 2 batches", requests.Load())
	}
	if len(got) != 148 {
		t.Fatalf("features: got %d, want 148", len(got))
	}
	if _, ok := got["null-track"]; ok {
		t.Fatalf("null entry must be absent")
	}
	if _, ok := got["zero-track"]; ok {
		t.Fatalf("placeholder entry must be absent")
	}

	f := got["t000"]
	if f.Energy == nil || *f.Energy != 0.8 || f.Tempo == nil || *f.Tempo != 128 {
		t.Fatalf("features not mapped: %+v", f)
	}
	if f.Key != nil {
		t.Fatalf("key -1 must map to nil, got %d", *f.Key)
	}
	if f.DurationMs == nil || *f.DurationMs != 210000 {
		t.Fatalf("duration not mapped: %+v", f.DurationMs)
	}
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := spotify.NewClientWithBaseURL(http.DefaultClient, ts.URL)
	for i := 0; i < 10; i++ {
		if _, err := client.ArtistGenres(context.Background(), "Radiohead"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	before := hits.Load()

	_, err := client.ArtistGenres(context.Background(), "Radiohead")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if hits.Load() != before {
		t.Fatalf("open breaker must not reach the server")
	}
}
