package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestRawTrackFeatures_Normalize(t *testing.T) {
	tests := []struct {
		name         string
		raw          RawTrackFeatures
		check        func(t *testing.T, f TrackFeatures)
		wantComplete bool
	}{
		{
			name: "missing features take neutral defaults",
			raw:  RawTrackFeatures{TrackID: "t1"},
			check: func(t *testing.T, f TrackFeatures) {
				for name, v := range map[string]float64{
					"danceability": f.Danceability, "energy": f.Energy, "valence": f.Valence,
					"acousticness": f.Acousticness, "instrumentalness": f.Instrumentalness,
					"liveness": f.Liveness, "speechiness": f.Speechiness,
				} {
					if v != DefaultUnitFeature {
						t.Errorf("%s = %v, want %v", name, v, DefaultUnitFeature)
					}
				}
				if f.Tempo != DefaultTempo {
					t.Errorf("tempo = %v, want %v", f.Tempo, DefaultTempo)
				}
				if f.Mode != DefaultMode || f.Key != DefaultKey {
					t.Errorf("key/mode = %d/%d", f.Key, f.Mode)
				}
			},
		},
		{
			name: "out of range values are clamped",
			raw: RawTrackFeatures{
				TrackID:      "t2",
				Danceability: fp(1.7),
				Energy:       fp(-0.2),
				Valence:      fp(math.NaN()),
				Acousticness: fp(0.3),
				Tempo:        fp(-5),
				Loudness:     fp(4),
				Key:          ip(14),
				Mode:         ip(3),
				Popularity:   ip(140),
			},
			check: func(t *testing.T, f TrackFeatures) {
				if f.Danceability != 1 || f.Energy != 0 {
					t.Errorf("danceability/energy = %v/%v", f.Danceability, f.Energy)
				}
				if f.Valence != DefaultUnitFeature {
					t.Errorf("NaN valence = %v, want default", f.Valence)
				}
				if f.Tempo != DefaultTempo {
					t.Errorf("tempo = %v, want default", f.Tempo)
				}
				if f.Loudness != 0 {
					t.Errorf("loudness = %v, want 0", f.Loudness)
				}
				if f.Key != DefaultKey || f.Mode != DefaultMode {
					t.Errorf("key/mode = %d/%d", f.Key, f.Mode)
				}
				if f.Popularity != 100 {
					t.Errorf("popularity = %d, want 100", f.Popularity)
				}
			},
		},
		{
			name: "complete when every taste feature is present",
			raw: RawTrackFeatures{
				TrackID:      "t3",
				Danceability: fp(0.8),
				Energy:       fp(0.6),
				Valence:      fp(0.4),
				Acousticness: fp(0.1),
				Tempo:        fp(128),
			},
			check: func(t *testing.T, f TrackFeatures) {
				if f.Tempo != 128 || f.Energy != 0.6 {
					t.Errorf("tempo/energy = %v/%v", f.Tempo, f.Energy)
				}
			},
			wantComplete: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.raw.Normalize()
			tc.check(t, f)
			if f.Complete != tc.wantComplete {
				t.Errorf("complete = %v, want %v", f.Complete, tc.wantComplete)
			}
		})
	}
}

func TestParseSource(t *testing.T) {
	if _, err := ParseSource("top_medium"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseSource("radio"); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestError_KindMatching(t *testing.T) {
	cause := errors.New("database is locked")
	err := fmt.Errorf("service: load events: %w", NewTransientStoreError("sqlite.GetEvents", cause))

	if !errors.Is(err, ErrTransientStore) {
		t.Fatalf("expected ErrTransientStore")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("did not expect ErrValidation")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if KindOf(err) != KindTransientStore {
		t.Fatalf("kind = %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}

	v := NewValidationError("ComputeStress", "window_days must not be negative")
	if v.Error() != "ComputeStress: validation_error: window_days must not be negative" {
		t.Fatalf("message = %q", v.Error())
	}
}
