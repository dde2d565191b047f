package csvimport

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

const sampleCSV = `user_id,track_id,played_at,source,track_name,artist,album,energy,valence,tempo,key,mode,genres
alice,t1,2024-03-01T08:00:00Z,played,Song One,Artist A,Album,0.8,0.4,120,5,1,indie rock; shoegaze
alice,t2,2024-03-01 09:30:00,,Song Two,Artist B,,,,,,,
bob,t3,2024-03-02T10:00:00Z,played,Song Three,Artist C,,0.1,0.2,90,,,
alice,t1,1709290800,recently_played,,,,,,,,,
`

func readAll(t *testing.T, r *Reader) []domain.IngestBatch {
	t.Helper()
	var out []domain.IngestBatch
	for {
		b, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, b)
	}
}

func TestReader_ParsesRows(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleCSV), Options{UserID: "alice"})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	batches := readAll(t, r)
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	b := batches[0]

	if len(b.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(b.Events))
	}
	if got := b.Events[1].PlayedAt; !got.Equal(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("local played_at = %v", got)
	}
	if b.Events[1].Source != domain.SourcePlayed {
		t.Errorf("default source = %q, want played", b.Events[1].Source)
	}
	if got := b.Events[2].PlayedAt; !got.Equal(time.Unix(1709290800, 0)) {
		t.Errorf("unix played_at = %v", got)
	}
	if b.Events[2].Source != domain.SourceRecentlyPlayed {
		t.Errorf("source = %q", b.Events[2].Source)
	}

	if len(b.Tracks) != 2 {
		t.Fatalf("tracks = %d, want 2 (t1 deduplicated)", len(b.Tracks))
	}
	t1 := b.Tracks[0]
	if t1.Name != "Song One" || t1.Energy == nil || *t1.Energy != 0.8 || t1.Key == nil || *t1.Key != 5 {
		t.Errorf("t1 = %+v", t1)
	}
	if t1.Danceability != nil {
		t.Errorf("missing column read as %v, want nil", *t1.Danceability)
	}
	t2 := b.Tracks[1]
	if t2.Energy != nil || t2.Tempo != nil || t2.Mode != nil {
		t.Errorf("empty cells should be nil: %+v", t2)
	}

	genres := b.ArtistGenres["Artist A"]
	if len(genres) != 2 || genres[0] != "indie rock" || genres[1] != "shoegaze" {
		t.Errorf("genres = %v", genres)
	}

	st := r.Stats()
	if st.Rows != 4 || st.Events != 3 || st.Filtered != 1 || st.Skipped != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestReader_Batches(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("track_id,played_at\n")
	for i := 0; i < 5; i++ {
		sb.WriteString("t")
		sb.WriteByte(byte('0' + i))
		sb.WriteString(",2024-01-0")
		sb.WriteByte(byte('1' + i))
		sb.WriteString("T00:00:00Z\n")
	}

	r, err := NewReader(strings.NewReader(sb.String()), Options{BatchSize: 2})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	batches := readAll(t, r)
	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b.Events)
	}
	if len(sizes) != 3 || sizes[0] != 2 || sizes[1] != 2 || sizes[2] != 1 {
		t.Fatalf("batch sizes = %v, want [2 2 1]", sizes)
	}
}

func TestReader_Location(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	r, err := NewReader(strings.NewReader("track_id,played_at\nt1,2024-01-01 12:00:00\n"), Options{Location: loc})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	b, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if got := b.Events[0].PlayedAt; !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("played_at = %v, want %v in UTC", got, want)
	}
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty input", "", "empty input"},
		{"missing played_at", "track_id\nt1\n", `missing required column "played_at"`},
		{"bad time", "track_id,played_at\nt1,yesterday\n", "line 2"},
		{"bad number", "track_id,played_at,energy\nt1,2024-01-01T00:00:00Z,loud\n", "energy"},
		{"bad source", "track_id,played_at,source\nt1,2024-01-01T00:00:00Z,radio\n", "unknown event source"},
		{"empty track", "track_id,played_at\n,2024-01-01T00:00:00Z\n", "track_id is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReader(strings.NewReader(tt.input), Options{})
			if err == nil {
				_, err = r.Next()
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestReader_SkipInvalid(t *testing.T) {
	input := "track_id,played_at,energy\n" +
		"t1,2024-01-01T00:00:00Z,0.5\n" +
		"t2,not a time,0.5\n" +
		"t3,2024-01-03T00:00:00Z,high\n" +
		"t4,2024-01-04T00:00:00Z,\n"

	r, err := NewReader(strings.NewReader(input), Options{SkipInvalid: true})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	batches := readAll(t, r)
	if len(batches) != 1 || len(batches[0].Events) != 2 {
		t.Fatalf("batches = %+v", batches)
	}
	if st := r.Stats(); st.Skipped != 2 || st.Events != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMergeRow(t *testing.T) {
	e := 0.3
	v := 0.9
	k := 2
	dst := domain.RawTrackFeatures{TrackID: "t1", Energy: &e}
	src := domain.RawTrackFeatures{TrackID: "t1", Name: "Later", Energy: &v, Valence: &v, Key: &k}

	got := mergeRow(dst, src)
	if *got.Energy != 0.3 {
		t.Errorf("energy = %v, want first row to win", *got.Energy)
	}
	if got.Valence == nil || *got.Valence != 0.9 || got.Name != "Later" || got.Key == nil || *got.Key != 2 {
		t.Errorf("merged = %+v", got)
	}
}
