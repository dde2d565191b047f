package spotify

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want int
	}{
		{
			name: "kitten sitting",
			a:    "kitten",
			b:    "sitting",
			want: 3,
		},
		{
			name: "empty to word",
			a:    "",
			b:    "sound",
			want: 5,
		},
		{
			name: "runes not bytes",
			a:    "björk",
			b:    "bjork",
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := levenshteinDistance(tt.a, tt.b)
			if got != tt.want {
				t.Fatalf("distance: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArtistMatchScore(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		candidate string
		wantOK    bool
	}{
		{name: "exact", requested: "Radiohead", candidate: "Radiohead", wantOK: true},
		{name: "case and article", requested: "the national", candidate: "The National", wantOK: true},
		{name: "guest tail", requested: "Daft Punk feat. Pharrell Williams", candidate: "Daft Punk", wantOK: true},
		{name: "small typo", requested: "Radiohed", candidate: "Radiohead", wantOK: true},
		{name: "different artist", requested: "Radiohead", candidate: "Radio Company", wantOK: false},
		{name: "empty", requested: "", candidate: "Radiohead", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := artistMatchScore(tt.requested, spotifyArtist{Name: tt.candidate})
			if got != tt.wantOK {
				t.Fatalf("match: got %v, want %v", got, tt.wantOK)
			}
		})
	}
}

func TestBestArtistMatch(t *testing.T) {
	candidates := []spotifyArtist{
		{ID: "1", Name: "Nirvana (UK)", Popularity: 20},
		{ID: "2", Name: "Nirvana", Popularity: 80},
		{ID: "3", Name: "Nirvanna", Popularity: 90},
	}

	best, score, ok := bestArtistMatch("Nirvana", candidates)
	if !ok {
		t.Fatalf("expected a match")
	}
	// "Nirvana (UK)" and "Nirvana" both normalize to an exact match; popularity breaks the tie.
	if best.ID != "2" || score != 1 {
		t.Fatalf("best: got %s (%.2f), want 2 (1.00)", best.ID, score)
	}

	if _, _, ok := bestArtistMatch("Portishead", candidates); ok {
		t.Fatalf("expected no confident match")
	}
}
