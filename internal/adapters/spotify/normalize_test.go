package spotify

import "testing"

func TestNormalizeArtistName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases and trims",
			input: "  Radiohead ",
			want:  "radiohead",
		},
		{
			name:  "drops bracketed segment",
			input: "Nirvana (UK)",
			want:  "nirvana",
		},
		{
			name:  "drops guest tail",
			input: "Calvin Harris feat. Rihanna",
			want:  "calvin harris",
		},
		{
			name:  "drops leading article",
			input: "The Beatles",
			want:  "beatles",
		},
		{
			name:  "keeps lone article",
			input: "The",
			want:  "the",
		},
		{
			name:  "collapses punctuation and apostrophes",
			input: "Guns N' Roses",
			want:  "guns n roses",
		},
		{
			name:  "keeps digits",
			input: "Blink-182",
			want:  "blink 182",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeArtistName(tt.input)
			if got != tt.want {
				t.Fatalf("normalizeArtistName: got %q, want %q", got, tt.want)
			}
		})
	}
}
