package spotify

const minArtistSimilarity = 0.8

// artistMatchScore compares a requested artist name with a search result
// after both are normalized.
func artistMatchScore(requested string, candidate spotifyArtist) (float64, bool) {
	want := normalizeArtistName(requested)
	got := normalizeArtistName(candidate.Name)
	if want == "" || got == "" {
		return 0, false
	}

	score := similarity(want, got)
	return score, score >= minArtistSimilarity
}

// bestArtistMatch picks the highest scoring confident candidate. Equal scores
// go to the more popular artist, then to the earlier result.
func bestArtistMatch(requested string, candidates []spotifyArtist) (spotifyArtist, float64, bool) {
	bestIndex := -1
	bestScore := 0.0
	for i, c := range candidates {
		score, ok := artistMatchScore(requested, c)
		if !ok {
			continue
		}
		if bestIndex == -1 || score > bestScore ||
			(score == bestScore && c.Popularity > candidates[bestIndex].Popularity) {
			bestIndex = i
			bestScore = score
		}
	}
	if bestIndex == -1 {
		return spotifyArtist{}, 0, false
	}
	return candidates[bestIndex], bestScore, true
}

func similarity(a string, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}

	distance := levenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(a string, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		copy(prev, curr)
	}

	return prev[len(rb)]
}
