package spotify

import (
	"strings"
	"unicode"
)

// featureTokens start a guest-artist tail that is not part of the name.
var featureTokens = map[string]struct{}{
	"feat":      {},
	"featuring": {},
	"ft":        {},
	"with":      {},
}

// normalizeArtistName lowercases an artist name, drops bracketed segments,
// guest-artist tails and a leading "the", and collapses punctuation to
// spaces.
func normalizeArtistName(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}

	lower := strings.ToLower(input)
	filtered := stripBracketedSegments(lower)
	tokens := strings.Fields(cleanSeparators(filtered))

	cleaned := make([]string, 0, len(tokens))
	for i, token := range tokens {
		if _, tail := featureTokens[token]; tail && i > 0 {
			break
		}
		if i == 0 && token == "the" && len(tokens) > 1 {
			continue
		}
		cleaned = append(cleaned, token)
	}

	return strings.Join(cleaned, " ")
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}

	return out.String()
}

func cleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if r == '\'' || r == '’' {
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}

	return out.String()
}

func fallbackIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}
