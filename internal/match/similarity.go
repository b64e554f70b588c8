package match

// PartialCap bounds the score of a match found only through a token window.
// It keeps "category_name" vs "name" below a whole-name match and below the
// confidence at which fuzzy mappings get learned.
const PartialCap = 0.8

// Similarity scores two column names in [0, 1] as
// 1 - Levenshtein(a', b') / max(len(a'), len(b')), where a' and b' are the
// normalized names. It is symmetric.
func Similarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" && nb == "" {
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}
	return LevenshteinNormalized(na, nb)
}

// NameScore is Similarity, raised to the best token-window match when that is
// higher. Window matches are capped at PartialCap, so only whole names score
// above it: "prodcut_pric" reaches "price" through its "pric" window at 0.8,
// and so does "category_name" reach "name".
func NameScore(a, b string) float64 {
	whole := Similarity(a, b)
	if whole >= PartialCap {
		return whole
	}
	partial := 0.0
	for _, x := range windows(Tokenize(a)) {
		for _, y := range windows(Tokenize(b)) {
			if s := LevenshteinNormalized(x, y); s > partial {
				partial = s
			}
		}
	}
	return max(whole, min(partial, PartialCap))
}

// Best is the highest-scoring candidate name for a source name.
type Best struct {
	Name  string
	Score float64
}

// BestMatch compares source against every candidate with NameScore and keeps
// the first one with the highest score, so ties resolve in candidate order.
func BestMatch(source string, candidates []string) Best {
	var best Best
	for _, c := range candidates {
		if s := NameScore(source, c); s > best.Score {
			best = Best{Name: c, Score: s}
		}
	}
	return best
}
