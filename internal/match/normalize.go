package match

import (
	"strings"
	"unicode"
)

// minWindowLen is the shortest partial token window that may be compared.
// Shorter windows ("id", "at") match far too much.
const minWindowLen = 4

// NormalizeName lower-cases a column name and folds separators and camel-case
// boundaries into single underscores: "Product Price" and "productPrice"
// both become "product_price".
func NormalizeName(s string) string {
	return strings.Join(Tokenize(s), "_")
}

// Tokenize splits an identifier into lower-case tokens.
// Examples:
//   - "OrderID" -> ["order", "id"]
//   - "unit-cost" -> ["unit", "cost"]
//   - "XMLFeedURL" -> ["xml", "feed", "url"]
func Tokenize(s string) []string {
	runes := []rune(strings.TrimSpace(s))
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	for i, r := range runes {
		if isSeparator(r) {
			flush()
			continue
		}
		if i > 0 && startsToken(runes, i) {
			flush()
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == ' ' || r == '.' || r == '/' || r == ':'
}

// startsToken reports a camel-case boundary at i: "orderID" splits before 'I',
// "XMLParser" splits before 'P'.
func startsToken(runes []rune, i int) bool {
	r, prev := runes[i], runes[i-1]
	if isSeparator(prev) {
		return false
	}
	if unicode.IsUpper(r) && !unicode.IsUpper(prev) && !unicode.IsDigit(prev) {
		return true
	}
	hasNextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
	return unicode.IsUpper(r) && unicode.IsUpper(prev) && hasNextLower
}

// windows returns every contiguous run of tokens joined with "_". The full
// name is always included; partial runs shorter than minWindowLen are not.
func windows(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	full := strings.Join(tokens, "_")
	out := []string{full}
	seen := map[string]bool{full: true}
	for i := range tokens {
		for j := i + 1; j <= len(tokens); j++ {
			w := strings.Join(tokens[i:j], "_")
			if seen[w] || len([]rune(w)) < minWindowLen {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
