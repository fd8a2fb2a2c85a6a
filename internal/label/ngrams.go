package label

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords is the fixed set of function words excluded from n-gram
// candidates. Shorter function words (articles, prepositions, pronouns)
// never reach the lookup: the length filter in Tokenize drops them first.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {},
	"are": {}, "was": {}, "were": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {},
	"may": {}, "might": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"you": {}, "she": {}, "they": {}, "him": {}, "her": {}, "them": {},
	"your": {}, "his": {}, "its": {}, "our": {}, "their": {},
}

// Tokenize normalizes text for n-gram extraction: lower-cases it, strips all
// non-alphanumeric characters to spaces, splits on whitespace, and drops stop
// words and tokens of length 2 or less.
func Tokenize(text string) []string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}

	var tokens []string
	for _, token := range strings.Fields(builder.String()) {
		if len(token) <= 2 {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

// ngramCount is a candidate phrase with its pooled frequency.
type ngramCount struct {
	phrase string
	count  int
}

// countNgrams pools every contiguous n-token window, for n in
// [minLen, maxLen], across all texts and returns candidates sorted by count
// descending with a lexicographic secondary key. The secondary key makes the
// ranking reproducible where raw counting order would not be.
func countNgrams(texts []string, minLen, maxLen int) []ngramCount {
	counts := make(map[string]int)
	for _, text := range texts {
		tokens := Tokenize(text)
		for n := minLen; n <= maxLen; n++ {
			for i := 0; i+n <= len(tokens); i++ {
				phrase := strings.Join(tokens[i:i+n], " ")
				counts[phrase]++
			}
		}
	}

	candidates := make([]ngramCount, 0, len(counts))
	for phrase, count := range counts {
		candidates = append(candidates, ngramCount{phrase: phrase, count: count})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].phrase < candidates[j].phrase
	})

	return candidates
}

// selectLabel picks the label phrase from the ranked candidates: the most
// frequent n-gram, unless it is a single token and a 2-3 token candidate
// appears further down the ranking, in which case the first such multi-token
// candidate wins. Returns "" when there are no candidates.
func selectLabel(candidates []ngramCount) string {
	if len(candidates) == 0 {
		return ""
	}

	top := candidates[0].phrase
	if tokenCount(top) == 1 {
		for _, c := range candidates[1:] {
			if words := tokenCount(c.phrase); words >= 2 && words <= 3 {
				top = c.phrase
				break
			}
		}
	}

	return titleCase(top)
}

func tokenCount(phrase string) int {
	return len(strings.Fields(phrase))
}

// titleCase upper-cases the first letter of each word.
func titleCase(phrase string) string {
	words := strings.Fields(phrase)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// splitSentences splits text on sentence-ending punctuation.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start:i]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
