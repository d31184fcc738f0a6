package index

import "strings"

// Stop words excluded from the lexical index and from query terms.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// Tokenize splits text into index terms: lowercased, punctuation trimmed,
// stop words removed. The same analyzer is applied at index time and at
// query time so that lexical matching stays consistent.
func Tokenize(text string) []string {
	words := strings.Fields(text)
	terms := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			terms = append(terms, cleaned)
		}
	}

	return terms
}

// TermCounts returns the term frequency map for a piece of text.
func TermCounts(text string) map[string]int {
	terms := Tokenize(text)
	counts := make(map[string]int, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	return counts
}
