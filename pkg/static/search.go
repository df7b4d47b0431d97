package static

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"

	"github.com/condlab/chainmatch/pkg/meta"
)

// FunctionMatch is one ranked result of a fuzzy function lookup.
type FunctionMatch struct {
	Function meta.Function
	Score    float64
}

const searchMinScore = 0.3

// SearchFunctions ranks known functions against a free-form query by name
// and signature similarity. This is a lookup convenience for the CLI,
// server and MCP surfaces; the matcher itself never crosses function
// boundaries. Returns at most limit results, best first.
func SearchFunctions(query string, funcs map[string]meta.Function, limit int) []FunctionMatch {
	if query == "" || len(funcs) == 0 {
		return nil
	}
	queryLower := strings.ToLower(query)
	queryTokens := tokenize(queryLower)

	var results []FunctionMatch
	for _, fn := range funcs {
		target := fn.Name
		if target == "" {
			target = fn.Signature
		}
		if target == "" {
			continue
		}
		score := similarityScore(queryLower, queryTokens, target)
		if sig := fn.Signature; sig != "" && sig != target {
			if s := similarityScore(queryLower, queryTokens, sig); s > score {
				score = s
			}
		}
		if score > searchMinScore {
			results = append(results, FunctionMatch{Function: fn, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Function.Hash < results[j].Function.Hash
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// similarityScore combines exact/substring matching, global levenshtein
// similarity and token-wise fuzzy matching into a score in [0,1].
func similarityScore(queryLower string, queryTokens map[string]bool, symbol string) float64 {
	symbolLower := strings.ToLower(symbol)

	if queryLower == symbolLower {
		return 1.0
	}
	if strings.Contains(symbolLower, queryLower) {
		return 0.95
	}

	globalScore := levSimilarity(queryLower, symbolLower)

	// Token-wise: handles "matrix mul" vs "MatrixMultiply(int, int)" and
	// keyword typos.
	symbolTokens := tokenize(symbolLower)
	totalTokenScore := 0.0
	for qToken := range queryTokens {
		best := 0.0
		if symbolTokens[qToken] {
			best = 1.0
		} else {
			for sToken := range symbolTokens {
				if s := levSimilarity(qToken, sToken); s > best {
					best = s
				}
			}
		}
		totalTokenScore += best
	}
	tokenScore := 0.0
	if len(queryTokens) > 0 {
		tokenScore = totalTokenScore / float64(len(queryTokens))
	}

	if tokenScore > globalScore {
		return tokenScore
	}
	return globalScore
}

func levSimilarity(a, b string) float64 {
	dist := levenshtein.Distance(a, b, nil)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	s := 1.0 - float64(dist)/float64(maxLen)
	if s < 0 {
		return 0
	}
	return s
}

// tokenize splits an identifier or signature into lowercase tokens,
// breaking on camelCase, snake_case and punctuation.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens[strings.ToLower(current.String())] = true
			current.Reset()
		}
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && current.Len() > 0 {
			flush()
		}
		current.WriteRune(r)
	}
	flush()
	return tokens
}
