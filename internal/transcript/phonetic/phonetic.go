// Package phonetic ranks vocabulary terms against transcribed words by
// pronunciation similarity.
//
// Speech-to-text engines routinely mangle proper nouns and technical jargon
// that never appear in their training data. Matching proceeds in two passes:
//
//   - Candidate filtering by Double Metaphone: a term is a phonetic candidate
//     when every token of the input has at least one encoded form that
//     coincides with an encoded form of the term. Candidates are ranked by
//     Jaro-Winkler similarity on the original strings and accepted above the
//     phonetic threshold.
//
//   - Fuzzy fallback: when no phonetic candidate clears the bar, terms are
//     ranked by Jaro-Winkler alone against a stricter threshold, catching
//     misspellings that happen to encode differently.
//
// Multi-word inputs are compared as full strings and as space-stripped
// concatenations (one spoken word split across two transcribed tokens, or
// vice versa). Single-word inputs are additionally compared against each
// token of multi-word terms.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler similarity a
// phonetically matching term must reach to be accepted. Default: 0.70.
func WithPhoneticThreshold(t float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = t
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity required when
// no phonetic candidate is found. Default: 0.85.
func WithFuzzyThreshold(t float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = t
	}
}

// Matcher matches transcribed words against a vocabulary by pronunciation.
// It is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] with the supplied options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the vocabulary term most similar to input. input may be a
// single word or a space-separated phrase; matching is case-insensitive and
// the returned term keeps its original casing.
//
// When matched is false, term equals input unchanged and confidence is 0.
func (m *Matcher) Match(input string, vocabulary []string) (term string, confidence float64, matched bool) {
	inputLower := strings.ToLower(strings.TrimSpace(input))
	if inputLower == "" || len(vocabulary) == 0 {
		return input, 0, false
	}
	inputTokens := strings.Fields(inputLower)

	tokenCodes := make([]map[string]struct{}, len(inputTokens))
	for i, t := range inputTokens {
		tokenCodes[i] = metaphoneCodes(t)
	}

	var (
		bestPhonetic      string
		bestPhoneticScore float64
		bestFuzzy         string
		bestFuzzyScore    float64
	)

	for _, v := range vocabulary {
		vLower := strings.ToLower(strings.TrimSpace(v))
		if vLower == "" {
			continue
		}
		vTokens := strings.Fields(vLower)

		vCodes := make(map[string]struct{}, len(vTokens)*2)
		for _, t := range vTokens {
			for c := range metaphoneCodes(t) {
				vCodes[c] = struct{}{}
			}
		}

		score := similarity(inputTokens, vTokens, inputLower, vLower)

		if allIntersect(tokenCodes, vCodes) {
			if score >= m.phoneticThreshold && score > bestPhoneticScore {
				bestPhonetic, bestPhoneticScore = v, score
			}
		} else if score >= m.fuzzyThreshold && score > bestFuzzyScore {
			bestFuzzy, bestFuzzyScore = v, score
		}
	}

	// A phonetic candidate wins over a fuzzy one regardless of score.
	if bestPhonetic != "" {
		return bestPhonetic, bestPhoneticScore, true
	}
	if bestFuzzy != "" {
		return bestFuzzy, bestFuzzyScore, true
	}
	return input, 0, false
}

// metaphoneCodes returns the Double Metaphone encodings of one token,
// excluding empty codes.
func metaphoneCodes(token string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	primary, secondary := matchr.DoubleMetaphone(token)
	if primary != "" {
		codes[primary] = struct{}{}
	}
	if secondary != "" {
		codes[secondary] = struct{}{}
	}
	return codes
}

// allIntersect reports whether every per-token code set shares at least one
// code with the term's code set. Requiring every input token to align keeps
// windows that merely contain a term's word ("the meridian" against
// "Meridian Labs") from qualifying as phonetic candidates.
func allIntersect(tokenCodes []map[string]struct{}, termCodes map[string]struct{}) bool {
	for _, codes := range tokenCodes {
		if len(codes) == 0 {
			return false
		}
		found := false
		for c := range codes {
			if _, ok := termCodes[c]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// similarity returns the best Jaro-Winkler score across the full strings and
// the space-stripped concatenations. A single-token input is additionally
// compared against each term token, so one spoken word can pull in a
// multi-word term; multi-token inputs are not, since a single shared token
// would otherwise score a perfect 1.0.
func similarity(aTokens, bTokens []string, aFull, bFull string) float64 {
	best := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false)
		if joined > best {
			best = joined
		}
	}

	if len(aTokens) == 1 {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(aTokens[0], bt, false); s > best {
				best = s
			}
		}
	}
	return best
}
