package transcript

import (
	"strings"

	"github.com/voxtype/voxtype/internal/transcript/phonetic"
)

const trailingPunct = ".,!?;:"

// CorrectorOption is a functional option for configuring a [Corrector].
type CorrectorOption func(*Corrector)

// WithMatcher replaces the default phonetic matcher.
func WithMatcher(m *phonetic.Matcher) CorrectorOption {
	return func(c *Corrector) {
		c.matcher = m
	}
}

// WithMinSimilarity sets the Jaro-Winkler similarity a transcribed word must
// reach against a phonetically matching vocabulary term before it is
// replaced. Ignored when [WithMatcher] is also given.
func WithMinSimilarity(s float64) CorrectorOption {
	return func(c *Corrector) {
		c.minSimilarity = s
	}
}

// Corrector replaces misheard words in transcribed text with terms from a
// user-supplied vocabulary. At each position the longest matching n-gram
// window wins, so multi-word terms take precedence over partial single-word
// matches. Trailing punctuation on a window is preserved across the
// substitution.
//
// A Corrector is read-only after construction and safe for concurrent use.
type Corrector struct {
	matcher       *phonetic.Matcher
	vocabulary    []string
	maxTermWords  int
	minSimilarity float64
}

// NewCorrector returns a [Corrector] for the given vocabulary. With an empty
// vocabulary, [Corrector.Correct] returns its input unchanged.
func NewCorrector(vocabulary []string, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		vocabulary:   vocabulary,
		maxTermWords: maxTermWords(vocabulary),
	}
	for _, o := range opts {
		o(c)
	}
	if c.matcher == nil {
		var mopts []phonetic.Option
		if c.minSimilarity > 0 {
			mopts = append(mopts, phonetic.WithPhoneticThreshold(c.minSimilarity))
		}
		c.matcher = phonetic.New(mopts...)
	}
	return c
}

// Correct applies vocabulary substitutions to text and returns the corrected
// text together with an itemized record of every substitution. The returned
// slice is nil when nothing changed.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.vocabulary) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	output := make([]string, 0, len(tokens))
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := min(c.maxTermWords, len(tokens)-i)

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			bare, punct := splitTrailingPunct(window)

			term, conf, ok := c.matcher.Match(bare, c.vocabulary)
			if !ok || bare == term {
				continue
			}

			output = append(output, strings.Fields(term+punct)...)
			corrections = append(corrections, Correction{
				Original:   bare,
				Corrected:  term,
				Confidence: conf,
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(output, " "), corrections
}

// splitTrailingPunct separates trailing sentence punctuation from a window so
// "grafana." matches the term and keeps its period.
func splitTrailingPunct(s string) (bare, punct string) {
	trimmed := strings.TrimRight(s, trailingPunct)
	return trimmed, s[len(trimmed):]
}

// maxTermWords returns the largest whitespace-separated word count across the
// vocabulary, at least 1.
func maxTermWords(vocabulary []string) int {
	max := 1
	for _, v := range vocabulary {
		if n := len(strings.Fields(v)); n > max {
			max = n
		}
	}
	return max
}
