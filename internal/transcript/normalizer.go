package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxAppendOverlap bounds the suffix/prefix comparison when deduplicating
// repeated fragments across consecutive segments.
const maxAppendOverlap = 30

// Whisper-style inline timestamp markers, e.g.
// "[00:00:01.000 --> 00:00:03.500] hello".
var timestampPattern = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\.\d{3}\s+-->\s+\d{2}:\d{2}:\d{2}\.\d{3}\]\s*`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// defaultHallucinations are filler phrases Whisper models commonly emit on
// silence or music. Ordered longest-first so prefix/suffix stripping removes
// the most specific phrase.
var defaultHallucinations = []string{
	"thanks for watching",
	"thank you for watching",
	"don't forget to subscribe",
	"like and subscribe",
	"see you in the next video",
	"thanks for listening",
	"thank you.",
	"thank you",
	"thanks for watching!",
	"subscribe to",
	"click the",
	"check out",
	"in this video",
	"in today's video",
	"thanks",
	"goodbye",
	"bye bye",
	"see you",
	"welcome",
	"hello everyone",
	"hi everyone",
}

const edgePunct = " .!?,"

// NormalizerOption is a functional option for configuring a [Normalizer].
type NormalizerOption func(*Normalizer)

// WithMinWords sets the minimum word count for [Normalizer.IsValid].
// Default: 2.
func WithMinWords(n int) NormalizerOption {
	return func(nm *Normalizer) {
		nm.minWords = n
	}
}

// WithHallucinations replaces the default hallucination phrase list.
// Phrases are matched case-insensitively.
func WithHallucinations(phrases ...string) NormalizerOption {
	return func(nm *Normalizer) {
		lowered := make([]string, len(phrases))
		for i, p := range phrases {
			lowered[i] = strings.ToLower(p)
		}
		nm.hallucinations = lowered
	}
}

// Normalizer cleans raw transcription text: timestamp markers are stripped,
// hallucinated filler phrases are filtered, sentences are capitalized, and
// overlapping fragments across consecutive segments are deduplicated.
//
// A Normalizer is read-only after construction and safe for concurrent use.
type Normalizer struct {
	minWords       int
	hallucinations []string
}

// NewNormalizer returns a [Normalizer] with the supplied options applied.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		minWords:       2,
		hallucinations: defaultHallucinations,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// StripTimestamps removes inline timestamp markers and collapses the
// whitespace left behind.
func (n *Normalizer) StripTimestamps(text string) string {
	if text == "" {
		return ""
	}
	clean := timestampPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(clean, " "))
}

// FilterHallucinations strips known filler phrases from the start and end of
// text. When the whole text is a filler phrase the result is empty.
func (n *Normalizer) FilterHallucinations(text string) string {
	text = n.StripTimestamps(text)
	if text == "" {
		return ""
	}

	lower := strings.ToLower(text)
	for _, phrase := range n.hallucinations {
		if lower == phrase {
			return ""
		}
	}

	for _, phrase := range n.hallucinations {
		if rest, ok := stripPhrasePrefix(text, lower, phrase); ok {
			if rest == "" {
				return ""
			}
			text = rest
			lower = strings.ToLower(text)
		}
		if rest, ok := stripPhraseSuffix(text, lower, phrase); ok {
			if rest == "" {
				return ""
			}
			text = rest
			lower = strings.ToLower(text)
		}
	}

	return strings.TrimSpace(text)
}

// stripPhrasePrefix removes phrase from the start of text when it is followed
// by a word boundary. lower is the lowercase form of text.
func stripPhrasePrefix(text, lower, phrase string) (string, bool) {
	if !strings.HasPrefix(lower, phrase) {
		return text, false
	}
	if len(strings.Trim(text, edgePunct)) == len(phrase) {
		return "", true
	}
	if len(text) > len(phrase) && strings.ContainsRune(edgePunct, rune(text[len(phrase)])) {
		return strings.TrimLeft(text[len(phrase):], edgePunct), true
	}
	return text, false
}

// stripPhraseSuffix removes phrase from the end of text when it is preceded
// by a word boundary. lower is the lowercase form of text.
func stripPhraseSuffix(text, lower, phrase string) (string, bool) {
	if !strings.HasSuffix(lower, phrase) {
		return text, false
	}
	if len(strings.Trim(text, edgePunct)) == len(phrase) {
		return "", true
	}
	start := len(text) - len(phrase)
	if start > 0 && strings.ContainsRune(edgePunct, rune(text[start-1])) {
		return strings.TrimRight(text[:start], edgePunct), true
	}
	return text, false
}

// IsValid reports whether text is a real utterance: non-empty after timestamp
// stripping and at least the configured minimum word count. Transcribers
// occasionally emit single-word noise on breath sounds; the word-count floor
// drops those.
func (n *Normalizer) IsValid(text string) bool {
	text = n.StripTimestamps(text)
	if text == "" {
		return false
	}
	return len(strings.Fields(text)) >= n.minWords
}

// Format prepares text for display: timestamps stripped, a space ensured
// after sentence punctuation, and the first letter of each sentence
// capitalized.
func (n *Normalizer) Format(text string) string {
	text = n.StripTimestamps(text)
	if text == "" {
		return ""
	}

	var spaced strings.Builder
	spaced.Grow(len(text) + 8)
	for _, r := range text {
		spaced.WriteRune(r)
		if isSentenceEnd(r) {
			spaced.WriteRune(' ')
		}
	}
	text = whitespacePattern.ReplaceAllString(spaced.String(), " ")

	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if isSentenceEnd(r) {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	for i, s := range sentences {
		sentences[i] = capitalizeFirst(s)
	}
	return strings.TrimSpace(strings.Join(sentences, " "))
}

// Append merges a new segment into the accumulated session transcript.
// Consecutive segments frequently share a boundary fragment when the audio
// windows overlap; the longest case-insensitive suffix/prefix overlap (up to
// maxAppendOverlap bytes, minimum 3) is deduplicated. Spacing and sentence
// capitalization are maintained at the join point.
func (n *Normalizer) Append(accumulated, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return accumulated
	}
	if strings.TrimSpace(accumulated) == "" {
		return n.Format(text)
	}

	accumulated = strings.TrimRight(accumulated, " ")
	accLower := strings.ToLower(accumulated)
	newLower := strings.ToLower(text)

	overlap := 0
	max := min(len(accLower), min(len(newLower), maxAppendOverlap))
	for size := max; size > 2; size-- {
		if strings.HasSuffix(accLower, newLower[:size]) {
			overlap = size
			break
		}
	}

	if overlap == 0 {
		return joinSegments(accumulated, text)
	}

	rest := strings.TrimSpace(text[overlap:])
	if rest == "" {
		return accumulated
	}
	// A leftover of bare punctuation that the accumulated text already ends
	// with is noise from a re-decoded boundary.
	if len(rest) <= 2 && strings.Trim(rest, ".!?,") == "" && strings.HasSuffix(accumulated, rest) {
		return accumulated
	}
	return joinSegments(accumulated, rest)
}

// joinSegments concatenates part onto acc with a separating space unless part
// opens with punctuation, capitalizing part when acc ended a sentence.
func joinSegments(acc, part string) string {
	sep := " "
	if r, _ := firstRune(part); strings.ContainsRune(".,?!", r) {
		sep = ""
	}
	if last, ok := lastRune(acc); ok && isSentenceEnd(last) {
		part = capitalizeFirst(part)
	}
	return acc + sep + part
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// capitalizeFirst upper-cases the first letter in s, skipping any leading
// non-letter runes.
func capitalizeFirst(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			upper := unicode.ToUpper(r)
			if upper == r {
				return s
			}
			return s[:i] + string(upper) + s[i+len(string(r)):]
		}
	}
	return s
}

func firstRune(s string) (rune, bool) {
	r, size := utf8.DecodeRuneInString(s)
	return r, size > 0
}

func lastRune(s string) (rune, bool) {
	r, size := utf8.DecodeLastRuneInString(s)
	return r, size > 0
}
