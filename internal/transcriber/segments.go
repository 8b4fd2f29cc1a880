package transcriber

import (
	"strings"
)

const (
	// defaultConfidence fills segments the provider returned without one.
	defaultConfidence = 0.95

	// wordsPerWindow groups word-level timestamps into synthesized segments.
	wordsPerWindow = 10
)

// Segment is a time-ranged span of transcript text with optional
// word-level timestamps.
type Segment struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      []Word  `json:"words,omitempty"`
}

// buildSegments reconstructs segments from a provider response, in priority
// order: native segments, word-timestamp windows, then a sentence-split
// heuristic over the raw text.
func buildSegments(resp *Response) []Segment {
	switch {
	case len(resp.Segments) > 0:
		return segmentsFromNative(resp.Segments)
	case len(resp.Words) > 0:
		return segmentsFromWords(resp.Words)
	default:
		return segmentsFromText(resp.Text, resp.Duration)
	}
}

// segmentsFromNative maps provider segments 1:1, preserving word timings.
func segmentsFromNative(raw []RawSegment) []Segment {
	out := make([]Segment, 0, len(raw))
	for i, rs := range raw {
		confidence := rs.Confidence
		if confidence == 0 {
			confidence = defaultConfidence
		}
		words := make([]Word, len(rs.Words))
		for j, w := range rs.Words {
			words[j] = normalizeWord(w)
		}
		out = append(out, Segment{
			ID:         i,
			Start:      rs.Start,
			End:        rs.End,
			Text:       strings.TrimSpace(rs.Text),
			Confidence: confidence,
			Words:      words,
		})
	}
	return out
}

// segmentsFromWords groups word timestamps into fixed-size windows and
// synthesizes segment boundaries from the first and last word's timing.
func segmentsFromWords(words []Word) []Segment {
	var out []Segment
	for start := 0; start < len(words); start += wordsPerWindow {
		end := start + wordsPerWindow
		if end > len(words) {
			end = len(words)
		}
		window := words[start:end]

		texts := make([]string, len(window))
		normalized := make([]Word, len(window))
		for i, w := range window {
			normalized[i] = normalizeWord(w)
			texts[i] = strings.TrimSpace(w.Word)
		}

		out = append(out, Segment{
			ID:         len(out),
			Start:      normalized[0].Start,
			End:        normalized[len(normalized)-1].End,
			Text:       strings.Join(texts, " "),
			Confidence: defaultConfidence,
			Words:      normalized,
		})
	}
	return out
}

// normalizeWord fills a missing word end with the word's start.
func normalizeWord(w Word) Word {
	if w.End == 0 && w.Start > 0 {
		w.End = w.Start
	}
	if w.End < w.Start {
		w.End = w.Start
	}
	return w
}

// sentenceTerminators covers Latin and CJK sentence-ending punctuation.
var sentenceTerminators = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '…': true,
}

// segmentsFromText splits the raw transcript on sentence-terminal
// punctuation and apportions the total duration proportionally to the word
// count of each sentence.
func segmentsFromText(text string, totalDuration float64) []Segment {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	counts := make([]int, len(sentences))
	totalWords := 0
	for i, s := range sentences {
		counts[i] = wordCount(s)
		totalWords += counts[i]
	}
	if totalWords == 0 {
		totalWords = len(sentences)
		for i := range counts {
			counts[i] = 1
		}
	}

	out := make([]Segment, 0, len(sentences))
	cursor := 0.0
	for i, s := range sentences {
		share := float64(counts[i]) / float64(totalWords) * totalDuration
		end := cursor + share
		if i == len(sentences)-1 {
			end = totalDuration // avoid float drift on the final boundary
		}
		out = append(out, Segment{
			ID:         i,
			Start:      cursor,
			End:        end,
			Text:       s,
			Confidence: defaultConfidence,
		})
		cursor = end
	}
	return out
}

// splitSentences breaks text at sentence terminators, keeping the
// terminator attached to its sentence.
func splitSentences(text string) []string {
	var out []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if sentenceTerminators[r] {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// wordCount counts whitespace-delimited words, falling back to rune count
// for scripts written without spaces.
func wordCount(s string) int {
	n := len(strings.Fields(s))
	if n <= 1 {
		if runes := len([]rune(strings.TrimSpace(s))); runes > n {
			// CJK text carries no spaces; runes approximate words better.
			for _, r := range s {
				if r > 0x2E7F { // CJK blocks start past the radicals
					return runes
				}
			}
		}
	}
	return n
}
