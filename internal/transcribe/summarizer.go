package transcribe

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyTranscript is returned when there is no text to summarize.
var ErrEmptyTranscript = errors.New("empty transcript")

// Compile-time check that LeadSummarizer implements Summarizer.
var _ Summarizer = (*LeadSummarizer)(nil)

// LeadSummarizer simulates an abstractive summarization model by taking
// leading sentences of the transcript up to a word budget.
type LeadSummarizer struct {
	maxWords int
}

// NewLeadSummarizer creates a LeadSummarizer.
// If maxWords is not positive it defaults to 130.
func NewLeadSummarizer(maxWords int) *LeadSummarizer {
	if maxWords <= 0 {
		maxWords = 130
	}
	return &LeadSummarizer{maxWords: maxWords}
}

// Summarize returns the leading sentences of text within the word budget.
// At least one sentence is always included.
func (s *LeadSummarizer) Summarize(_ context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}

	sentences := splitSentences(text)
	var out []string
	words := 0
	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if len(out) > 0 && words+n > s.maxWords {
			break
		}
		out = append(out, sentence)
		words += n
	}
	return strings.Join(out, " "), nil
}

// splitSentences breaks text on sentence-ending punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
