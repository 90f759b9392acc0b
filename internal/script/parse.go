package script

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Required prompt counts for a script
const (
	WordCount     = 10
	SentenceCount = 3
)

// ValidationError reports a script that does not have the required shape
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type section int

const (
	sectionWords section = iota
	sectionSentences
	sectionParagraph
)

// Parse reads a custom script. Lines are trimmed and blank lines dropped.
// A line starting with '#' switches section when it names words, sentences
// or paragraph and is otherwise ignored. Lines before any header are words.
// Extra words and sentences beyond the required counts are discarded;
// paragraph lines are joined with a single space.
func Parse(data []byte) (*Script, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("script is not valid text: %v", err)}
	}

	s := &Script{Name: "Custom"}
	current := sectionWords
	var paragraph []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			lower := strings.ToLower(line)
			switch {
			case strings.Contains(lower, "word"):
				current = sectionWords
			case strings.Contains(lower, "sentence"):
				current = sectionSentences
			case strings.Contains(lower, "paragraph"):
				current = sectionParagraph
			}
			continue
		}

		switch current {
		case sectionWords:
			if len(s.Words) < WordCount {
				s.Words = append(s.Words, line)
			}
		case sectionSentences:
			if len(s.Sentences) < SentenceCount {
				s.Sentences = append(s.Sentences, line)
			}
		case sectionParagraph:
			paragraph = append(paragraph, line)
		}
	}
	s.Paragraph = strings.Join(paragraph, " ")

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeText honours a UTF-8 or UTF-16 byte order mark, defaults to UTF-8
// and composes the result to NFC so Hangul prompts compare consistently.
func decodeText(data []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	text, _, err := transform.String(decoder, string(data))
	if err != nil {
		return "", err
	}
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return norm.NFC.String(text), nil
}

func countMessage(found, want int, noun string) string {
	return fmt.Sprintf("Found %d %s. Exactly %d %s are required.", found, noun, want, noun)
}
