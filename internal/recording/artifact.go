package recording

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/exphon/speech-recording-app/internal/vad"
)

// Category identifies which wizard step produced an artifact
type Category int

const (
	CategoryWords Category = iota
	CategorySentence
	CategoryParagraph
)

// String returns the wire name of the category
func (c Category) String() string {
	switch c {
	case CategoryWords:
		return "words"
	case CategorySentence:
		return "sentence"
	case CategoryParagraph:
		return "paragraph"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory maps a wire name to a Category
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "words", "word":
		return CategoryWords, nil
	case "sentence", "sentences":
		return CategorySentence, nil
	case "paragraph":
		return CategoryParagraph, nil
	default:
		return 0, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown recording category %q", s)}
	}
}

// Artifact is one recorded item with the prompt that was read aloud
type Artifact struct {
	Category   Category
	Ordinal    int // sentence position, 0-based; zero for other categories
	Audio      []byte
	MediaType  string
	Text       string
	Filename   string
	Fallback   bool // audio kept in its original encoding
	RecordedAt time.Time
	Activity   *vad.Summary // nil when not analysed
}

// AudioFilename derives the audio file name for a category, ordinal and extension
func AudioFilename(category Category, ordinal int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	switch category {
	case CategoryWords:
		return "words_all." + ext
	case CategorySentence:
		return fmt.Sprintf("sentence_%02d.%s", ordinal+1, ext)
	default:
		return "paragraph." + ext
	}
}

// TextFilename returns the companion prompt file name. It shares the audio
// stem, except for words, whose companion is always words_all.txt.
func (a *Artifact) TextFilename() string {
	if a.Category == CategoryWords {
		return "words_all.txt"
	}
	return strings.TrimSuffix(a.Filename, path.Ext(a.Filename)) + ".txt"
}

// Key identifies the store slot an artifact occupies
func (a *Artifact) Key() string {
	if a.Category == CategorySentence {
		return fmt.Sprintf("%s/%d", a.Category, a.Ordinal)
	}
	return a.Category.String()
}

// ArtifactInfo is the JSON summary of an artifact
type ArtifactInfo struct {
	Category     string       `json:"category"`
	Ordinal      *int         `json:"ordinal,omitempty"`
	Filename     string       `json:"filename"`
	TextFilename string       `json:"text_filename"`
	MediaType    string       `json:"media_type"`
	SizeBytes    int          `json:"size_bytes"`
	Text         string       `json:"text"`
	Fallback     bool         `json:"fallback"`
	RecordedAt   time.Time    `json:"recorded_at"`
	Activity     *vad.Summary `json:"activity,omitempty"`
}

// Info summarises the artifact without its audio
func (a *Artifact) Info() ArtifactInfo {
	info := ArtifactInfo{
		Category:     a.Category.String(),
		Filename:     a.Filename,
		TextFilename: a.TextFilename(),
		MediaType:    a.MediaType,
		SizeBytes:    len(a.Audio),
		Text:         a.Text,
		Fallback:     a.Fallback,
		RecordedAt:   a.RecordedAt,
		Activity:     a.Activity,
	}
	if a.Category == CategorySentence {
		ordinal := a.Ordinal
		info.Ordinal = &ordinal
	}
	return info
}
