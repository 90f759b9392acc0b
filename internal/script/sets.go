package script

import (
	"strings"
	"unicode/utf16"
)

// Script is one complete prompt set: ten words, three sentences and a paragraph
type Script struct {
	ID        string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Words     []string `json:"words" yaml:"words"`
	Sentences []string `json:"sentences" yaml:"sentences"`
	Paragraph string   `json:"paragraph" yaml:"paragraph"`
}

// WordsText is the prompt text stored with the single words recording
func (s *Script) WordsText() string {
	return strings.Join(s.Words, ", ")
}

// Validate checks the script has the exact shape the wizard expects
func (s *Script) Validate() error {
	if n := len(s.Words); n != WordCount {
		return &ValidationError{Message: countMessage(n, WordCount, "words")}
	}
	if n := len(s.Sentences); n != SentenceCount {
		return &ValidationError{Message: countMessage(n, SentenceCount, "sentences")}
	}
	if strings.TrimSpace(s.Paragraph) == "" {
		return &ValidationError{Message: "Paragraph is missing. 1 paragraph is required."}
	}
	return nil
}

var builtin = []Script{
	{
		ID:   "A",
		Name: "Set A",
		Words: []string{
			"apple", "book", "chair", "doctor", "elephant",
			"friend", "guitar", "hospital", "interesting", "journey",
		},
		Sentences: []string{
			"I like to read books every day.",
			"My brother plays the guitar very well.",
			"The conference discussed environmental sustainability and technological innovation.",
		},
		Paragraph: "Last weekend, I visited the art museum with my family. We saw many beautiful paintings and sculptures from different countries. The exhibition about modern art was particularly fascinating, and we spent almost two hours exploring it.",
	},
	{
		ID:   "B",
		Name: "Set B",
		Words: []string{
			"beautiful", "computer", "delicious", "education", "fantastic",
			"happiness", "important", "language", "mountain", "necessary",
		},
		Sentences: []string{
			"The weather is beautiful today.",
			"Learning a new language requires dedication and practice.",
			"International cooperation is essential for addressing global challenges such as climate change.",
		},
		Paragraph: "I have been studying English for six months now. Recently, I started watching English movies with subtitles to improve my listening skills. The natural conversations and different accents help me understand the language better.",
	},
	{
		ID:   "C",
		Name: "Set C",
		Words: []string{
			"celebrate", "daughter", "exercise", "favorite", "government",
			"information", "knowledge", "library", "neighborhood", "opportunity",
		},
		Sentences: []string{
			"We celebrate holidays with our family.",
			"The library has many interesting books to read.",
			"Cultural diversity enriches our society and promotes mutual understanding.",
		},
		Paragraph: "Last month, I traveled to New York City for the first time. I visited famous landmarks like the Statue of Liberty and Central Park. The city was full of energy, and I enjoyed trying different foods from around the world.",
	},
	{
		ID:   "D",
		Name: "Set D",
		Words: []string{
			"challenge", "comfortable", "decision", "excellent", "familiar",
			"gradually", "historical", "independent", "literature", "professional",
		},
		Sentences: []string{
			"Exercise is important for good health.",
			"I enjoy reading historical novels in my free time.",
			"The research findings demonstrated significant improvements in patient outcomes.",
		},
		Paragraph: "This weekend, I plan to visit a famous restaurant downtown. It has been featured in several cooking shows and magazines. I am excited to try their signature dish and experience the atmosphere that many celebrities have enjoyed.",
	},
	{
		ID:   "E",
		Name: "Set E",
		Words: []string{
			"achievement", "architecture", "civilization", "communicate", "development",
			"extraordinary", "imagination", "philosopher", "technology", "vocabulary",
		},
		Sentences: []string{
			"Communication skills are essential in any profession.",
			"Ancient civilizations built remarkable architectural monuments.",
			"The integration of artificial intelligence into healthcare systems presents both opportunities and ethical challenges.",
		},
		Paragraph: "My favorite music group recently released a new album featuring contemporary and classical elements. The fusion of different musical styles creates a unique sound that appeals to diverse audiences. Attending their live concert was an unforgettable experience.",
	},
}

// Sets returns copies of the built-in English sets
func Sets() []Script {
	out := make([]Script, len(builtin))
	for i, s := range builtin {
		out[i] = s.clone()
	}
	return out
}

// Default returns the first built-in set
func Default() Script {
	return builtin[0].clone()
}

// SetByID looks up a built-in set by identifier
func SetByID(id string) (Script, bool) {
	for _, s := range builtin {
		if strings.EqualFold(s.ID, id) {
			return s.clone(), true
		}
	}
	return Script{}, false
}

// AssignSet spreads participants evenly across the built-in sets. The same
// participant always gets the same set.
func AssignSet(participantID string) Script {
	return builtin[stableHash(participantID)%uint32(len(builtin))].clone()
}

// stableHash is h = h*31 + unit over the UTF-16 code units of s, mod 2^32
func stableHash(s string) uint32 {
	var h uint32
	for _, unit := range utf16.Encode([]rune(s)) {
		h = h*31 + uint32(unit)
	}
	return h
}

func (s Script) clone() Script {
	s.Words = append([]string(nil), s.Words...)
	s.Sentences = append([]string(nil), s.Sentences...)
	return s
}
