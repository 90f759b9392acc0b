package recording

import (
	"sort"
	"sync"
)

// Store is the session-scoped set of recordings. Words and paragraph are
// single slots; sentences are keyed by ordinal. Every Put replaces the
// previous artifact for its key.
type Store struct {
	words     *Artifact
	sentences map[int]*Artifact
	paragraph *Artifact

	mu sync.RWMutex
}

// Snapshot is an immutable view of a store, with sentences in ascending ordinal order
type Snapshot struct {
	Words     *Artifact
	Sentences []*Artifact
	Paragraph *Artifact
}

// IsEmpty reports whether the snapshot holds no artifact at all
func (s Snapshot) IsEmpty() bool {
	return s.Words == nil && len(s.Sentences) == 0 && s.Paragraph == nil
}

// Len returns the number of artifacts in the snapshot
func (s Snapshot) Len() int {
	n := len(s.Sentences)
	if s.Words != nil {
		n++
	}
	if s.Paragraph != nil {
		n++
	}
	return n
}

// All returns the artifacts in archive order: words, sentences, paragraph
func (s Snapshot) All() []*Artifact {
	out := make([]*Artifact, 0, s.Len())
	if s.Words != nil {
		out = append(out, s.Words)
	}
	out = append(out, s.Sentences...)
	if s.Paragraph != nil {
		out = append(out, s.Paragraph)
	}
	return out
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{sentences: make(map[int]*Artifact)}
}

// Put stores an artifact, replacing whatever occupied its slot.
// It reports whether an earlier artifact was replaced.
func (s *Store) Put(a *Artifact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var replaced bool
	switch a.Category {
	case CategoryWords:
		replaced = s.words != nil
		s.words = a
	case CategorySentence:
		_, replaced = s.sentences[a.Ordinal]
		s.sentences[a.Ordinal] = a
	case CategoryParagraph:
		replaced = s.paragraph != nil
		s.paragraph = a
	}
	return replaced
}

// Get returns the artifact for a category and, for sentences, an ordinal
func (s *Store) Get(category Category, ordinal int) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a *Artifact
	switch category {
	case CategoryWords:
		a = s.words
	case CategorySentence:
		a = s.sentences[ordinal]
	case CategoryParagraph:
		a = s.paragraph
	}
	return a, a != nil
}

// Words returns the words artifact, if recorded
func (s *Store) Words() (*Artifact, bool) {
	return s.Get(CategoryWords, 0)
}

// Sentence returns the sentence artifact at ordinal, if recorded
func (s *Store) Sentence(ordinal int) (*Artifact, bool) {
	return s.Get(CategorySentence, ordinal)
}

// Paragraph returns the paragraph artifact, if recorded
func (s *Store) Paragraph() (*Artifact, bool) {
	return s.Get(CategoryParagraph, 0)
}

// Sentences returns sentence artifacts in ascending ordinal order
func (s *Store) Sentences() []*Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedSentences()
}

func (s *Store) sortedSentences() []*Artifact {
	out := make([]*Artifact, 0, len(s.sentences))
	for _, a := range s.sentences {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

// Snapshot captures the current contents in one consistent read
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Words:     s.words,
		Sentences: s.sortedSentences(),
		Paragraph: s.paragraph,
	}
}

// IsEmpty reports whether nothing has been recorded
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Len returns the number of stored artifacts
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.sentences)
	if s.words != nil {
		n++
	}
	if s.paragraph != nil {
		n++
	}
	return n
}

// Reset discards every artifact
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.words = nil
	s.sentences = make(map[int]*Artifact)
	s.paragraph = nil
}
