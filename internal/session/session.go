package session

import (
	"context"
	"sync"
	"time"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/bundle"
	"github.com/exphon/speech-recording-app/internal/recording"
	"github.com/exphon/speech-recording-app/internal/script"
)

// Session is one participant's pass through the wizard
type Session struct {
	ID        string
	StartTime time.Time

	lastActivity time.Time
	recorder     *recording.Recorder // replaced, with its store, on Reset
	newRecorder  func() *recording.Recorder
	metadata     recording.Metadata
	custom       *script.Script
	job          *bundle.Job

	mu sync.RWMutex
}

// Record stores a capture for a wizard item. An empty text falls back to
// the session's prompt for that item.
func (s *Session) Record(ctx context.Context, category recording.Category, ordinal int, text string, clip audio.Clip) (*recording.Artifact, error) {
	if text == "" {
		text = s.promptText(category, ordinal)
	}

	s.mu.Lock()
	s.lastActivity = time.Now()
	rec := s.recorder
	s.mu.Unlock()

	// a Reset during normalization leaves this take in the orphaned store
	return rec.Record(ctx, category, ordinal, text, clip)
}

// Store returns the session's current recordings
func (s *Session) Store() *recording.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recorder.Store()
}

// SetMetadata validates and attaches the participant record. It can be
// submitted once per session; Reset clears it.
func (s *Session) SetMetadata(m recording.Metadata) (recording.Metadata, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metadata != nil {
		return nil, recording.ErrMetadataSubmitted
	}
	s.metadata = m.WithDefaults(time.Now())
	s.lastActivity = time.Now()
	return s.metadata.Clone(), nil
}

// Metadata returns a copy of the submitted metadata, or nil
func (s *Session) Metadata() recording.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata.Clone()
}

// SetScript replaces the prompts with a custom script
func (s *Session) SetScript(sc *script.Script) error {
	if err := sc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = sc
	s.lastActivity = time.Now()
	return nil
}

// Prompts returns the custom script when one was uploaded, otherwise the
// built-in set assigned to the participant
func (s *Session) Prompts() script.Script {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.custom != nil {
		out := *s.custom
		out.Words = append([]string(nil), s.custom.Words...)
		out.Sentences = append([]string(nil), s.custom.Sentences...)
		return out
	}

	key := s.metadata.Text(recording.KeyParticipantID)
	if key == "" {
		key = s.ID
	}
	return script.AssignSet(key)
}

func (s *Session) promptText(category recording.Category, ordinal int) string {
	prompts := s.Prompts()
	switch category {
	case recording.CategoryWords:
		return prompts.WordsText()
	case recording.CategorySentence:
		if ordinal >= 0 && ordinal < len(prompts.Sentences) {
			return prompts.Sentences[ordinal]
		}
	case recording.CategoryParagraph:
		return prompts.Paragraph
	}
	return ""
}

// Archive assembles every recording and the metadata into one zip
func (s *Session) Archive(ctx context.Context) (*bundle.Archive, error) {
	s.touch()
	return s.job.Run(ctx, s.Store().Snapshot(), s.Metadata())
}

// ArchiveState returns the state of the archive job
func (s *Session) ArchiveState() bundle.State {
	return s.job.State()
}

// Reset starts over with a new empty store and no metadata; an uploaded
// script is kept
func (s *Session) Reset() {
	s.job.Reset()

	s.mu.Lock()
	s.recorder = s.newRecorder()
	s.metadata = nil
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns when the session was last used
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Info summarises the session for the API
func (s *Session) Info() Info {
	snap := s.Store().Snapshot()
	prompts := s.Prompts()

	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		ID:                s.ID,
		StartTime:         s.StartTime,
		LastActivity:      s.lastActivity,
		Duration:          time.Since(s.StartTime).Round(time.Second).String(),
		ParticipantID:     s.metadata.Text(recording.KeyParticipantID),
		MetadataSubmitted: s.metadata != nil,
		ScriptID:          prompts.ID,
		CustomScript:      s.custom != nil,
		Recordings:        snap.Len(),
		Words:             snap.Words != nil,
		Sentences:         make([]int, 0, len(snap.Sentences)),
		Paragraph:         snap.Paragraph != nil,
		ArchiveState:      string(s.job.State()),
	}
	for _, a := range snap.Sentences {
		info.Sentences = append(info.Sentences, a.Ordinal)
	}
	if err := s.job.Err(); err != nil {
		info.ArchiveError = err.Error()
	}
	return info
}

// Info is the JSON view of a session
type Info struct {
	ID                string    `json:"id"`
	StartTime         time.Time `json:"start_time"`
	LastActivity      time.Time `json:"last_activity"`
	Duration          string    `json:"duration"`
	ParticipantID     string    `json:"participant_id,omitempty"`
	MetadataSubmitted bool      `json:"metadata_submitted"`
	ScriptID          string    `json:"script_id,omitempty"`
	CustomScript      bool      `json:"custom_script"`

	Recordings int   `json:"recordings"`
	Words      bool  `json:"words"`
	Sentences  []int `json:"sentences"`
	Paragraph  bool  `json:"paragraph"`

	ArchiveState string `json:"archive_state"`
	ArchiveError string `json:"archive_error,omitempty"`
}
