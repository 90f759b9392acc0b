package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/vad"
)

// Normalizer converts a capture into canonical audio or a fallback
type Normalizer interface {
	Normalize(ctx context.Context, clip audio.Clip) audio.Result
}

// Analyzer summarises voice activity in canonical PCM
type Analyzer interface {
	Analyze(samples []int16, sampleRate, channels int) (vad.Summary, error)
}

// Capturer is the external capture capability: it blocks until the
// participant stops recording and yields the complete buffer.
type Capturer interface {
	Capture(ctx context.Context) (audio.Clip, error)
}

// Recorder normalizes finished captures and files them into a store
type Recorder struct {
	normalizer Normalizer
	analyzer   Analyzer
	store      *Store
	logger     *slog.Logger
	now        func() time.Time

	// one lock per store slot so re-recordings of the same item serialize
	keyLocks map[string]*sync.Mutex
	mu       sync.Mutex
}

// NewRecorder creates a recorder writing into store
func NewRecorder(normalizer Normalizer, store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		normalizer: normalizer,
		store:      store,
		logger:     logger,
		now:        time.Now,
		keyLocks:   make(map[string]*sync.Mutex),
	}
}

// SetAnalyzer enables voice activity analysis of converted recordings
func (r *Recorder) SetAnalyzer(a Analyzer) {
	r.analyzer = a
}

// Store returns the store the recorder writes into
func (r *Recorder) Store() *Store {
	return r.store
}

// Record normalizes clip and stores it as the artifact for category and
// ordinal, replacing any earlier take. Conversion problems never fail the
// call; the original capture is kept instead.
func (r *Recorder) Record(ctx context.Context, category Category, ordinal int, text string, clip audio.Clip) (*Artifact, error) {
	switch category {
	case CategoryWords, CategoryParagraph:
		ordinal = 0
	case CategorySentence:
		if ordinal < 0 {
			return nil, &ValidationError{Field: "ordinal", Message: fmt.Sprintf("sentence ordinal must be non-negative, got %d", ordinal)}
		}
	default:
		return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("unknown recording category %d", int(category))}
	}

	if len(clip.Data) == 0 {
		return nil, &ValidationError{Field: "audio", Message: "capture is empty"}
	}

	artifact := &Artifact{Category: category, Ordinal: ordinal, Text: text}

	unlock := r.lockKey(artifact.Key())
	defer unlock()

	result := r.normalizer.Normalize(ctx, clip)

	artifact.Audio = result.Data
	artifact.MediaType = result.MediaType
	artifact.Fallback = result.Fallback()
	artifact.Filename = AudioFilename(category, ordinal, result.Extension)
	artifact.RecordedAt = r.now()
	if r.analyzer != nil && !artifact.Fallback {
		r.analyze(artifact)
	}

	replaced := r.store.Put(artifact)

	r.logger.Info("Recording stored",
		slog.String("category", category.String()),
		slog.Int("ordinal", ordinal),
		slog.String("filename", artifact.Filename),
		slog.String("outcome", string(result.Outcome)),
		slog.Int("size_bytes", len(artifact.Audio)),
		slog.Bool("replaced", replaced),
	)

	return artifact, nil
}

// analyze attaches the activity summary; analysis problems are logged only
func (r *Recorder) analyze(a *Artifact) {
	samples, info, err := audio.DecodeWAV(a.Audio)
	if err != nil {
		r.logger.Warn("Skipping voice activity analysis",
			slog.String("filename", a.Filename),
			slog.String("error", err.Error()),
		)
		return
	}

	summary, err := r.analyzer.Analyze(samples, int(info.SampleRate), int(info.Channels))
	if err != nil {
		r.logger.Warn("Voice activity analysis failed",
			slog.String("filename", a.Filename),
			slog.String("error", err.Error()),
		)
		return
	}
	a.Activity = &summary

	if !summary.HasSpeech() {
		r.logger.Warn("No speech detected in recording",
			slog.String("filename", a.Filename),
			slog.Float64("peak_level", float64(summary.PeakLevel)),
		)
	}
}

// RecordFrom captures one clip from capturer and records it
func (r *Recorder) RecordFrom(ctx context.Context, capturer Capturer, category Category, ordinal int, text string) (*Artifact, error) {
	clip, err := capturer.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture failed: %w", err)
	}
	return r.Record(ctx, category, ordinal, text, clip)
}

func (r *Recorder) lockKey(key string) func() {
	r.mu.Lock()
	l, ok := r.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		r.keyLocks[key] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
