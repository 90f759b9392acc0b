package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/bundle"
	"github.com/exphon/speech-recording-app/internal/recording"
	"github.com/exphon/speech-recording-app/internal/script"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type passthrough struct{}

func (passthrough) Normalize(_ context.Context, clip audio.Clip) audio.Result {
	return audio.Result{Data: clip.Data, MediaType: audio.CanonicalMediaType, Extension: "wav", Outcome: audio.OutcomeIdentity}
}

func newTestManager(t *testing.T, config ManagerConfig) *Manager {
	t.Helper()
	assembler, err := bundle.NewAssembler(bundle.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	mgr := NewManager(testLogger(), config, passthrough{}, assembler)
	t.Cleanup(mgr.Stop)
	return mgr
}

type countObserver struct {
	mu   sync.Mutex
	last int
}

func (o *countObserver) SetActiveSessions(n int) {
	o.mu.Lock()
	o.last = n
	o.mu.Unlock()
}

func TestManagerLifecycle(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{Timeout: time.Minute})
	obs := &countObserver{}
	mgr.SetObserver(obs)

	s1, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s2, _ := mgr.Create()
	if s1.ID == s2.ID {
		t.Fatal("Session IDs must be unique")
	}
	if mgr.Count() != 2 || obs.last != 2 {
		t.Errorf("Expected 2 sessions, got %d (observer %d)", mgr.Count(), obs.last)
	}

	got, err := mgr.Get(s1.ID)
	if err != nil || got != s1 {
		t.Errorf("Get returned %v, %v", got, err)
	}

	list := mgr.List()
	if len(list) != 2 || list[0] != s1 {
		t.Error("List must return sessions oldest first")
	}

	if !mgr.Remove(s1.ID) {
		t.Error("Remove must report an existing session")
	}
	if mgr.Remove(s1.ID) {
		t.Error("Second Remove must report false")
	}
	if _, err := mgr.Get(s1.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if obs.last != 1 {
		t.Errorf("Observer saw %d sessions, want 1", obs.last)
	}
}

func TestManagerMaxSessions(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{MaxSessions: 1})

	if _, err := mgr.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := mgr.Create(); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("Expected ErrTooManySessions, got %v", err)
	}
}

func TestManagerExpiresIdleSessions(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{Timeout: time.Minute})

	idle, _ := mgr.Create()
	active, _ := mgr.Create()

	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-2 * time.Minute)
	idle.mu.Unlock()

	if n := mgr.cleanupExpiredSessions(time.Now()); n != 1 {
		t.Fatalf("Expected 1 expired session, got %d", n)
	}
	if _, err := mgr.Get(idle.ID); err == nil {
		t.Error("Idle session must be removed")
	}
	if _, err := mgr.Get(active.ID); err != nil {
		t.Error("Active session must be kept")
	}
}

func TestManagerCleanupRoutine(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{Timeout: time.Millisecond, CleanupInterval: 5 * time.Millisecond})
	if _, err := mgr.Create(); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mgr.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mgr.Count() != 0 {
		t.Error("Cleanup routine did not expire the session")
	}
}

func clip(data string) audio.Clip {
	return audio.Clip{Data: []byte(data), MediaType: "audio/wav"}
}

func TestSessionRecordDefaultsPromptText(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{})
	s, _ := mgr.Create()
	ctx := context.Background()

	prompts := s.Prompts()

	words, err := s.Record(ctx, recording.CategoryWords, 0, "", clip("w"))
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if words.Text != prompts.WordsText() {
		t.Errorf("Words text = %q, want %q", words.Text, prompts.WordsText())
	}

	sentence, _ := s.Record(ctx, recording.CategorySentence, 2, "", clip("s"))
	if sentence.Text != prompts.Sentences[2] {
		t.Errorf("Sentence text = %q", sentence.Text)
	}

	explicit, _ := s.Record(ctx, recording.CategoryParagraph, 0, "spoken text", clip("p"))
	if explicit.Text != "spoken text" {
		t.Errorf("Explicit text must win, got %q", explicit.Text)
	}

	extra, _ := s.Record(ctx, recording.CategorySentence, 7, "", clip("s"))
	if extra.Text != "" {
		t.Errorf("Out-of-range sentence has no prompt, got %q", extra.Text)
	}
}

func TestSessionMetadataOnce(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{})
	s, _ := mgr.Create()

	if _, err := s.SetMetadata(recording.Metadata{"assessment_language": "de"}); err == nil {
		t.Fatal("Invalid metadata must be rejected")
	}

	stored, err := s.SetMetadata(recording.Metadata{"participant_id": "P_123456", "assessment_language": "en"})
	if err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	if stored.Text(recording.KeyCreatedAt) == "" {
		t.Error("created_at must be filled in")
	}

	if _, err := s.SetMetadata(recording.Metadata{"participant_id": "P_999999"}); !errors.Is(err, recording.ErrMetadataSubmitted) {
		t.Errorf("Expected ErrMetadataSubmitted, got %v", err)
	}

	// participant P_123456 is assigned set C
	if id := s.Prompts().ID; id != "C" {
		t.Errorf("Expected set C, got %s", id)
	}
}

func TestSessionScriptAndReset(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{})
	s, _ := mgr.Create()
	ctx := context.Background()

	custom := script.Default()
	custom.ID = ""
	custom.Words[0] = "kimchi"
	if err := s.SetScript(&custom); err != nil {
		t.Fatalf("SetScript failed: %v", err)
	}
	if s.Prompts().Words[0] != "kimchi" {
		t.Error("Custom script must be used for prompts")
	}

	if err := s.SetScript(&script.Script{Words: []string{"one"}}); err == nil {
		t.Error("Incomplete script must be rejected")
	}

	s.SetMetadata(recording.Metadata{"participant_id": "P_100000"})
	s.Record(ctx, recording.CategoryWords, 0, "", clip("w"))

	if err := mgr.Reset(s.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if !s.Store().IsEmpty() || s.Metadata() != nil {
		t.Error("Reset must clear recordings and metadata")
	}
	if s.Prompts().Words[0] != "kimchi" {
		t.Error("Reset must keep the custom script")
	}
	if err := mgr.Reset("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionArchive(t *testing.T) {
	mgr := newTestManager(t, ManagerConfig{})
	s, _ := mgr.Create()
	ctx := context.Background()

	if _, err := s.Archive(ctx); !errors.Is(err, bundle.ErrNothingToArchive) {
		t.Fatalf("Expected ErrNothingToArchive, got %v", err)
	}
	if info := s.Info(); info.ArchiveState != string(bundle.StateFailed) || info.ArchiveError == "" {
		t.Errorf("Unexpected info after failed archive: %+v", info)
	}

	s.Record(ctx, recording.CategorySentence, 0, "", clip("a"))
	s.Record(ctx, recording.CategorySentence, 0, "", clip("b"))
	s.Record(ctx, recording.CategorySentence, 1, "", clip("c"))

	archive, err := s.Archive(ctx)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if len(archive.Entries) != 6 {
		t.Errorf("Expected 6 entries (2 folders, 2 audio, 2 text), got %v", archive.Entries)
	}

	info := s.Info()
	if info.Recordings != 2 || len(info.Sentences) != 2 || info.Words || info.ArchiveState != string(bundle.StateSuccess) {
		t.Errorf("Unexpected info: %+v", info)
	}
}

// gatedNormalizer blocks every capture until release is closed
type gatedNormalizer struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedNormalizer) Normalize(_ context.Context, clip audio.Clip) audio.Result {
	close(g.started)
	<-g.release
	return passthrough{}.Normalize(context.Background(), clip)
}

func TestSessionResetDiscardsInFlightRecording(t *testing.T) {
	assembler, err := bundle.NewAssembler(bundle.Config{}, testLogger())
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	gate := &gatedNormalizer{started: make(chan struct{}), release: make(chan struct{})}
	mgr := NewManager(testLogger(), ManagerConfig{}, gate, assembler)
	t.Cleanup(mgr.Stop)

	s, _ := mgr.Create()
	before := s.Store()

	done := make(chan error, 1)
	go func() {
		_, err := s.Record(context.Background(), recording.CategoryParagraph, 0, "old run", clip("p"))
		done <- err
	}()

	<-gate.started
	s.Reset()
	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if s.Store() == before {
		t.Error("Reset must replace the store")
	}
	if !s.Store().IsEmpty() {
		t.Errorf("After Reset the store holds %d artifact(s) from the discarded run", s.Store().Len())
	}
	if _, err := s.Archive(context.Background()); !errors.Is(err, bundle.ErrNothingToArchive) {
		t.Errorf("Discarded take must not reach the archive, got %v", err)
	}
}
