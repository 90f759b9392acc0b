package bundle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/recording"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var fixedTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestAssembler(t *testing.T, config Config) *Assembler {
	t.Helper()
	a, err := NewAssembler(config, testLogger())
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	a.now = func() time.Time { return fixedTime }
	return a
}

func wavOf(t *testing.T, samples ...int16) []byte {
	t.Helper()
	data, err := audio.EncodeWAV(samples, 48000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	return data
}

func sampleStore(t *testing.T) *recording.Store {
	store := recording.NewStore()
	store.Put(&recording.Artifact{
		Category: recording.CategoryWords,
		Audio:    wavOf(t, 1, 2, 3),
		Text:     "apple, book",
		Filename: "words_all.wav",
	})
	store.Put(&recording.Artifact{
		Category: recording.CategorySentence,
		Ordinal:  1,
		Audio:    wavOf(t, 7, 8),
		Text:     "Second sentence.",
		Filename: "sentence_02.wav",
	})
	store.Put(&recording.Artifact{
		Category: recording.CategorySentence,
		Ordinal:  0,
		Audio:    wavOf(t, 4, 5, 6),
		Text:     "First sentence.",
		Filename: "sentence_01.wav",
	})
	store.Put(&recording.Artifact{
		Category: recording.CategoryParagraph,
		Audio:    wavOf(t, -1, -2),
		Text:     "A paragraph.",
		Filename: "paragraph.wav",
	})
	return store
}

func readArchive(t *testing.T, data []byte) (map[string][]byte, []*zip.File) {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Archive is not a valid zip: %v", err)
	}

	files := make(map[string][]byte)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("Failed to read %s: %v", f.Name, err)
		}
		files[f.Name] = content
	}
	return files, r.File
}

func TestAssembleRoundTrip(t *testing.T) {
	for _, compression := range []string{CompressionDeflate, CompressionStore} {
		t.Run(compression, func(t *testing.T) {
			store := sampleStore(t)
			a := newTestAssembler(t, Config{Compression: compression})
			meta := recording.Metadata{"participant_id": "P_123456", "assessment_language": "en"}

			archive, err := a.Assemble(context.Background(), store.Snapshot(), meta)
			if err != nil {
				t.Fatalf("Assemble failed: %v", err)
			}
			if archive.Name != "recordings_20250102030405.zip" {
				t.Errorf("Unexpected archive name %s", archive.Name)
			}

			files, all := readArchive(t, archive.Data)

			snap := store.Snapshot()
			want := map[string][]byte{
				"recordings/words/words_all.wav":       snap.Words.Audio,
				"recordings/words/words_all.txt":       []byte("apple, book"),
				"recordings/sentences/sentence_01.wav": snap.Sentences[0].Audio,
				"recordings/sentences/sentence_01.txt": []byte("First sentence."),
				"recordings/sentences/sentence_02.wav": snap.Sentences[1].Audio,
				"recordings/sentences/sentence_02.txt": []byte("Second sentence."),
				"recordings/paragraph/paragraph.wav":   snap.Paragraph.Audio,
				"recordings/paragraph/paragraph.txt":   []byte("A paragraph."),
			}
			for name, content := range want {
				got, ok := files[name]
				if !ok {
					t.Errorf("Missing entry %s", name)
					continue
				}
				if !bytes.Equal(got, content) {
					t.Errorf("Entry %s differs", name)
				}
			}

			metaJSON, ok := files["recordings/metadata.json"]
			if !ok {
				t.Fatal("Missing metadata.json")
			}
			wantMeta, _ := meta.MarshalIndented()
			if !bytes.Equal(metaJSON, wantMeta) {
				t.Errorf("Unexpected metadata.json:\n%s", metaJSON)
			}

			if len(files) != len(want)+1 {
				t.Errorf("Expected %d files, got %d", len(want)+1, len(files))
			}

			for _, f := range all {
				if !f.Modified.Equal(fixedTime) {
					t.Errorf("Entry %s stamped %v, want %v", f.Name, f.Modified, fixedTime)
				}
			}

			// directories precede their files, sentences ascend
			if all[0].Name != "recordings/" {
				t.Errorf("First entry is %s", all[0].Name)
			}
			if archive.Entries[len(archive.Entries)-1] != "recordings/paragraph/paragraph.txt" {
				t.Errorf("Unexpected last entry %s", archive.Entries[len(archive.Entries)-1])
			}
		})
	}
}

func TestAssembleWithoutMetadataAndPartialStore(t *testing.T) {
	store := recording.NewStore()
	store.Put(&recording.Artifact{
		Category:  recording.CategorySentence,
		Ordinal:   2,
		Audio:     []byte("webm-bytes"),
		MediaType: "audio/webm",
		Text:      "Third.",
		Filename:  "sentence_03.webm",
		Fallback:  true,
	})

	a := newTestAssembler(t, Config{RootFolder: "/export/", Level: 9})
	archive, err := a.Assemble(context.Background(), store.Snapshot(), nil)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	files, all := readArchive(t, archive.Data)
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %d: %v", len(files), archive.Entries)
	}
	if string(files["export/sentences/sentence_03.webm"]) != "webm-bytes" {
		t.Error("Fallback audio must be archived unchanged")
	}
	if _, ok := files["export/metadata.json"]; ok {
		t.Error("metadata.json must be omitted without metadata")
	}
	for _, f := range all {
		if f.Name == "export/words/" || f.Name == "export/paragraph/" {
			t.Errorf("Unexpected empty folder %s", f.Name)
		}
	}
}

func TestAssembleEmptyStore(t *testing.T) {
	a := newTestAssembler(t, Config{})

	archive, err := a.Assemble(context.Background(), recording.NewStore().Snapshot(), recording.Metadata{"x": "y"})
	if !errors.Is(err, ErrNothingToArchive) {
		t.Fatalf("Expected ErrNothingToArchive, got %v", err)
	}
	if archive != nil {
		t.Error("No archive expected for an empty store")
	}
}

type failingWriter struct {
	limit int
	n     int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.limit {
		return 0, errors.New("disk full")
	}
	w.n += len(p)
	return len(p), nil
}

func TestAssembleWriterFailure(t *testing.T) {
	a := newTestAssembler(t, Config{Compression: CompressionStore})

	entries, err := a.write(context.Background(), &failingWriter{limit: 64}, sampleStore(t).Snapshot(), nil, time.Now())
	if entries != nil {
		t.Error("A failed assembly must not report entries")
	}
	var aerr *AssemblyError
	if !errors.As(err, &aerr) {
		t.Fatalf("Expected AssemblyError, got %v", err)
	}
}

func TestAssembleCancelled(t *testing.T) {
	a := newTestAssembler(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Assemble(ctx, sampleStore(t).Snapshot(), nil)
	var aerr *AssemblyError
	if !errors.As(err, &aerr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected AssemblyError wrapping context.Canceled, got %v", err)
	}
}

func TestNewAssemblerValidation(t *testing.T) {
	tests := []Config{
		{Compression: "bzip2"},
		{Level: 12},
		{RootFolder: "../escape"},
	}
	for _, config := range tests {
		if _, err := NewAssembler(config, testLogger()); err == nil {
			t.Errorf("Expected error for %+v", config)
		}
	}
}

func TestArchiveName(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	got := ArchiveName(time.Date(2025, 6, 1, 8, 30, 15, 999, kst))
	if got != "recordings_20250531233015.zip" {
		t.Errorf("ArchiveName = %s", got)
	}
}

type recordingObserver struct {
	outcomes []string
}

func (o *recordingObserver) RecordArchive(outcome string, _ int, _ float64) {
	o.outcomes = append(o.outcomes, outcome)
}

func TestAssemblerObserver(t *testing.T) {
	a := newTestAssembler(t, Config{})
	obs := &recordingObserver{}
	a.SetObserver(obs)

	a.Assemble(context.Background(), recording.NewStore().Snapshot(), nil)
	a.Assemble(context.Background(), sampleStore(t).Snapshot(), nil)

	if len(obs.outcomes) != 2 || obs.outcomes[0] != "empty" || obs.outcomes[1] != "success" {
		t.Errorf("Unexpected outcomes %v", obs.outcomes)
	}
}
