package download

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDirSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	saver := NewDirSaver(dir)

	path, err := saver.Save(context.Background(), []byte("first"), "sentence_01.wav")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "sentence_01.wav") {
		t.Errorf("Unexpected path %s", path)
	}

	// same name replaces the earlier file
	if _, err := saver.Save(context.Background(), []byte("second"), "sentence_01.wav"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "second" {
		t.Errorf("Unexpected content %q: %v", data, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestDirSaverStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	path, err := NewDirSaver(dir).Save(context.Background(), []byte("x"), "../../etc/paragraph.txt")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "paragraph.txt") {
		t.Errorf("Expected file inside output dir, got %s", path)
	}
}

func TestDirSaverErrors(t *testing.T) {
	saver := NewDirSaver(t.TempDir())

	for _, name := range []string{"", "..", "/", " "} {
		if _, err := saver.Save(context.Background(), nil, name); err == nil {
			t.Errorf("Expected error for %q", name)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := saver.Save(ctx, []byte("x"), "a.wav"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestWriteAttachment(t *testing.T) {
	rec := httptest.NewRecorder()

	if err := WriteAttachment(rec, []byte("RIFF"), "words_all.wav", "audio/wav"); err != nil {
		t.Fatalf("WriteAttachment failed: %v", err)
	}

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename=words_all.wav` {
		t.Errorf("Unexpected Content-Disposition %q", got)
	}
	if rec.Header().Get("Content-Type") != "audio/wav" || rec.Header().Get("Content-Length") != "4" {
		t.Errorf("Unexpected headers %v", rec.Header())
	}
	if rec.Body.String() != "RIFF" {
		t.Errorf("Unexpected body %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	WriteAttachment(rec, []byte("x"), "notes.txt", "")
	if rec.Header().Get("Content-Type") != "application/octet-stream" {
		t.Errorf("Expected default content type, got %s", rec.Header().Get("Content-Type"))
	}
}
