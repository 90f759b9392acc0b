package bundle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/exphon/speech-recording-app/internal/recording"
)

// Compression methods accepted by Config.Compression
const (
	CompressionDeflate = "deflate"
	CompressionStore   = "store"
)

// Config controls the archive layout and compression
type Config struct {
	RootFolder  string // default "recordings"
	Compression string // "deflate" or "store"
	Level       int    // deflate level 1-9, zero means default
}

// Observer receives assembly events; *metrics.Metrics implements it
type Observer interface {
	RecordArchive(outcome string, sizeBytes int, durationSeconds float64)
}

type nopObserver struct{}

func (nopObserver) RecordArchive(string, int, float64) {}

// Archive is a finished bundle
type Archive struct {
	Name      string
	Data      []byte
	Entries   []string
	CreatedAt time.Time
}

// Size returns the archive length in bytes
func (a *Archive) Size() int {
	return len(a.Data)
}

// Assembler lays out recordings and metadata into a zip archive
type Assembler struct {
	root     string
	method   uint16
	level    int
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewAssembler creates an assembler from config
func NewAssembler(config Config, logger *slog.Logger) (*Assembler, error) {
	root := strings.Trim(config.RootFolder, "/")
	if root == "" {
		root = "recordings"
	}
	if strings.Contains(root, "..") {
		return nil, fmt.Errorf("invalid archive root folder %q", config.RootFolder)
	}

	a := &Assembler{
		root:     root,
		level:    config.Level,
		logger:   logger,
		observer: nopObserver{},
		now:      time.Now,
	}

	switch strings.ToLower(config.Compression) {
	case "", CompressionDeflate:
		a.method = zip.Deflate
	case CompressionStore:
		a.method = zip.Store
	default:
		return nil, fmt.Errorf("unknown archive compression %q", config.Compression)
	}

	if a.level == 0 {
		a.level = flate.DefaultCompression
	} else if a.level < flate.BestSpeed || a.level > flate.BestCompression {
		return nil, fmt.Errorf("archive compression level must be between %d and %d, got %d",
			flate.BestSpeed, flate.BestCompression, a.level)
	}

	return a, nil
}

// SetObserver installs an event observer
func (a *Assembler) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	a.observer = o
}

// ArchiveName returns recordings_YYYYMMDDHHMMSS.zip for t in UTC
func ArchiveName(t time.Time) string {
	return "recordings_" + t.UTC().Format("20060102150405") + ".zip"
}

// Assemble builds the archive in memory
func (a *Assembler) Assemble(ctx context.Context, snap recording.Snapshot, metadata recording.Metadata) (*Archive, error) {
	start := time.Now()

	var buf bytes.Buffer
	created := a.now()
	entries, err := a.write(ctx, &buf, snap, metadata, created)
	if err != nil {
		a.observer.RecordArchive(outcomeOf(err), 0, time.Since(start).Seconds())
		return nil, err
	}

	archive := &Archive{
		Name:      ArchiveName(created),
		Data:      buf.Bytes(),
		Entries:   entries,
		CreatedAt: created,
	}

	a.observer.RecordArchive("success", archive.Size(), time.Since(start).Seconds())
	a.logger.Info("Archive assembled",
		slog.String("name", archive.Name),
		slog.Int("entries", len(entries)),
		slog.Int("size_bytes", archive.Size()),
		slog.Duration("took", time.Since(start)),
	)

	return archive, nil
}

func outcomeOf(err error) string {
	if errors.Is(err, ErrNothingToArchive) {
		return "empty"
	}
	return "failed"
}

func (a *Assembler) write(ctx context.Context, w io.Writer, snap recording.Snapshot, metadata recording.Metadata, modified time.Time) ([]string, error) {
	if snap.IsEmpty() {
		return nil, ErrNothingToArchive
	}

	zw := zip.NewWriter(w)
	level := a.level
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	ew := &entryWriter{zw: zw, method: a.method, modified: modified}

	if err := ew.dir(a.root + "/"); err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		data, err := metadata.MarshalIndented()
		if err != nil {
			return nil, &AssemblyError{Entry: "metadata.json", Err: err}
		}
		if err := ew.file(path.Join(a.root, "metadata.json"), data); err != nil {
			return nil, err
		}
	}

	groups := []struct {
		folder    string
		artifacts []*recording.Artifact
	}{
		{"words", single(snap.Words)},
		{"sentences", snap.Sentences},
		{"paragraph", single(snap.Paragraph)},
	}

	for _, g := range groups {
		if len(g.artifacts) == 0 {
			continue
		}
		folder := path.Join(a.root, g.folder)
		if err := ew.dir(folder + "/"); err != nil {
			return nil, err
		}
		for _, artifact := range g.artifacts {
			if err := ctx.Err(); err != nil {
				return nil, &AssemblyError{Entry: folder, Err: err}
			}
			if err := ew.file(path.Join(folder, artifact.Filename), artifact.Audio); err != nil {
				return nil, err
			}
			if err := ew.file(path.Join(folder, artifact.TextFilename()), []byte(artifact.Text)); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &AssemblyError{Err: err}
	}
	return ew.entries, nil
}

func single(a *recording.Artifact) []*recording.Artifact {
	if a == nil {
		return nil
	}
	return []*recording.Artifact{a}
}

type entryWriter struct {
	zw       *zip.Writer
	method   uint16
	modified time.Time
	entries  []string
}

func (e *entryWriter) dir(name string) error {
	_, err := e.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Store,
		Modified: e.modified,
	})
	if err != nil {
		return &AssemblyError{Entry: name, Err: err}
	}
	e.entries = append(e.entries, name)
	return nil
}

func (e *entryWriter) file(name string, data []byte) error {
	fw, err := e.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   e.method,
		Modified: e.modified,
	})
	if err != nil {
		return &AssemblyError{Entry: name, Err: err}
	}
	if _, err := fw.Write(data); err != nil {
		return &AssemblyError{Entry: name, Err: err}
	}
	e.entries = append(e.entries, name)
	return nil
}
