package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/bundle"
	"github.com/exphon/speech-recording-app/internal/recording"
	"github.com/exphon/speech-recording-app/internal/script"
)

// Manifest describes an offline bundle: participant metadata plus the
// capture files for each wizard step. Relative paths resolve against the
// manifest's directory.
type Manifest struct {
	Metadata   map[string]any `yaml:"metadata"`
	ScriptFile string         `yaml:"script_file"`
	Words      *ManifestItem  `yaml:"words"`
	Sentences  []ManifestItem `yaml:"sentences"`
	Paragraph  *ManifestItem  `yaml:"paragraph"`

	dir string
}

// ManifestItem is one capture; an empty Text falls back to the prompt
type ManifestItem struct {
	File string `yaml:"file"`
	Text string `yaml:"text"`
}

// LoadManifest reads and decodes a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if m.Words == nil && len(m.Sentences) == 0 && m.Paragraph == nil {
		return nil, fmt.Errorf("manifest %s lists no recordings", path)
	}
	m.dir = filepath.Dir(path)
	return &m, nil
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, p)
}

// prompts returns the custom script when one is named, otherwise the
// built-in set assigned to participantID
func (m *Manifest) prompts(participantID string) (script.Script, error) {
	if m.ScriptFile == "" {
		return script.AssignSet(participantID), nil
	}
	data, err := os.ReadFile(m.resolve(m.ScriptFile))
	if err != nil {
		return script.Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	sc, err := script.Parse(data)
	if err != nil {
		return script.Script{}, err
	}
	return *sc, nil
}

// buildBundle records every manifest entry through the normalizer and
// assembles the archive; analyzer may be nil
func buildBundle(ctx context.Context, m *Manifest, normalizer recording.Normalizer, analyzer recording.Analyzer,
	assembler *bundle.Assembler, logger *slog.Logger) (*bundle.Archive, error) {

	meta := recording.Metadata(m.Metadata)
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	participantID := meta.Text(recording.KeyParticipantID)
	if participantID == "" {
		participantID = recording.NewParticipantID()
	}
	// without a metadata block the archive carries no metadata.json
	if meta != nil {
		meta = meta.WithDefaults(time.Now())
		meta[recording.KeyParticipantID] = participantID
	}

	prompts, err := m.prompts(participantID)
	if err != nil {
		return nil, err
	}

	rec := recording.NewRecorder(normalizer, recording.NewStore(), logger)
	if analyzer != nil {
		rec.SetAnalyzer(analyzer)
	}

	record := func(item *ManifestItem, category recording.Category, ordinal int, prompt string) error {
		data, err := os.ReadFile(m.resolve(item.File))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", item.File, err)
		}
		text := item.Text
		if text == "" {
			text = prompt
		}
		clip := audio.Clip{Data: data, MediaType: audio.MediaTypeForExtension(filepath.Ext(item.File))}
		a, err := rec.Record(ctx, category, ordinal, text, clip)
		if err != nil {
			return fmt.Errorf("failed to record %s: %w", item.File, err)
		}
		logger.Info("Recorded",
			slog.String("input", item.File),
			slog.String("filename", a.Filename),
			slog.Bool("fallback", a.Fallback),
		)
		return nil
	}

	if m.Words != nil {
		if err := record(m.Words, recording.CategoryWords, 0, prompts.WordsText()); err != nil {
			return nil, err
		}
	}
	for i := range m.Sentences {
		prompt := ""
		if i < len(prompts.Sentences) {
			prompt = prompts.Sentences[i]
		}
		if err := record(&m.Sentences[i], recording.CategorySentence, i, prompt); err != nil {
			return nil, err
		}
	}
	if m.Paragraph != nil {
		if err := record(m.Paragraph, recording.CategoryParagraph, 0, prompts.Paragraph); err != nil {
			return nil, err
		}
	}

	return assembler.Assemble(ctx, rec.Store().Snapshot(), meta)
}
