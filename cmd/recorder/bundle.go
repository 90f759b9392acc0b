package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/exphon/speech-recording-app/internal/download"
)

var bundleOutDir string

var bundleCmd = &cobra.Command{
	Use:   "bundle <manifest.yaml>",
	Short: "Build a recordings archive from a manifest",
	Long: `Read a YAML manifest listing participant metadata and the words, sentence
and paragraph captures, normalize every capture and write the resulting
recordings_YYYYMMDDHHMMSS.zip to the output directory.

Example manifest:

  metadata:
    participant_id: P_123456
    assessment_language: ko
  words:
    file: words.webm
  sentences:
    - file: s1.webm
      text: I like to read.
  paragraph:
    file: paragraph.ogg`,
	Args: cobra.ExactArgs(1),
	RunE: runBundle,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.Flags().StringVarP(&bundleOutDir, "out", "o", "", "Output directory (defaults to archive.output_dir)")
}

func runBundle(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	manifest, err := LoadManifest(args[0])
	if err != nil {
		return err
	}

	assembler, err := newAssembler(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("invalid archive configuration: %w", err)
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	archive, err := buildBundle(cmd.Context(), manifest, newNormalizer(cfg, logger, nil), analyzer, assembler, logger)
	if err != nil {
		return err
	}

	outDir := bundleOutDir
	if outDir == "" {
		outDir = cfg.Archive.OutputDir
	}
	path, err := download.NewDirSaver(outDir).Save(cmd.Context(), archive.Data, archive.Name)
	if err != nil {
		return fmt.Errorf("failed to save archive: %w", err)
	}

	logger.Info("Archive saved",
		slog.String("path", path),
		slog.Int("entries", len(archive.Entries)),
		slog.Int("size_bytes", archive.Size()),
	)
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
