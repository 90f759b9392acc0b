package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/download"
)

var (
	normalizeOutDir string
	normalizeJobs   int
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file>...",
	Short: "Convert audio files to 16-bit PCM WAV",
	Long: `Normalize each input to a canonical PCM16 WAV file. Inputs that cannot be
decoded are copied unchanged with a .webm or .ogg extension and reported as
fallbacks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().StringVarP(&normalizeOutDir, "out", "o", "", "Output directory (defaults to archive.output_dir)")
	normalizeCmd.Flags().IntVarP(&normalizeJobs, "jobs", "j", 4, "Maximum files processed at once")
}

// normalizeReport is one line of the command's summary
type normalizeReport struct {
	Input    string
	Output   string
	Outcome  audio.Outcome
	Fallback bool
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if normalizeJobs < 1 {
		return fmt.Errorf("--jobs must be at least 1, got %d", normalizeJobs)
	}

	outDir := normalizeOutDir
	if outDir == "" {
		outDir = cfg.Archive.OutputDir
	}
	saver := download.NewDirSaver(outDir)
	normalizer := newNormalizer(cfg, logger, nil)

	reports := make([]normalizeReport, len(args))
	stems := outputStems(args)

	var (
		mu    sync.Mutex
		taken = make(map[string]string) // output name -> input
	)
	reserve := func(name, input string) error {
		mu.Lock()
		defer mu.Unlock()
		if other, ok := taken[name]; ok {
			return fmt.Errorf("%s and %s would both be written as %s", other, input, name)
		}
		taken[name] = input
		return nil
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(normalizeJobs)

	for i, input := range args {
		g.Go(func() error {
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", input, err)
			}

			ext := filepath.Ext(input)
			result := normalizer.Normalize(ctx, audio.Clip{
				Data:      data,
				MediaType: audio.MediaTypeForExtension(ext),
			})

			name := stems[i] + "." + result.Extension
			if err := reserve(name, input); err != nil {
				return err
			}
			out, err := saver.Save(ctx, result.Data, name)
			if err != nil {
				return fmt.Errorf("failed to save %s: %w", input, err)
			}

			if result.Fallback() {
				logger.Warn("Kept original encoding",
					slog.String("input", input),
					slog.String("output", out),
					slog.Any("cause", result.Cause),
				)
			}

			reports[i] = normalizeReport{Input: input, Output: out, Outcome: result.Outcome, Fallback: result.Fallback()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	fallbacks := 0
	w := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintf(w, "%s -> %s (%s)\n", r.Input, r.Output, r.Outcome)
		if r.Fallback {
			fallbacks++
		}
	}
	fmt.Fprintf(w, "%d file(s) normalized, %d fallback(s)\n", len(reports), fallbacks)
	return nil
}

// outputStems names each output after its input. Inputs sharing a stem
// (a.webm, a.ogg) keep their source extension in it (a_webm, a_ogg), since
// both may normalize to the same extension.
func outputStems(inputs []string) []string {
	counts := make(map[string]int, len(inputs))
	stems := make([]string, len(inputs))
	for i, input := range inputs {
		base := filepath.Base(input)
		stems[i] = strings.TrimSuffix(base, filepath.Ext(base))
		counts[stems[i]]++
	}
	for i, input := range inputs {
		ext := strings.TrimPrefix(filepath.Ext(input), ".")
		if counts[stems[i]] > 1 && ext != "" {
			stems[i] += "_" + ext
		}
	}
	return stems
}
