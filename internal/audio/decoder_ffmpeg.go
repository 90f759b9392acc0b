package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FFmpegDecoder decodes browser capture formats (WebM/Opus, Ogg, MP4/AAC and
// anything else ffmpeg understands) by running ffmpeg as a subprocess.
// Output keeps the source sample rate and channel layout.
type FFmpegDecoder struct {
	path    string
	tempDir string
}

// NewFFmpegDecoder creates a decoder that runs the ffmpeg binary at path.
// Scratch directories are created under tempDir, or the system default when empty.
func NewFFmpegDecoder(path, tempDir string) *FFmpegDecoder {
	return &FFmpegDecoder{path: path, tempDir: tempDir}
}

func (d *FFmpegDecoder) Name() string { return "ffmpeg" }

// Accepts takes any non-empty input; ffmpeg does its own probing
func (d *FFmpegDecoder) Accepts(data []byte) bool {
	return len(data) > 0
}

// Open creates a private scratch directory holding the input file
func (d *FFmpegDecoder) Open(ctx context.Context) (DecodeContext, error) {
	base := d.tempDir
	if base == "" {
		base = os.TempDir()
	}

	dir := filepath.Join(base, "recorder-decode-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create decode directory: %w", err)
	}

	return &ffmpegContext{path: d.path, dir: dir}, nil
}

type ffmpegContext struct {
	path string
	dir  string
}

func (c *ffmpegContext) Decode(ctx context.Context, data []byte) (*PCM, error) {
	input := filepath.Join(c.dir, "input")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage input: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.path,
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", input,
		"-vn",
		"-map", "0:a:0",
		"-c:a", "pcm_f32le", // float output, no quantization here
		"-f", "wav",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := ParseRIFF(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to parse ffmpeg output: %w", err)
	}

	return info.PCM()
}

// Close removes the scratch directory
func (c *ffmpegContext) Close() error {
	return os.RemoveAll(c.dir)
}
