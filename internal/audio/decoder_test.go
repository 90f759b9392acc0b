package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// silentMP3 builds MPEG-1 Layer III frames (128 kbit/s, 44.1 kHz, stereo)
// whose side information and main data are all zero, which decode to silence.
func silentMP3(frames int) []byte {
	const frameSize = 144 * 128000 / 44100 // 417 bytes, no padding
	data := make([]byte, 0, frames*frameSize)
	for i := 0; i < frames; i++ {
		frame := make([]byte, frameSize)
		copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
		data = append(data, frame...)
	}
	return data
}

func TestMP3DecoderSilentStereo(t *testing.T) {
	data := silentMP3(8)

	d := NewMP3Decoder()
	if !d.Accepts(data) {
		t.Fatal("MP3 decoder must accept a frame sync")
	}

	dc, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dc.Close()

	pcm, err := dc.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if pcm.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", pcm.SampleRate)
	}
	if pcm.NumChannels() != 2 {
		t.Fatalf("Expected 2 channels, got %d", pcm.NumChannels())
	}
	if pcm.Frames() == 0 || len(pcm.Channels[0]) != len(pcm.Channels[1]) {
		t.Fatalf("Unexpected channel lengths %d/%d", len(pcm.Channels[0]), len(pcm.Channels[1]))
	}
	for c, ch := range pcm.Channels {
		for i, v := range ch {
			if v != 0 {
				t.Fatalf("Expected silence, channel %d sample %d = %f", c, i, v)
			}
		}
	}
}

func TestNormalizeMP3WithDefaultDecoders(t *testing.T) {
	n := NewNormalizer(testLogger(), NormalizerConfig{}, DefaultDecoders("", "")...)

	result := n.Normalize(context.Background(), Clip{Data: silentMP3(8), MediaType: "audio/mpeg"})
	if result.Outcome != OutcomeConverted {
		t.Fatalf("Expected conversion, got %s (%v)", result.Outcome, result.Cause)
	}

	info, err := GetWAVInfo(result.Data)
	if err != nil {
		t.Fatalf("Output is not canonical WAV: %v", err)
	}
	if info.SampleRate != 44100 || info.Channels != 2 || info.BitsPerSample != 16 {
		t.Errorf("Unexpected output format %+v", info)
	}
}

func decodeDirs(t *testing.T, base string) []string {
	t.Helper()
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "recorder-decode-") {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs
}

func TestFFmpegContextReleasedOnFailure(t *testing.T) {
	base := t.TempDir()
	d := NewFFmpegDecoder(filepath.Join(base, "no-such-ffmpeg"), base)

	dc, err := d.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if got := decodeDirs(t, base); len(got) != 1 {
		t.Fatalf("Expected one scratch directory while open, got %v", got)
	}

	if _, err := dc.Decode(context.Background(), []byte("not audio")); err == nil {
		t.Error("Expected decode to fail with a missing binary")
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := decodeDirs(t, base); len(got) != 0 {
		t.Errorf("Scratch directory left behind: %v", got)
	}
}

func TestNormalizeReleasesFFmpegContext(t *testing.T) {
	base := t.TempDir()
	n := NewNormalizer(testLogger(), NormalizerConfig{}, NewFFmpegDecoder(filepath.Join(base, "no-such-ffmpeg"), base))

	result := n.Normalize(context.Background(), Clip{Data: []byte("webm bytes"), MediaType: "audio/webm"})
	if !result.Fallback() {
		t.Fatalf("Expected fallback, got %s", result.Outcome)
	}
	if got := decodeDirs(t, base); len(got) != 0 {
		t.Errorf("Scratch directory left behind: %v", got)
	}
}

func TestFFmpegDecodeReleasedOnSuccess(t *testing.T) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i * 7)
	}
	input, err := EncodeWAV(samples, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	base := t.TempDir()
	dc, err := NewFFmpegDecoder(ffmpeg, base).Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	pcm, err := dc.Decode(context.Background(), input)
	if err != nil {
		dc.Close()
		t.Fatalf("Decode failed: %v", err)
	}
	if pcm.SampleRate != 16000 || pcm.NumChannels() != 1 || pcm.Frames() != len(samples) {
		t.Errorf("Unexpected PCM: rate %d, channels %d, frames %d", pcm.SampleRate, pcm.NumChannels(), pcm.Frames())
	}

	if err := dc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := decodeDirs(t, base); len(got) != 0 {
		t.Errorf("Scratch directory left behind: %v", got)
	}
}
