package audio

import (
	"bytes"
	"context"
)

// Decoder turns one encoded capture into PCM. Each decode runs inside a
// DecodeContext that holds whatever transient resources the backend needs.
type Decoder interface {
	// Name identifies the backend in logs and errors
	Name() string

	// Accepts reports whether the backend can try to decode data
	Accepts(data []byte) bool

	// Open acquires a decode context
	Open(ctx context.Context) (DecodeContext, error)
}

// DecodeContext is a scoped decoding resource. Close must be called exactly
// once, on every exit path.
type DecodeContext interface {
	Decode(ctx context.Context, data []byte) (*PCM, error)
	Close() error
}

// DefaultDecoders returns the WAV and MP3 decoders, followed by ffmpeg when
// ffmpegPath is not empty.
func DefaultDecoders(ffmpegPath, tempDir string) []Decoder {
	decoders := []Decoder{
		NewWAVDecoder(),
		NewMP3Decoder(),
	}
	if ffmpegPath != "" {
		decoders = append(decoders, NewFFmpegDecoder(ffmpegPath, tempDir))
	}
	return decoders
}

// nopContext is the decode context of in-process backends
type nopContext struct {
	decode func(ctx context.Context, data []byte) (*PCM, error)
}

func (c nopContext) Decode(ctx context.Context, data []byte) (*PCM, error) {
	return c.decode(ctx, data)
}

func (nopContext) Close() error {
	return nil
}

func isRIFFWave(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

func isMPEGAudio(data []byte) bool {
	if len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")) {
		return true
	}
	// frame sync: 11 set bits, layer bits not "reserved"
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 && data[1]&0x06 != 0
}
