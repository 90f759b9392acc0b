package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 Layer III captures in process.
// go-mp3 always yields 16-bit little-endian stereo.
type MP3Decoder struct{}

// NewMP3Decoder creates an MP3 decoder
func NewMP3Decoder() *MP3Decoder {
	return &MP3Decoder{}
}

func (d *MP3Decoder) Name() string { return "mp3" }

func (d *MP3Decoder) Accepts(data []byte) bool {
	return isMPEGAudio(data)
}

func (d *MP3Decoder) Open(ctx context.Context) (DecodeContext, error) {
	return nopContext{decode: d.decode}, nil
}

func (d *MP3Decoder) decode(ctx context.Context, data []byte) (*PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	const channels = 2
	if len(raw)%(2*channels) != 0 {
		return nil, fmt.Errorf("unexpected MP3 decoded length %d", len(raw))
	}

	interleaved := make([]float32, len(raw)/2)
	for i := range interleaved {
		interleaved[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:i*2+2]))) / 32768
	}

	return &PCM{
		SampleRate: dec.SampleRate(),
		Channels:   deinterleave(interleaved, channels),
	}, nil
}
