package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder decodes integer PCM WAV captures of any common bit depth. It
// handles RIFF input whose declared media type was not canonical, e.g. a
// 24-bit file uploaded as application/octet-stream.
type WAVDecoder struct{}

// NewWAVDecoder creates a WAV decoder
func NewWAVDecoder() *WAVDecoder {
	return &WAVDecoder{}
}

func (d *WAVDecoder) Name() string { return "wav" }

func (d *WAVDecoder) Accepts(data []byte) bool {
	return isRIFFWave(data)
}

func (d *WAVDecoder) Open(ctx context.Context) (DecodeContext, error) {
	return nopContext{decode: d.decode}, nil
}

func (d *WAVDecoder) decode(ctx context.Context, data []byte) (*PCM, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if dec.WavAudioFormat != formatPCM {
		return nil, fmt.Errorf("unsupported WAV audio format %d", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, errNoChannels
	}

	bits := buf.SourceBitDepth
	if bits == 0 {
		bits = int(dec.BitDepth)
	}
	return intBufferToPCM(buf, bits)
}

// intBufferToPCM scales integer samples of the given bit depth to [-1, 1)
func intBufferToPCM(buf *goaudio.IntBuffer, bits int) (*PCM, error) {
	if bits < 8 || bits > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bits)
	}

	channels := buf.Format.NumChannels
	scale := float64(int64(1) << (bits - 1))
	interleaved := make([]float32, len(buf.Data)-len(buf.Data)%channels)
	for i := range interleaved {
		v := float64(buf.Data[i])
		if bits == 8 {
			// 8-bit WAV is unsigned
			v -= 128
		}
		interleaved[i] = float32(v / scale)
	}

	return &PCM{
		SampleRate: buf.Format.SampleRate,
		Channels:   deinterleave(interleaved, channels),
	}, nil
}
