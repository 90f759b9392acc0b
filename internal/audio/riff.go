package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	formatPCM        = 1
	formatIEEEFloat  = 3
	formatExtensible = 0xFFFE
)

// RIFFInfo describes the fmt and data chunks of an arbitrary WAV stream
type RIFFInfo struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	Data          []byte
}

// ParseRIFF walks the chunks of a WAV stream. Unknown chunks are skipped and
// size fields left unset by a streaming writer (0 or 0xFFFFFFFF) are clamped
// to the bytes actually present.
func ParseRIFF(data []byte) (*RIFFInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var info RIFFInfo
	var haveFmt, haveData bool

	pos := 12
	for pos+8 <= len(data) && !haveData {
		id := string(data[pos : pos+4])
		size := int64(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8

		remaining := int64(len(data) - pos)
		if size == 0 && id == "data" || size > remaining {
			size = remaining
		}
		body := data[pos : pos+int(size)]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return nil, fmt.Errorf("fmt chunk too small: %d bytes", len(body))
			}
			info.AudioFormat = binary.LittleEndian.Uint16(body[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if info.AudioFormat == formatExtensible && len(body) >= 26 {
				// first two bytes of the SubFormat GUID carry the real format tag
				info.AudioFormat = binary.LittleEndian.Uint16(body[24:26])
			}
			haveFmt = true
		case "data":
			info.Data = body
			haveData = true
		}

		pos += int(size)
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if !haveData {
		return nil, fmt.Errorf("missing data chunk")
	}
	if info.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", info.Channels)
	}
	return &info, nil
}

// PCM converts the data chunk to per-channel float samples
func (r *RIFFInfo) PCM() (*PCM, error) {
	bytesPerSample := r.BitsPerSample / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("invalid bit depth %d", r.BitsPerSample)
	}

	var read func(b []byte) float32
	switch {
	case r.AudioFormat == formatIEEEFloat && r.BitsPerSample == 32:
		read = func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	case r.AudioFormat == formatIEEEFloat && r.BitsPerSample == 64:
		read = func(b []byte) float32 {
			return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		}
	case r.AudioFormat == formatPCM && r.BitsPerSample == 16:
		read = func(b []byte) float32 {
			return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		}
	case r.AudioFormat == formatPCM && r.BitsPerSample == 32:
		read = func(b []byte) float32 {
			return float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
		}
	default:
		return nil, fmt.Errorf("unsupported sample encoding: format %d, %d bits", r.AudioFormat, r.BitsPerSample)
	}

	frameSize := bytesPerSample * r.Channels
	frames := len(r.Data) / frameSize
	interleaved := make([]float32, frames*r.Channels)
	for i := range interleaved {
		interleaved[i] = read(r.Data[i*bytesPerSample : (i+1)*bytesPerSample])
	}

	return &PCM{
		SampleRate: r.SampleRate,
		Channels:   deinterleave(interleaved, r.Channels),
	}, nil
}
