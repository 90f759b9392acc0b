package audio

import "math"

// PCM holds decoded audio as one float slice per channel, nominally in [-1, 1].
type PCM struct {
	SampleRate int
	Channels   [][]float32
}

// NumChannels returns the channel count
func (p *PCM) NumChannels() int {
	return len(p.Channels)
}

// Frames returns the per-channel sample count
func (p *PCM) Frames() int {
	if len(p.Channels) == 0 {
		return 0
	}
	return len(p.Channels[0])
}

// Duration returns the decoded length in seconds
func (p *PCM) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

func (p *PCM) validate() error {
	if p == nil {
		return errEmptyDecode
	}
	if p.SampleRate <= 0 {
		return errInvalidSampleRate
	}
	if len(p.Channels) == 0 {
		return errNoChannels
	}
	frames := len(p.Channels[0])
	for _, ch := range p.Channels[1:] {
		if len(ch) != frames {
			return errRaggedChannels
		}
	}
	return nil
}

// Interleave merges channels left to right: sample i of channel c lands at i*N + c.
// A single channel is returned as is.
func Interleave(channels [][]float32) []float32 {
	n := len(channels)
	switch n {
	case 0:
		return nil
	case 1:
		return channels[0]
	}

	length := len(channels[0])
	out := make([]float32, length*n)
	for i := 0; i < length; i++ {
		for c := 0; c < n; c++ {
			out[i*n+c] = channels[c][i]
		}
	}
	return out
}

// QuantizeSample clamps v to [-1, 1] and scales it to int16, using 32768 for
// negative values and 32767 for the rest. The fraction is truncated. NaN maps to 0.
func QuantizeSample(v float32) int16 {
	s := float64(v)
	if math.IsNaN(s) {
		return 0
	}
	s = math.Max(-1, math.Min(1, s))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// Quantize converts interleaved float samples to 16-bit PCM
func Quantize(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, v := range samples {
		out[i] = QuantizeSample(v)
	}
	return out
}

// EncodePCM interleaves, quantizes and wraps decoded audio in a canonical WAV container
func EncodePCM(p *PCM) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return EncodeWAV(Quantize(Interleave(p.Channels)), p.SampleRate, p.NumChannels())
}

// deinterleave splits interleaved samples into per-channel slices
func deinterleave(samples []float32, channels int) [][]float32 {
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}
