package audio

import (
	"math"
	"testing"
)

func TestQuantizeSample(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{-1.0, -32768},
		{1.0, 32767},
		{0.0, 0},
		{0.5, 16383},
		{-0.5, -16384},
		{2.0, 32767},
		{-3.5, -32768},
		{float32(math.Inf(1)), 32767},
		{float32(math.Inf(-1)), -32768},
		{float32(math.NaN()), 0},
		{1e-6, 0},
		{-1e-6, 0},
	}

	for _, tt := range tests {
		if got := QuantizeSample(tt.in); got != tt.want {
			t.Errorf("QuantizeSample(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestQuantizeMonotonic(t *testing.T) {
	prev := QuantizeSample(-1)
	for i := 1; i <= 20000; i++ {
		v := float32(-1 + float64(i)*2/20000)
		got := QuantizeSample(v)
		if got < prev {
			t.Fatalf("QuantizeSample not monotonic at %v: %d < %d", v, got, prev)
		}
		prev = got
	}
}

func TestInterleave(t *testing.T) {
	for n := 1; n <= 4; n++ {
		const length = 7
		channels := make([][]float32, n)
		for c := range channels {
			channels[c] = make([]float32, length)
			for i := range channels[c] {
				channels[c][i] = float32(c*100 + i)
			}
		}

		out := Interleave(channels)
		if len(out) != n*length {
			t.Fatalf("%d channels: expected length %d, got %d", n, n*length, len(out))
		}

		for c := 0; c < n; c++ {
			for i := 0; i < length; i++ {
				if out[i*n+c] != channels[c][i] {
					t.Errorf("%d channels: out[%d] = %v, want channel %d sample %d = %v",
						n, i*n+c, out[i*n+c], c, i, channels[c][i])
				}
			}
		}
	}

	if out := Interleave(nil); out != nil {
		t.Errorf("Expected nil for no channels, got %v", out)
	}
}

func TestEncodePCM(t *testing.T) {
	pcm := &PCM{
		SampleRate: 22050,
		Channels: [][]float32{
			{-1, 0, 1},
			{0.5, -0.5, 0},
		},
	}

	data, err := EncodePCM(pcm)
	if err != nil {
		t.Fatalf("EncodePCM failed: %v", err)
	}

	samples, info, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if info.Channels != 2 || info.SampleRate != 22050 {
		t.Errorf("Unexpected format: %d channels at %d Hz", info.Channels, info.SampleRate)
	}

	want := []int16{-32768, 16383, 0, -16384, 32767, 0}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], samples[i])
		}
	}
}

func TestEncodePCMRejectsRaggedChannels(t *testing.T) {
	pcm := &PCM{SampleRate: 8000, Channels: [][]float32{{0, 0}, {0}}}
	if _, err := EncodePCM(pcm); err == nil {
		t.Error("Expected error for channels of different lengths")
	}

	if _, err := EncodePCM(&PCM{SampleRate: 0, Channels: [][]float32{{0}}}); err == nil {
		t.Error("Expected error for zero sample rate")
	}

	if _, err := EncodePCM(nil); err == nil {
		t.Error("Expected error for nil PCM")
	}
}
