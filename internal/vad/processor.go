package vad

import (
	"fmt"
	"math"
	"time"
)

// Config holds the detection parameters
type Config struct {
	Threshold         float32       // smoothed RMS level, relative to full scale, counted as voice
	WindowDuration    time.Duration // analysis window length
	Smoothing         float32       // weight of the newest window; 1 disables smoothing
	MinSpeechDuration time.Duration // shorter voiced runs are dropped
}

// DefaultConfig returns parameters suited to close-talk microphone captures
func DefaultConfig() Config {
	return Config{
		Threshold:         0.02,
		WindowDuration:    32 * time.Millisecond,
		Smoothing:         0.5,
		MinSpeechDuration: 100 * time.Millisecond,
	}
}

// Segment is a continuous run of voice activity
type Segment struct {
	Start      float64 `json:"start_seconds"`
	End        float64 `json:"end_seconds"`
	Confidence float32 `json:"confidence"` // average distance from the threshold, 0-1
}

// Duration returns the segment length in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Summary describes the voice activity of one recording
type Summary struct {
	Windows         int       `json:"windows"`
	VoiceWindows    int       `json:"voice_windows"`
	VoicePercentage float64   `json:"voice_percentage"`
	SpeechSeconds   float64   `json:"speech_seconds"`
	PeakLevel       float32   `json:"peak_level"`
	Segments        []Segment `json:"segments"`
}

// HasSpeech reports whether any segment survived the minimum duration
func (s Summary) HasSpeech() bool {
	return len(s.Segments) > 0
}

// Processor scores PCM windows. It keeps no state between calls and is safe
// for concurrent use.
type Processor struct {
	config Config
}

// NewProcessor creates a processor; zero window, smoothing and minimum speech
// durations take the defaults
func NewProcessor(config Config) (*Processor, error) {
	if config.Threshold <= 0 || config.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %f", config.Threshold)
	}
	if config.Smoothing < 0 || config.Smoothing > 1 {
		return nil, fmt.Errorf("smoothing must be between 0 and 1, got %f", config.Smoothing)
	}
	if config.WindowDuration < 0 || config.MinSpeechDuration < 0 {
		return nil, fmt.Errorf("durations cannot be negative")
	}

	defaults := DefaultConfig()
	if config.WindowDuration == 0 {
		config.WindowDuration = defaults.WindowDuration
	}
	if config.Smoothing == 0 {
		config.Smoothing = defaults.Smoothing
	}
	if config.MinSpeechDuration == 0 {
		config.MinSpeechDuration = defaults.MinSpeechDuration
	}

	return &Processor{config: config}, nil
}

// Threshold returns the voice threshold
func (p *Processor) Threshold() float32 {
	return p.config.Threshold
}

// Analyze scores interleaved 16-bit samples and returns the speech segments
func (p *Processor) Analyze(samples []int16, sampleRate, channels int) (Summary, error) {
	if sampleRate <= 0 {
		return Summary{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return Summary{}, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	framesPerWindow := int(int64(sampleRate) * int64(p.config.WindowDuration) / int64(time.Second))
	if framesPerWindow < 1 {
		framesPerWindow = 1
	}
	windowLen := framesPerWindow * channels
	windowSeconds := float64(framesPerWindow) / float64(sampleRate)
	totalSeconds := float64(len(samples)/channels) / float64(sampleRate)

	var (
		summary  Summary
		current  *Segment
		sum      float32
		count    int
		smoothed float32
	)

	closeSegment := func(end float64) {
		current.End = math.Min(end, totalSeconds)
		current.Confidence = sum / float32(count)
		if current.Duration() >= p.config.MinSpeechDuration.Seconds() {
			summary.Segments = append(summary.Segments, *current)
			summary.SpeechSeconds += current.Duration()
		}
		current = nil
	}

	for i := 0; i*windowLen < len(samples); i++ {
		end := (i + 1) * windowLen
		if end > len(samples) {
			end = len(samples)
		}

		level := rms(samples[i*windowLen : end])
		if level > summary.PeakLevel {
			summary.PeakLevel = level
		}
		if i == 0 {
			smoothed = level
		} else {
			smoothed = p.config.Smoothing*level + (1-p.config.Smoothing)*smoothed
		}

		summary.Windows++
		if smoothed < p.config.Threshold {
			if current != nil {
				closeSegment(float64(i) * windowSeconds)
			}
			continue
		}

		summary.VoiceWindows++
		if current == nil {
			current = &Segment{Start: float64(i) * windowSeconds}
			sum, count = 0, 0
		}
		sum += confidence(smoothed, p.config.Threshold)
		count++
	}
	if current != nil {
		closeSegment(totalSeconds)
	}

	if summary.Windows > 0 {
		summary.VoicePercentage = float64(summary.VoiceWindows) / float64(summary.Windows) * 100
	}
	return summary, nil
}

// rms returns the root mean square of samples relative to full scale
func rms(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	return float32(math.Sqrt(energy/float64(len(samples))) / 32768.0)
}

// confidence grows with the distance from the threshold, scaled to 0-1
func confidence(level, threshold float32) float32 {
	c := float32(math.Abs(float64(level - threshold)))
	if c > 0.5 {
		c = 0.5
	}
	return c * 2
}
