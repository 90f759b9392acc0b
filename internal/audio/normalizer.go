package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Clip is one finished capture: the recorder's bytes and their declared media type
type Clip struct {
	Data      []byte
	MediaType string
}

// Outcome labels how a clip was normalized
type Outcome string

const (
	OutcomeIdentity  Outcome = "identity"
	OutcomeConverted Outcome = "converted"
	OutcomeFallback  Outcome = "fallback"
)

// Result is the normalized audio handed to the recording store. On fallback
// Data is the original capture, MediaType is the declared type and Cause
// holds the decode failure.
type Result struct {
	Data      []byte
	MediaType string
	Extension string
	Outcome   Outcome
	Cause     error
}

// Fallback reports whether the original capture was kept
func (r Result) Fallback() bool {
	return r.Outcome == OutcomeFallback
}

// Observer receives normalization events; *metrics.Metrics implements it
type Observer interface {
	RecordNormalization(outcome string, durationSeconds float64)
	DecodeContextOpened()
	DecodeContextClosed(failed bool)
}

type nopObserver struct{}

func (nopObserver) RecordNormalization(string, float64) {}
func (nopObserver) DecodeContextOpened()                {}
func (nopObserver) DecodeContextClosed(bool)            {}

// NormalizerConfig bounds decoding work
type NormalizerConfig struct {
	DecodeTimeout        time.Duration // zero disables the bound
	MaxConcurrentDecodes int
}

// Normalizer converts captures to canonical WAV
type Normalizer struct {
	decoders []Decoder
	logger   *slog.Logger
	timeout  time.Duration
	slots    chan struct{} // limits open decode contexts
	observer Observer
}

// NewNormalizer creates a normalizer that tries decoders in order
func NewNormalizer(logger *slog.Logger, config NormalizerConfig, decoders ...Decoder) *Normalizer {
	if config.MaxConcurrentDecodes <= 0 {
		config.MaxConcurrentDecodes = 2
	}

	return &Normalizer{
		decoders: decoders,
		logger:   logger,
		timeout:  config.DecodeTimeout,
		slots:    make(chan struct{}, config.MaxConcurrentDecodes),
		observer: nopObserver{},
	}
}

// SetObserver installs a metrics observer
func (n *Normalizer) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	n.observer = o
}

// Normalize converts clip to canonical WAV. It never fails: when decoding is
// impossible the original bytes come back with a webm/ogg extension.
func (n *Normalizer) Normalize(ctx context.Context, clip Clip) Result {
	startTime := time.Now()

	if IsCanonical(clip.MediaType) {
		n.observer.RecordNormalization(string(OutcomeIdentity), time.Since(startTime).Seconds())
		return Result{
			Data:      clip.Data,
			MediaType: CanonicalMediaType,
			Extension: "wav",
			Outcome:   OutcomeIdentity,
		}
	}

	data, err := n.convert(ctx, clip)
	if err != nil {
		result := Result{
			Data:      clip.Data,
			MediaType: clip.MediaType,
			Extension: FallbackExtension(clip.MediaType),
			Outcome:   OutcomeFallback,
			Cause:     err,
		}

		n.logger.Error("WAV conversion failed, keeping original capture",
			slog.String("media_type", clip.MediaType),
			slog.Int("size_bytes", len(clip.Data)),
			slog.String("extension", result.Extension),
			slog.String("error", err.Error()),
		)
		n.observer.RecordNormalization(string(OutcomeFallback), time.Since(startTime).Seconds())
		return result
	}

	n.logger.Debug("Capture converted to WAV",
		slog.String("media_type", clip.MediaType),
		slog.Int("input_bytes", len(clip.Data)),
		slog.Int("output_bytes", len(data)),
		slog.Duration("elapsed", time.Since(startTime)),
	)
	n.observer.RecordNormalization(string(OutcomeConverted), time.Since(startTime).Seconds())

	return Result{
		Data:      data,
		MediaType: CanonicalMediaType,
		Extension: "wav",
		Outcome:   OutcomeConverted,
	}
}

func (n *Normalizer) convert(ctx context.Context, clip Clip) ([]byte, error) {
	pcm, err := n.decode(ctx, clip.Data)
	if err != nil {
		return nil, &DecodeError{MediaType: clip.MediaType, Err: err}
	}

	data, err := EncodePCM(pcm)
	if err != nil {
		return nil, &DecodeError{MediaType: clip.MediaType, Err: err}
	}
	return data, nil
}

// decode tries every accepting decoder in order until one succeeds
func (n *Normalizer) decode(ctx context.Context, data []byte) (*PCM, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	var errs []error
	for _, d := range n.decoders {
		if !d.Accepts(data) {
			continue
		}

		pcm, err := n.decodeWith(ctx, d, data)
		if err == nil {
			return pcm, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 0 {
		return nil, ErrUnsupportedFormat
	}
	return nil, errors.Join(errs...)
}

type decodeOutcome struct {
	pcm *PCM
	err error
}

// decodeWith runs one decoder inside a pooled decode context. The context is
// closed by the decoding goroutine itself, so it is released even when the
// caller stops waiting.
func (n *Normalizer) decodeWith(ctx context.Context, d Decoder, data []byte) (*PCM, error) {
	select {
	case n.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for decode slot: %w", ctx.Err())
	}

	done := make(chan decodeOutcome, 1)

	go func() {
		defer func() { <-n.slots }()

		dc, err := d.Open(ctx)
		if err != nil {
			done <- decodeOutcome{err: fmt.Errorf("open decode context: %w", err)}
			return
		}
		n.observer.DecodeContextOpened()
		defer n.release(d, dc)

		defer func() {
			if r := recover(); r != nil {
				done <- decodeOutcome{err: fmt.Errorf("decoder panic: %v", r)}
			}
		}()

		pcm, err := dc.Decode(ctx, data)
		if err == nil {
			err = pcm.validate()
		}
		done <- decodeOutcome{pcm: pcm, err: err}
	}()

	select {
	case out := <-done:
		return out.pcm, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("decode abandoned: %w", ctx.Err())
	}
}

func (n *Normalizer) release(d Decoder, dc DecodeContext) {
	err := dc.Close()
	n.observer.DecodeContextClosed(err != nil)
	if err != nil {
		n.logger.Warn("Failed to release decode context",
			slog.String("error", (&CleanupError{Decoder: d.Name(), Err: err}).Error()),
		)
	}
}
