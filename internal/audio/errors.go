package audio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when no decoder accepts the capture
	ErrUnsupportedFormat = errors.New("no decoder accepts this audio")

	errEmptyDecode       = errors.New("decoder returned no audio")
	errInvalidSampleRate = errors.New("decoded sample rate must be positive")
	errNoChannels        = errors.New("decoded audio has no channels")
	errRaggedChannels    = errors.New("decoded channels differ in length")
)

// DecodeError reports why a capture could not be converted. Normalize absorbs
// it into a fallback Result; it is exposed as Result.Cause for logging.
type DecodeError struct {
	MediaType string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.MediaType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CleanupError reports a decode context that could not be released
type CleanupError struct {
	Decoder string
	Err     error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("release %s decode context: %v", e.Decoder, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
