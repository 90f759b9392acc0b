package recording

import (
	"errors"
	"fmt"
)

var (
	// ErrMetadataSubmitted is returned when metadata is submitted twice in one session
	ErrMetadataSubmitted = errors.New("metadata already submitted")

	// ErrNotRecorded is returned when a requested artifact does not exist
	ErrNotRecorded = errors.New("artifact not recorded")
)

// ValidationError reports malformed input from the wizard. It is always
// surfaced to the participant and never leaves partial state behind.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
