package bundle

import (
	"errors"
	"fmt"
)

var (
	// ErrNothingToArchive is returned for a session without recordings
	ErrNothingToArchive = errors.New("nothing to archive")

	// ErrAssemblyInProgress is returned when a job is already running
	ErrAssemblyInProgress = errors.New("archive assembly already in progress")
)

// AssemblyError reports a failed serialization or compression step
type AssemblyError struct {
	Entry string // archive entry being written, empty when finalizing
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("archive assembly failed: %v", e.Err)
	}
	return fmt.Sprintf("archive assembly failed at %s: %v", e.Entry, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}
