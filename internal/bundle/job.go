package bundle

import (
	"context"
	"sync"

	"github.com/exphon/speech-recording-app/internal/recording"
)

// State is the lifecycle of one archive request
type State string

const (
	StateIdle       State = "idle"
	StateAssembling State = "assembling"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// Job serializes archive requests for one session. A finished job can be
// run again; each run starts from scratch.
type Job struct {
	assembler *Assembler

	state   State
	lastErr error
	last    *Archive
	mu      sync.Mutex
}

// NewJob creates an idle job
func NewJob(assembler *Assembler) *Job {
	return &Job{assembler: assembler, state: StateIdle}
}

// Run assembles an archive unless one is already being assembled
func (j *Job) Run(ctx context.Context, snap recording.Snapshot, metadata recording.Metadata) (*Archive, error) {
	j.mu.Lock()
	if j.state == StateAssembling {
		j.mu.Unlock()
		return nil, ErrAssemblyInProgress
	}
	j.state = StateAssembling
	j.lastErr = nil
	j.last = nil
	j.mu.Unlock()

	archive, err := j.assembler.Assemble(ctx, snap, metadata)

	j.mu.Lock()
	defer j.mu.Unlock()
	if err != nil {
		j.state = StateFailed
		j.lastErr = err
		return nil, err
	}
	j.state = StateSuccess
	j.last = archive
	return archive, nil
}

// State returns the current state
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the error of the last failed run
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Last returns the archive of the last successful run
func (j *Job) Last() *Archive {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// Reset returns a finished job to Idle
func (j *Job) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateAssembling {
		j.state = StateIdle
		j.lastErr = nil
		j.last = nil
	}
}
