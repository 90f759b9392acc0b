package bundle

import (
	"context"
	"errors"
	"testing"

	"github.com/exphon/speech-recording-app/internal/recording"
)

func TestJobLifecycle(t *testing.T) {
	job := NewJob(newTestAssembler(t, Config{}))
	ctx := context.Background()

	if job.State() != StateIdle {
		t.Fatalf("Expected idle, got %s", job.State())
	}

	if _, err := job.Run(ctx, recording.NewStore().Snapshot(), nil); !errors.Is(err, ErrNothingToArchive) {
		t.Fatalf("Expected ErrNothingToArchive, got %v", err)
	}
	if job.State() != StateFailed || job.Err() == nil {
		t.Errorf("Expected failed state with error, got %s", job.State())
	}

	// a failed job can be re-run from scratch
	archive, err := job.Run(ctx, sampleStore(t).Snapshot(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if job.State() != StateSuccess || job.Err() != nil || job.Last() != archive {
		t.Errorf("Unexpected state after success: %s", job.State())
	}

	job.Reset()
	if job.State() != StateIdle || job.Last() != nil {
		t.Error("Reset must return to idle")
	}
}

func TestJobRejectsConcurrentRun(t *testing.T) {
	job := NewJob(newTestAssembler(t, Config{}))
	job.state = StateAssembling

	if _, err := job.Run(context.Background(), sampleStore(t).Snapshot(), nil); !errors.Is(err, ErrAssemblyInProgress) {
		t.Fatalf("Expected ErrAssemblyInProgress, got %v", err)
	}

	job.Reset()
	if job.State() != StateAssembling {
		t.Error("Reset must not interrupt a running assembly")
	}
}
